// Package main hosts the radreport CLI entrypoint and command graph.
//
// The Cobra-based command tree covers the full reporting workflow: feed
// import, queue inspection, report submission, scan-type confirmation,
// session repair, export runs, and configuration scaffolding. It centralizes
// configuration resolution, archive client construction, and structured
// logging setup so subcommands can focus on user experience instead of
// wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
