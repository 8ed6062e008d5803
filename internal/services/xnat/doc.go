// Package xnat is a thin client for the XNAT REST API covering the listing,
// transfer, and provisioning calls the import and export runs need.
//
// Errors are classified onto the shared service sentinels so callers can
// distinguish a missing session (skip and continue) from an unreachable
// archive (abort the run).
package xnat
