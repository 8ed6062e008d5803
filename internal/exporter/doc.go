// Package exporter implements the outbound half of the archive
// synchronization protocol: confirmed clinical scans of export-ready
// sessions are downloaded from the source archive, uploaded to the
// destination, and digest-verified before the per-scan exported flag is
// committed. Runs are serialized by a file lock and identified by a run id.
package exporter
