// Package services holds the failure taxonomy shared by the importer,
// exporter, lifecycle, and reporting operations, plus the per-archive client
// subpackages.
package services
