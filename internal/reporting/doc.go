// Package reporting holds the reviewer-facing operations: report submission,
// the paged scan-type confirmation workflow, and account registration. The
// acting user is passed into every call explicitly.
package reporting
