// Package lifecycle implements the data-status state machine: admin repairs
// constrained to the fix-option set, and the automatic archive re-check that
// settles a session on Present, FoundNoClinical, or NotFound.
package lifecycle
