package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors classifying failures across the import, repair, and export
// operations. Callers branch on these with errors.Is.
var (
	// ErrValidation marks malformed caller input. Nothing is mutated.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks an unknown session, report, user, or archive resource.
	ErrNotFound = errors.New("not found")
	// ErrConnectivity marks an unreachable archive. It aborts the whole
	// import or export run.
	ErrConnectivity = errors.New("archive connectivity error")
	// ErrConflict marks a uniqueness clash, such as a duplicate registration
	// email. It is translated into a user-facing message by the CLI.
	ErrConflict = errors.New("conflict")
	// ErrChecksumMismatch marks a failed byte-level verification during
	// export. It is fatal for the affected session only.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrForbidden marks an operation attempted without the required role.
	ErrForbidden = errors.New("forbidden")
)

// Wrap builds an error message that includes operation context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = errors.New("service failure")
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
