package registry

import (
	"context"
	"fmt"
	"strings"
)

// eligibleFilter restricts a sessions query to sessions that still need a
// report: not terminally ignored, the most recent usable session for the
// subject, and not already covered by a report on any of the subject's
// sessions within the report interval (in days, by scan date).
const eligibleFilter = `
    s.data_status NOT IN ('not_scanned', 'excluded')
    AND NOT EXISTS (
        SELECT 1 FROM sessions newer
        WHERE newer.subject_id = s.subject_id
          AND newer.data_status NOT IN ('not_scanned', 'excluded')
          AND newer.scan_date > s.scan_date
    )
    AND NOT EXISTS (
        SELECT 1 FROM sessions covered
        JOIN reports r ON r.session_id = covered.id
        WHERE covered.subject_id = s.subject_id
          AND abs(julianday(covered.scan_date) - julianday(s.scan_date)) <= ?
    )`

// SessionsRequiringReport lists the reporting queue, highest priority first
// and oldest scan date first within a priority.
func (s *Store) SessionsRequiringReport(ctx context.Context, intervalDays int) ([]*ImagingSession, error) {
	query := `SELECT ` + sessionColumns + sessionJoins + ` WHERE ` + eligibleFilter +
		` ORDER BY s.priority DESC, s.scan_date ASC, s.id ASC`
	rows, err := s.db.QueryContext(ctx, query, intervalDays)
	if err != nil {
		return nil, fmt.Errorf("query reporting queue: %w", err)
	}
	defer rows.Close()
	return collectSessions(rows)
}

// SessionsReadyForExport lists sessions whose imaging data should be staged
// for reporting: they require a report, their data is present, and none of
// their scan types are still awaiting clinical confirmation.
func (s *Store) SessionsReadyForExport(ctx context.Context, intervalDays int) ([]*ImagingSession, error) {
	query := `SELECT ` + sessionColumns + sessionJoins + ` WHERE ` + eligibleFilter + `
        AND s.data_status = 'present'
        AND NOT EXISTS (
            SELECT 1 FROM scans sc
            JOIN scan_types st ON st.id = sc.type_id
            WHERE sc.session_id = s.id AND st.confirmed = 0
        )
        ORDER BY s.priority DESC, s.scan_date ASC, s.id ASC`
	rows, err := s.db.QueryContext(ctx, query, intervalDays)
	if err != nil {
		return nil, fmt.Errorf("query export queue: %w", err)
	}
	defer rows.Close()
	return collectSessions(rows)
}

// SessionsNeedingRepair lists broken sessions ordered most severe first,
// oldest scan date first within a severity.
func (s *Store) SessionsNeedingRepair(ctx context.Context) ([]*ImagingSession, error) {
	var (
		statuses []string
		ranks    strings.Builder
	)
	for status, rank := range brokenSeverity {
		statuses = append(statuses, fmt.Sprintf("'%s'", status))
		fmt.Fprintf(&ranks, " WHEN '%s' THEN %d", status, rank)
	}
	query := `SELECT ` + sessionColumns + sessionJoins + `
        WHERE s.data_status IN (` + strings.Join(statuses, ", ") + `)
        ORDER BY CASE s.data_status` + ranks.String() + ` END ASC, s.scan_date ASC, s.id ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query repair queue: %w", err)
	}
	defer rows.Close()
	return collectSessions(rows)
}

func collectSessions(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]*ImagingSession, error) {
	var sessions []*ImagingSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}
