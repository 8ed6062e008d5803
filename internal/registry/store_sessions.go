package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ScanSeed describes one archive scan to be recorded against a session.
// ClinicalHint seeds the clinical flag when the type is seen for the first
// time; it never overrides an existing catalogue entry.
type ScanSeed struct {
	ArchiveID    string
	TypeName     string
	ClinicalHint bool
}

const sessionColumns = `s.id, s.project_id, s.subject_id, p.code, sub.code,
    s.archive_subject_id, s.archive_visit_id, s.legacy_code, s.scan_date,
    s.priority, s.data_status, s.height, s.weight, s.notes, s.created_at, s.updated_at`

const sessionJoins = ` FROM sessions s
    JOIN projects p ON p.id = s.project_id
    JOIN subjects sub ON sub.id = s.subject_id`

// CreateSessionWithScans inserts a session along with its scan rows and any
// back-filled dummy reports in one transaction.
func (s *Store) CreateSessionWithScans(ctx context.Context, sess *ImagingSession, seeds []ScanSeed, dummyReports []*Report) error {
	if sess == nil {
		return errors.New("session is nil")
	}
	now := time.Now().UTC()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (
                id, project_id, subject_id, archive_subject_id, archive_visit_id,
                legacy_code, scan_date, priority, data_status, height, weight,
                notes, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID,
			sess.ProjectID,
			sess.SubjectID,
			sess.ArchiveSubjectID,
			sess.ArchiveVisitID,
			sess.LegacyCode,
			formatDate(sess.ScanDate),
			int(sess.Priority),
			string(sess.DataStatus),
			nullableFloat(sess.Height),
			nullableFloat(sess.Weight),
			sess.Notes,
			formatTimestamp(now),
			formatTimestamp(now),
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		if err := insertScans(ctx, tx, sess.ID, seeds); err != nil {
			return err
		}

		for _, report := range dummyReports {
			if report == nil {
				continue
			}
			report.SessionID = sess.ID
			if err := insertReport(ctx, tx, report); err != nil {
				return err
			}
		}
		return nil
	})
}

// SessionByID fetches a session by study identifier. Returns nil when absent.
func (s *Store) SessionByID(ctx context.Context, id int64) (*ImagingSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+sessionJoins+` WHERE s.id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// UpdateSessionStatus sets a session's data status.
func (s *Store) UpdateSessionStatus(ctx context.Context, id int64, status DataStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET data_status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTimestamp(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetSessionCoordinates updates archive subject/visit identifiers together
// with the new data status.
func (s *Store) SetSessionCoordinates(ctx context.Context, id int64, subjectID, visitID string, status DataStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions
         SET archive_subject_id = ?, archive_visit_id = ?, data_status = ?, updated_at = ?
         WHERE id = ?`,
		subjectID, visitID, string(status), formatTimestamp(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("update session coordinates: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SyncScans records archive scans not yet present on the session. New types
// are interned with their classification hint. Returns the number of scan
// rows created.
func (s *Store) SyncScans(ctx context.Context, sessionID int64, seeds []ScanSeed) (int, error) {
	created := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, seed := range seeds {
			typeID, err := internScanType(ctx, tx, seed.TypeName, seed.ClinicalHint)
			if err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx,
				`INSERT INTO scans (session_id, type_id, archive_id, exported)
                 SELECT ?, ?, ?, 0
                 WHERE NOT EXISTS (
                     SELECT 1 FROM scans WHERE session_id = ? AND archive_id = ?)`,
				sessionID, typeID, seed.ArchiveID, sessionID, seed.ArchiveID)
			if err != nil {
				return fmt.Errorf("insert scan: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			created += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

func insertScans(ctx context.Context, tx *sql.Tx, sessionID int64, seeds []ScanSeed) error {
	for _, seed := range seeds {
		typeID, err := internScanType(ctx, tx, seed.TypeName, seed.ClinicalHint)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scans (session_id, type_id, archive_id, exported) VALUES (?, ?, ?, 0)`,
			sessionID, typeID, seed.ArchiveID); err != nil {
			return fmt.Errorf("insert scan: %w", err)
		}
	}
	return nil
}

// SessionClinicalState summarizes the confirmation state of a session's scan
// types: whether any type is still unconfirmed, and whether any confirmed
// type is clinical.
func (s *Store) SessionClinicalState(ctx context.Context, sessionID int64) (hasUnconfirmed, hasClinical bool, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT
            COALESCE(SUM(CASE WHEN t.confirmed = 0 THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN t.confirmed = 1 AND t.clinical = 1 THEN 1 ELSE 0 END), 0)
         FROM scans sc JOIN scan_types t ON t.id = sc.type_id
         WHERE sc.session_id = ?`, sessionID)
	var unconfirmed, clinical int
	if err := row.Scan(&unconfirmed, &clinical); err != nil {
		return false, false, fmt.Errorf("session clinical state: %w", err)
	}
	return unconfirmed > 0, clinical > 0, nil
}

// ReclassifyFoundNoClinical moves Present sessions whose scan types are all
// confirmed non-clinical to the found-no-clinical status. Returns the number
// of sessions reclassified.
func (s *Store) ReclassifyFoundNoClinical(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET data_status = ?, updated_at = ?
         WHERE data_status = ?
         AND NOT EXISTS (
             SELECT 1 FROM scans sc JOIN scan_types t ON t.id = sc.type_id
             WHERE sc.session_id = sessions.id AND t.confirmed = 0)
         AND NOT EXISTS (
             SELECT 1 FROM scans sc JOIN scan_types t ON t.id = sc.type_id
             WHERE sc.session_id = sessions.id AND t.clinical = 1)`,
		string(StatusFoundNoClinical),
		formatTimestamp(time.Now().UTC()),
		string(StatusPresent))
	if err != nil {
		return 0, fmt.Errorf("reclassify found-no-clinical: %w", err)
	}
	return res.RowsAffected()
}

func scanSession(scanner interface{ Scan(dest ...any) error }) (*ImagingSession, error) {
	var (
		id          int64
		projectID   int64
		subjectID   int64
		projectCode string
		subjectCode string
		archSubject sql.NullString
		archVisit   sql.NullString
		legacyCode  sql.NullString
		scanDateRaw string
		priority    int
		statusStr   string
		height      sql.NullFloat64
		weight      sql.NullFloat64
		notes       sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&projectID,
		&subjectID,
		&projectCode,
		&subjectCode,
		&archSubject,
		&archVisit,
		&legacyCode,
		&scanDateRaw,
		&priority,
		&statusStr,
		&height,
		&weight,
		&notes,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	sess := &ImagingSession{
		ID:               id,
		ProjectID:        projectID,
		SubjectID:        subjectID,
		ProjectCode:      projectCode,
		SubjectCode:      subjectCode,
		ArchiveSubjectID: archSubject.String,
		ArchiveVisitID:   archVisit.String,
		LegacyCode:       legacyCode.String,
		Priority:         Priority(priority),
		DataStatus:       DataStatus(statusStr),
		Height:           height.Float64,
		Weight:           weight.Float64,
		Notes:            notes.String,
	}
	if scanDate, err := parseDate(scanDateRaw); err == nil {
		sess.ScanDate = scanDate
	}
	if created, err := parseTimestamp(createdRaw.String); err == nil {
		sess.CreatedAt = created
	}
	if updated, err := parseTimestamp(updatedRaw.String); err == nil {
		sess.UpdatedAt = updated
	}
	return sess, nil
}
