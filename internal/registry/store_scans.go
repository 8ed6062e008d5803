package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const scanColumns = `sc.id, sc.session_id, sc.type_id, sc.archive_id, sc.exported,
    t.name, t.clinical, t.confirmed`

const scanJoins = ` FROM scans sc JOIN scan_types t ON t.id = sc.type_id`

// ScansBySession returns a session's scans ordered by archive identifier.
func (s *Store) ScansBySession(ctx context.Context, sessionID int64) ([]*Scan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scanColumns+scanJoins+` WHERE sc.session_id = ? ORDER BY sc.archive_id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()
	return collectScans(rows)
}

// ClinicalUnexportedScans returns the confirmed clinical scans of a session
// that have not yet been transferred to the destination archive.
func (s *Store) ClinicalUnexportedScans(ctx context.Context, sessionID int64) ([]*Scan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scanColumns+scanJoins+`
         WHERE sc.session_id = ? AND t.clinical = 1 AND t.confirmed = 1 AND sc.exported = 0
         ORDER BY sc.archive_id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("query clinical unexported scans: %w", err)
	}
	defer rows.Close()
	return collectScans(rows)
}

// MarkScanExported flips a scan's exported flag after a verified transfer.
func (s *Store) MarkScanExported(ctx context.Context, scanID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scans SET exported = 1 WHERE id = ?`, scanID)
	if err != nil {
		return fmt.Errorf("mark scan exported: %w", err)
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

// ScanTypeByName looks up a catalogue entry. Returns nil when absent.
func (s *Store) ScanTypeByName(ctx context.Context, name string) (*ScanType, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, clinical, confirmed FROM scan_types WHERE name = ?`, name)
	st, err := scanScanType(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scan type: %w", err)
	}
	return st, nil
}

// UnconfirmedScanTypes returns the next page of catalogue entries awaiting
// human confirmation, in deterministic alphabetical order.
func (s *Store) UnconfirmedScanTypes(ctx context.Context, limit int) ([]*ScanType, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, clinical, confirmed FROM scan_types
         WHERE confirmed = 0 ORDER BY name LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unconfirmed scan types: %w", err)
	}
	defer rows.Close()

	var types []*ScanType
	for rows.Next() {
		st, err := scanScanType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, st)
	}
	return types, rows.Err()
}

// CountUnconfirmedScanTypes returns how many catalogue entries still await
// confirmation.
func (s *Store) CountUnconfirmedScanTypes(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM scan_types WHERE confirmed = 0`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unconfirmed scan types: %w", err)
	}
	return count, nil
}

// ConfirmScanTypes marks every listed type confirmed and sets its clinical
// flag in a single set-based statement. Types already confirmed are left
// untouched, so a stale page can never re-open reviewed entries.
func (s *Store) ConfirmScanTypes(ctx context.Context, clinicalIDs, nonClinicalIDs []int64) (int64, error) {
	all := make([]int64, 0, len(clinicalIDs)+len(nonClinicalIDs))
	all = append(all, clinicalIDs...)
	all = append(all, nonClinicalIDs...)
	if len(all) == 0 {
		return 0, nil
	}

	clinicalSet := make(map[int64]struct{}, len(clinicalIDs))
	for _, id := range clinicalIDs {
		clinicalSet[id] = struct{}{}
	}

	args := make([]any, 0, len(clinicalIDs)+len(all))
	query := `UPDATE scan_types SET confirmed = 1, clinical = CASE`
	if len(clinicalIDs) > 0 {
		query += ` WHEN id IN (` + makePlaceholders(len(clinicalIDs)) + `) THEN 1 ELSE 0 END`
		for _, id := range clinicalIDs {
			args = append(args, id)
		}
	} else {
		query += ` WHEN 1 THEN 0 END`
	}
	query += ` WHERE confirmed = 0 AND id IN (` + makePlaceholders(len(all)) + `)`
	for _, id := range all {
		args = append(args, id)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("confirm scan types: %w", err)
	}
	return res.RowsAffected()
}

func internScanType(ctx context.Context, tx *sql.Tx, name string, clinicalHint bool) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM scan_types WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup scan type: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO scan_types (name, clinical, confirmed) VALUES (?, ?, 0)`,
		name, boolToInt(clinicalHint))
	if err != nil {
		return 0, fmt.Errorf("insert scan type: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func collectScans(rows *sql.Rows) ([]*Scan, error) {
	var scans []*Scan
	for rows.Next() {
		scan, err := scanScanRow(rows)
		if err != nil {
			return nil, err
		}
		scans = append(scans, scan)
	}
	return scans, rows.Err()
}

func scanScanRow(scanner interface{ Scan(dest ...any) error }) (*Scan, error) {
	var (
		id        int64
		sessionID int64
		typeID    int64
		archiveID sql.NullString
		exported  int
		typeName  string
		clinical  int
		confirmed int
	)
	if err := scanner.Scan(&id, &sessionID, &typeID, &archiveID, &exported,
		&typeName, &clinical, &confirmed); err != nil {
		return nil, err
	}
	return &Scan{
		ID:        id,
		SessionID: sessionID,
		TypeID:    typeID,
		ArchiveID: archiveID.String,
		Exported:  exported != 0,
		TypeName:  typeName,
		Clinical:  clinical != 0,
		Confirmed: confirmed != 0,
	}, nil
}

func scanScanType(scanner interface{ Scan(dest ...any) error }) (*ScanType, error) {
	var (
		id        int64
		name      string
		clinical  int
		confirmed int
	)
	if err := scanner.Scan(&id, &name, &clinical, &confirmed); err != nil {
		return nil, err
	}
	return &ScanType{
		ID:        id,
		Name:      name,
		Clinical:  clinical != 0,
		Confirmed: confirmed != 0,
	}, nil
}
