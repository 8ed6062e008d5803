package registry

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateReport inserts a report and its evidence-scan links atomically.
func (s *Store) CreateReport(ctx context.Context, report *Report) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insertReport(ctx, tx, report)
	})
}

func insertReport(ctx context.Context, tx *sql.Tx, report *Report) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO reports (session_id, reporter_id, date, findings, conclusion, modality, exported, dummy)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		report.SessionID,
		report.ReporterID,
		formatDate(report.Date),
		report.Findings,
		int(report.Conclusion),
		int(report.Modality),
		boolToInt(report.Exported),
		boolToInt(report.Dummy),
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	report.ID = id

	for _, scanID := range report.ScanIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO report_scans (report_id, scan_id) VALUES (?, ?)`,
			id, scanID); err != nil {
			return fmt.Errorf("insert report scan link: %w", err)
		}
	}
	return nil
}

// ReportsBySession returns a session's reports ordered by date.
func (s *Store) ReportsBySession(ctx context.Context, sessionID int64) ([]*Report, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, reporter_id, date, findings, conclusion, modality, exported, dummy
         FROM reports WHERE session_id = ? ORDER BY date`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var reports []*Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, report := range reports {
		if err := s.loadReportScanIDs(ctx, report); err != nil {
			return nil, err
		}
	}
	return reports, nil
}

func (s *Store) loadReportScanIDs(ctx context.Context, report *Report) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT scan_id FROM report_scans WHERE report_id = ? ORDER BY scan_id`, report.ID)
	if err != nil {
		return fmt.Errorf("query report scan links: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var scanID int64
		if err := rows.Scan(&scanID); err != nil {
			return err
		}
		report.ScanIDs = append(report.ScanIDs, scanID)
	}
	return rows.Err()
}

func scanReport(scanner interface{ Scan(dest ...any) error }) (*Report, error) {
	var (
		report     Report
		dateRaw    string
		findings   sql.NullString
		conclusion int
		modality   int
		exported   int
		dummy      int
	)
	if err := scanner.Scan(&report.ID, &report.SessionID, &report.ReporterID,
		&dateRaw, &findings, &conclusion, &modality, &exported, &dummy); err != nil {
		return nil, err
	}
	report.Findings = findings.String
	report.Conclusion = Conclusion(conclusion)
	report.Modality = Modality(modality)
	report.Exported = exported != 0
	report.Dummy = dummy != 0
	if date, err := parseDate(dateRaw); err == nil {
		report.Date = date
	}
	return &report, nil
}
