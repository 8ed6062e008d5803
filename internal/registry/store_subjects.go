package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetOrCreateProject resolves a project by archive code, creating it on first
// sight.
func (s *Store) GetOrCreateProject(ctx context.Context, code, title string) (*Project, error) {
	project, err := s.projectByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if project != nil {
		return project, nil
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (code, title) VALUES (?, ?)`, code, title)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &Project{ID: id, Code: code, Title: title}, nil
}

func (s *Store) projectByCode(ctx context.Context, code string) (*Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, code, title FROM projects WHERE code = ?`, code)
	var project Project
	err := row.Scan(&project.ID, &project.Code, &project.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &project, nil
}

// GetOrCreateSubject resolves a subject by external patient code, creating it
// on first sight. Demographics on an existing subject are not overwritten.
func (s *Store) GetOrCreateSubject(ctx context.Context, subject *Subject) (*Subject, error) {
	if subject == nil {
		return nil, errors.New("subject is nil")
	}
	existing, err := s.SubjectByCode(ctx, subject.Code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO subjects (code, first_name, middle_name, last_name, gender, dob)
         VALUES (?, ?, ?, ?, ?, ?)`,
		subject.Code,
		subject.FirstName,
		subject.MiddleName,
		subject.LastName,
		subject.Gender,
		nullableDate(subject.DOB),
	)
	if err != nil {
		return nil, fmt.Errorf("insert subject: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	created := *subject
	created.ID = id
	return &created, nil
}

// SubjectByCode fetches a subject by external patient code. Returns nil when
// absent.
func (s *Store) SubjectByCode(ctx context.Context, code string) (*Subject, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, code, first_name, middle_name, last_name, gender, dob
         FROM subjects WHERE code = ?`, code)
	subject, err := scanSubject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subject: %w", err)
	}
	return subject, nil
}

func scanSubject(scanner interface{ Scan(dest ...any) error }) (*Subject, error) {
	var (
		subject Subject
		dobRaw  sql.NullString
	)
	if err := scanner.Scan(&subject.ID, &subject.Code, &subject.FirstName,
		&subject.MiddleName, &subject.LastName, &subject.Gender, &dobRaw); err != nil {
		return nil, err
	}
	if dobRaw.Valid {
		if dob, err := parseDate(dobRaw.String); err == nil {
			subject.DOB = dob
		}
	}
	return &subject, nil
}
