package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"radreport/internal/services"
)

var uniqueConstraintRe = regexp.MustCompile(`UNIQUE constraint failed: ([\w.]+)`)

// CreateUser inserts a user and its role assignments in one transaction.
// Uniqueness clashes on email or name are translated into a user-facing
// conflict error.
func (s *Store) CreateUser(ctx context.Context, user *User) error {
	if user == nil {
		return errors.New("user is nil")
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO users (title, first_name, middle_name, last_name, suffixes, email, active)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			user.Title,
			user.FirstName,
			user.MiddleName,
			user.LastName,
			user.Suffixes,
			user.Email,
			boolToInt(user.Active),
		)
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		user.ID = id

		for _, role := range user.Roles {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO user_roles (user_id, role) VALUES (?, ?)`,
				id, role); err != nil {
				return fmt.Errorf("insert user role: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return translateUserConflict(err, user)
	}
	return nil
}

func translateUserConflict(err error, user *User) error {
	match := uniqueConstraintRe.FindStringSubmatch(err.Error())
	if match == nil {
		return err
	}
	switch {
	case strings.Contains(match[1], "email"):
		return services.Wrap(services.ErrConflict, "registry", "register",
			fmt.Sprintf("the email address %q has already been registered", user.Email), nil)
	case strings.Contains(match[1], "name"):
		return services.Wrap(services.ErrConflict, "registry", "register",
			fmt.Sprintf("the name %q has already been registered", user.Name()), nil)
	default:
		return err
	}
}

// systemReporterEmail identifies the synthetic user attributed to dummy
// reports back-filled from the legacy feed.
const systemReporterEmail = "system@radreport.invalid"

// SystemReporter returns the synthetic dummy-report user, creating it on
// first use.
func (s *Store) SystemReporter(ctx context.Context) (*User, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (first_name, last_name, email, active)
         VALUES ('Legacy', 'Import', ?, 0)`, systemReporterEmail); err != nil {
		return nil, fmt.Errorf("ensure system reporter: %w", err)
	}
	return s.UserByEmail(ctx, systemReporterEmail)
}

// UserByID fetches a user with roles loaded. Returns nil when absent.
func (s *Store) UserByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, first_name, middle_name, last_name, suffixes, email, active
         FROM users WHERE id = ?`, id)
	return s.scanUserWithRoles(ctx, row)
}

// UserByEmail fetches a user with roles loaded. Returns nil when absent.
func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, first_name, middle_name, last_name, suffixes, email, active
         FROM users WHERE email = ?`, email)
	return s.scanUserWithRoles(ctx, row)
}

func (s *Store) scanUserWithRoles(ctx context.Context, row *sql.Row) (*User, error) {
	var (
		user   User
		active int
	)
	err := row.Scan(&user.ID, &user.Title, &user.FirstName, &user.MiddleName,
		&user.LastName, &user.Suffixes, &user.Email, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	user.Active = active != 0

	rows, err := s.db.QueryContext(ctx,
		`SELECT role FROM user_roles WHERE user_id = ? ORDER BY role`, user.ID)
	if err != nil {
		return nil, fmt.Errorf("query user roles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var role int
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		user.Roles = append(user.Roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &user, nil
}
