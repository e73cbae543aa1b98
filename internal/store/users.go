package store

import (
	"context"
	"fmt"
	"strings"

	"clinicpos/m/domain"
)

func (s *Store) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = s.timestamp()
	err := s.db.QueryRowxContext(ctx, s.q(`INSERT INTO users (name, email, password, role, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id`),
		u.Name, u.Email, u.Password, u.Role, u.CreatedAt).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, fmt.Errorf("user %s: %w", u.Email, domain.ErrDuplicate)
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// CreateFirstUser inserts u only if the users table is empty. The check and
// the insert share one transaction; on PostgreSQL the table is locked so two
// bootstrap registrations cannot both pass the check.
func (s *Store) CreateFirstUser(ctx context.Context, u domain.User) (domain.User, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.User{}, fmt.Errorf("begin first user: %w", err)
	}
	defer tx.Rollback()

	if s.db.DriverName() == "pgx" {
		if _, err := tx.ExecContext(ctx, `LOCK TABLE users IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return domain.User{}, fmt.Errorf("lock users: %w", err)
		}
	}
	var n int
	if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return domain.User{}, fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return domain.User{}, domain.ErrRegistrationClosed
	}

	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = s.timestamp()
	err = tx.QueryRowxContext(ctx, tx.Rebind(`INSERT INTO users (name, email, password, role, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id`),
		u.Name, u.Email, u.Password, u.Role, u.CreatedAt).Scan(&u.ID)
	if err != nil {
		return domain.User{}, fmt.Errorf("insert first user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, fmt.Errorf("commit first user: %w", err)
	}
	return u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	err := s.db.GetContext(ctx, &u, s.q(`SELECT id, name, email, password, role, created_at FROM users WHERE email = ?`), strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return domain.User{}, notFound(err)
	}
	return u, nil
}

func (s *Store) UpdatePassword(ctx context.Context, userID int64, hash string) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE users SET password = ? WHERE id = ?`), hash, userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireAffected(res)
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, err
	}
	return n, nil
}
