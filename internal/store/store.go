// Package store is the persistence gateway: typed CRUD over the clinic tables
// plus the transactional sale write.
package store

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"clinicpos/m/domain"
)

// Store bundles the database handle and write policy.
type Store struct {
	db                 *sqlx.DB
	now                func() time.Time
	allowNegativeStock bool
}

type Option func(*Store)

// WithClock replaces the timestamp source used for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithNegativeStock lets a sale push stock below zero instead of failing.
func WithNegativeStock(allow bool) Option {
	return func(s *Store) { s.allowNegativeStock = allow }
}

// New constructs a Store.
func New(db *sqlx.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

func (s *Store) q(query string) string {
	return s.db.Rebind(query)
}

// notFound maps sql.ErrNoRows onto the domain sentinel.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
