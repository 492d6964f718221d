package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Querier is the subset of *sql.DB and *sql.Tx used by the repositories,
// so the same repository code runs inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// Repos bundles one repository per entity, all bound to the same Querier.
type Repos struct {
	Users    *UserRepo
	Consents *ConsentRepo
	Signals  *SignalRepo
	Alerts   *AlertRepo
	Contacts *ContactRepo
	Audit    *AuditRepo
}

func newRepos(q Querier, now func() time.Time) *Repos {
	return &Repos{
		Users:    &UserRepo{q: q, now: now},
		Consents: &ConsentRepo{q: q, now: now},
		Signals:  &SignalRepo{q: q, now: now},
		Alerts:   &AlertRepo{q: q, now: now},
		Contacts: &ContactRepo{q: q, now: now},
		Audit:    &AuditRepo{q: q, now: now},
	}
}

// Store owns the connection pool and hands out repositories.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore returns a Store bound to db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the time source used for created_at/updated_at.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// DB exposes the underlying pool for health checks and migrations.
func (s *Store) DB() *sql.DB { return s.db }

// Repos returns repositories that run each statement on its own.
func (s *Store) Repos() *Repos { return newRepos(s.db, s.now) }

// WithTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back when fn returns an error or panics, so no
// partial state is ever visible.
func (s *Store) WithTx(ctx context.Context, fn func(r *Repos) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err = fn(newRepos(tx, s.now)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", mapErr(err))
	}
	committed = true
	return nil
}
