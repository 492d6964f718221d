// Package repository defines the data access layer. Every query on an
// owned record filters by user_id in its WHERE clause, so a record owned by
// someone else is indistinguishable from a missing one.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a row does not exist or is not owned by the
// calling user. Handlers translate it into HTTP 404.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned on unique constraint violations, for example a
// second user with the same email.
var ErrDuplicate = errors.New("duplicate key")

// ErrForeignKey is returned when a referenced row does not exist.
var ErrForeignKey = errors.New("foreign key violation")

// ErrTimeout is returned when a statement exceeds its context deadline.
var ErrTimeout = errors.New("query timeout")

// MySQL server error numbers.
const (
	erDupEntry         = 1062
	erNoReferencedRow  = 1452
	erNoReferencedRow1 = 1216
	erRowIsReferenced  = 1217
	erQueryTimeout     = 3024
)

// mapErr translates driver errors into the sentinels above. The driver
// error stays reachable through errors.Unwrap.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case erDupEntry:
			return fmt.Errorf("%w: %w", ErrDuplicate, err)
		case erNoReferencedRow, erNoReferencedRow1, erRowIsReferenced:
			return fmt.Errorf("%w: %w", ErrForeignKey, err)
		case erQueryTimeout:
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		}
	}
	return err
}
