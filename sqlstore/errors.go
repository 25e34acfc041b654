package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/kevinaaaquil/circulation/circulation"
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		return pqe.Code == pgUniqueViolation
	}
	var pge *pgconn.PgError
	if errors.As(err, &pge) {
		return pge.Code == pgUniqueViolation
	}
	return false
}

// transient postgres codes: connection exceptions, serialization failure,
// deadlock, cannot connect now
func transientPGCode(code string) bool {
	return strings.HasPrefix(code, "08") || code == "40001" || code == "40P01" || code == "57P03"
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		return transientPGCode(string(pqe.Code))
	}
	var pge *pgconn.PgError
	if errors.As(err, &pge) {
		return transientPGCode(pge.Code)
	}
	return pgconn.Timeout(err)
}

// classify passes circulation errors through and marks transient driver
// failures as StoreUnavailable.
func classify(err error) error {
	if err == nil || circulation.KindOf(err) != circulation.KindUnknown {
		return err
	}
	if isTransient(err) {
		return circulation.StoreFailure(err)
	}
	return err
}
