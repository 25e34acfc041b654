package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// column types that differ between the dialects
type columnTypes struct {
	timestamp string
	money     string
}

var sqliteTypes = columnTypes{timestamp: "TIMESTAMP", money: "TEXT NOT NULL DEFAULT '0'"}
var postgresTypes = columnTypes{timestamp: "TIMESTAMPTZ", money: "NUMERIC(12,2) NOT NULL DEFAULT 0"}

func schema(t columnTypes) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS books (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			author TEXT NOT NULL DEFAULT '',
			isbn TEXT NOT NULL DEFAULT '',
			total_copies INTEGER NOT NULL CHECK (total_copies >= 1),
			available_copies INTEGER NOT NULL,
			branch_id TEXT NOT NULL DEFAULT '',
			created_at ` + t.timestamp + ` NOT NULL,
			CHECK (available_copies >= 0 AND available_copies <= total_copies)
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			password TEXT NOT NULL,
			role TEXT NOT NULL,
			branch_id TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at ` + t.timestamp + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS loans (
			id TEXT PRIMARY KEY,
			book_id TEXT NOT NULL,
			borrower_id TEXT NOT NULL,
			issued_by TEXT NOT NULL,
			returned_by TEXT NOT NULL DEFAULT '',
			borrow_date ` + t.timestamp + ` NOT NULL,
			due_date ` + t.timestamp + ` NOT NULL,
			return_date ` + t.timestamp + `,
			status TEXT NOT NULL,
			fine ` + t.money + `,
			branch_id TEXT NOT NULL DEFAULT ''
		)`,
		// at most one active loan per (book, borrower)
		`CREATE UNIQUE INDEX IF NOT EXISTS loans_one_active ON loans (book_id, borrower_id) WHERE status = 'active'`,
		`CREATE INDEX IF NOT EXISTS loans_borrower ON loans (borrower_id)`,
		`CREATE INDEX IF NOT EXISTS loans_status_due ON loans (status, due_date)`,
		`CREATE TABLE IF NOT EXISTS reviews (
			id TEXT PRIMARY KEY,
			book_id TEXT NOT NULL,
			reviewer_id TEXT NOT NULL,
			loan_id TEXT NOT NULL,
			rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
			comment TEXT NOT NULL DEFAULT '',
			is_approved BOOLEAN NOT NULL DEFAULT FALSE,
			approved_by TEXT NOT NULL DEFAULT '',
			branch_id TEXT NOT NULL DEFAULT '',
			created_at ` + t.timestamp + ` NOT NULL,
			UNIQUE (book_id, reviewer_id)
		)`,
		`CREATE TABLE IF NOT EXISTS notice_logs (
			id TEXT PRIMARY KEY,
			loan_id TEXT NOT NULL,
			borrower_id TEXT NOT NULL,
			to_email TEXT NOT NULL,
			sent_by TEXT NOT NULL,
			sent_at ` + t.timestamp + ` NOT NULL
		)`,
	}
}

// Migrate creates the tables, constraints and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	types := postgresTypes
	if s.driver == DriverSQLite {
		// WAL lets readers proceed while a loan transaction commits.
		if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("sqlstore: enable WAL: %w", err)
		}
		types = sqliteTypes
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, stmt := range schema(types) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("sqlstore: apply migration: %w", err)
			}
		}
		return nil
	})
}
