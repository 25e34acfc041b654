package app

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinaaaquil/circulation/circulation"
	"github.com/kevinaaaquil/circulation/config"
	"github.com/kevinaaaquil/circulation/sqlstore"
)

func sqliteConfig(t *testing.T) *config.Config {
	return &config.Config{
		StoreDriver:  config.DriverSQLite,
		SQLDSN:       sqlstore.SQLiteDSN(filepath.Join(t.TempDir(), "app.db")),
		StoreTimeout: time.Second,
		LoanPeriod:   7 * 24 * time.Hour,
		FineRate:     decimal.RequireFromString("0.25"),
		CommentMax:   10,
		ReportURLTTL: time.Minute,
	}
}

func TestOpenStoreSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)
	s, closeFn, err := OpenStore(ctx, cfg, slog.Default())
	require.NoError(t, err)
	defer closeFn()

	engine := NewEngine(cfg, s, slog.Default())
	assert.True(t, engine.FineRate().Equal(decimal.RequireFromString("0.25")))

	created, err := engine.EnsureBootstrapAdmin(ctx, "root@example.org", "pw", "")
	require.NoError(t, err)
	assert.True(t, created)

	admin, err := engine.Authenticate(ctx, "root@example.org", "pw")
	require.NoError(t, err)
	book, err := engine.AddBook(ctx, admin.Actor(), circulation.NewBook{Title: "Persuasion", TotalCopies: 1})
	require.NoError(t, err)
	loan, err := engine.IssueLoan(ctx, admin.Actor(), book.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, loan.DueDate.Sub(loan.BorrowDate))
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	_, _, err := OpenStore(context.Background(), &config.Config{StoreDriver: "oracle"}, slog.Default())
	assert.EqualError(t, err, `unknown store driver "oracle"`)
}

func TestNewReports(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)

	r, err := NewReports(ctx, cfg, nil, slog.Default())
	require.NoError(t, err)
	assert.Nil(t, r)

	cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom = "smtp.example.org", 587, "desk@example.org"
	r, err = NewReports(ctx, cfg, nil, slog.Default())
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Nil(t, r.Archive)
	assert.NotNil(t, r.Mailer)

	cfg.S3Bucket, cfg.S3Region = "reports", "eu-west-1"
	r, err = NewReports(ctx, cfg, nil, slog.Default())
	require.NoError(t, err)
	assert.NotNil(t, r.Archive)
	assert.Equal(t, time.Minute, r.URLTTL)
}
