// Package app assembles the store, engine and report services from Config.
// Both the server and circulationctl start through it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kevinaaaquil/circulation/circulation"
	"github.com/kevinaaaquil/circulation/config"
	"github.com/kevinaaaquil/circulation/service"
	"github.com/kevinaaaquil/circulation/sqlstore"
	"github.com/kevinaaaquil/circulation/store"
)

// MigratingStore is a Store that can create its own schema.
type MigratingStore interface {
	circulation.Store
	Migrate(ctx context.Context) error
}

// OpenStore connects to the configured backend and migrates it. The returned
// func releases the connection.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (circulation.Store, func(), error) {
	var (
		s       MigratingStore
		closeFn func()
	)
	switch cfg.StoreDriver {
	case config.DriverMongo:
		db, err := store.NewMongoDB(ctx, cfg.MongoURI, cfg.DBName, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("mongodb: %w", err)
		}
		s = db
		closeFn = func() {
			if err := db.Disconnect(context.Background()); err != nil {
				logger.Warn("mongodb disconnect", slog.Any("error", err))
			}
		}
	case config.DriverSQLite, config.DriverPostgres, config.DriverPGX:
		db, err := sqlstore.Open(ctx, cfg.StoreDriver, cfg.SQLDSN, sqlstore.WithLogger(logger))
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", cfg.StoreDriver, err)
		}
		s = db
		closeFn = func() {
			if err := db.Close(); err != nil {
				logger.Warn("sql close", slog.Any("error", err))
			}
		}
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if err := s.Migrate(ctx); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return s, closeFn, nil
}

// NewEngine applies the circulation settings from cfg.
func NewEngine(cfg *config.Config, s circulation.Store, logger *slog.Logger) *circulation.Engine {
	return circulation.NewEngine(s,
		circulation.WithStoreTimeout(cfg.StoreTimeout),
		circulation.WithLoanPeriod(cfg.LoanPeriod),
		circulation.WithFineRate(cfg.FineRate),
		circulation.WithCommentLimit(cfg.CommentMax),
		circulation.WithLogger(logger),
	)
}

// NewReports wires whichever of S3 and SMTP are configured. It returns nil
// when neither is.
func NewReports(ctx context.Context, cfg *config.Config, engine *circulation.Engine, logger *slog.Logger) (*service.Reports, error) {
	if !cfg.ReportsEnabled() && !cfg.NoticesEnabled() {
		logger.Warn("AWS_S3_BUCKET and SMTP_HOST not set; overdue export and notices are disabled")
		return nil, nil
	}
	r := &service.Reports{Engine: engine, URLTTL: cfg.ReportURLTTL, Logger: logger}
	if cfg.ReportsEnabled() {
		archive, err := service.NewS3Archive(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3AccessKeyID, cfg.S3SecretKey)
		if err != nil {
			return nil, fmt.Errorf("s3: %w", err)
		}
		r.Archive = archive
	}
	if cfg.NoticesEnabled() {
		r.Mailer = service.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	}
	return r, nil
}
