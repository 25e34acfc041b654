// Package service builds the overdue report and notice side effects on top
// of the circulation engine.
package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kevinaaaquil/circulation/circulation"
	"github.com/kevinaaaquil/circulation/models"
)

// ErrNotConfigured is returned when the archive or mailer is missing.
var ErrNotConfigured = errors.New("service: not configured")

// Archive stores report files.
type Archive interface {
	PutReport(ctx context.Context, key string, body []byte, contentType string) error
	PresignedURL(ctx context.Context, key string, expiry time.Duration, filename string) (string, error)
}

// Mailer delivers one overdue notice.
type Mailer interface {
	SendNotice(ctx context.Context, n circulation.OverdueNotice) error
}

// Reports exports overdue lists and mails overdue notices. Archive and
// Mailer are optional; the matching operation returns ErrNotConfigured.
type Reports struct {
	Engine  *circulation.Engine
	Archive Archive
	Mailer  Mailer
	URLTTL  time.Duration
	Logger  *slog.Logger
	now     func() time.Time
}

type ExportResult struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Rows int    `json:"rows"`
}

// ExportOverdue uploads the actor's overdue list as CSV and returns a
// presigned link to it.
func (r *Reports) ExportOverdue(ctx context.Context, actor models.Actor) (*ExportResult, error) {
	if r.Archive == nil {
		return nil, ErrNotConfigured
	}
	rows, err := r.Engine.ListOverdue(ctx, actor)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := WriteOverdueCSV(&buf, rows); err != nil {
		return nil, err
	}
	stamp := r.clock().UTC().Format("20060102T150405Z")
	key := "reports/overdue/" + stamp + "-" + uuid.NewString() + ".csv"
	if err := r.Archive.PutReport(ctx, key, buf.Bytes(), "text/csv"); err != nil {
		return nil, err
	}
	url, err := r.Archive.PresignedURL(ctx, key, r.URLTTL, "overdue-"+stamp+".csv")
	if err != nil {
		return nil, err
	}
	r.logger().InfoContext(ctx, "overdue report exported",
		slog.String("key", key), slog.Int("rows", len(rows)), slog.String("by", actor.UserID))
	return &ExportResult{Key: key, URL: url, Rows: len(rows)}, nil
}

type NoticeFailure struct {
	LoanID string `json:"loanId"`
	Error  string `json:"error"`
}

type NoticeResult struct {
	Sent   []models.NoticeLog `json:"sent"`
	Failed []NoticeFailure    `json:"failed"`
}

// SendOverdueNotices mails every overdue borrower the actor can see and logs
// each delivered notice. Delivery failures are collected, not fatal.
func (r *Reports) SendOverdueNotices(ctx context.Context, actor models.Actor) (*NoticeResult, error) {
	if r.Mailer == nil {
		return nil, ErrNotConfigured
	}
	notices, err := r.Engine.OverdueNotices(ctx, actor)
	if err != nil {
		return nil, err
	}
	res := &NoticeResult{Sent: []models.NoticeLog{}, Failed: []NoticeFailure{}}
	for _, n := range notices {
		if err := r.Mailer.SendNotice(ctx, n); err != nil {
			r.logger().WarnContext(ctx, "overdue notice failed",
				slog.String("loan_id", n.ID), slog.Any("error", err))
			res.Failed = append(res.Failed, NoticeFailure{LoanID: n.ID, Error: err.Error()})
			continue
		}
		entry, err := r.Engine.RecordNotice(ctx, actor, n)
		if err != nil {
			return res, err
		}
		res.Sent = append(res.Sent, *entry)
	}
	return res, nil
}

func (r *Reports) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

func (r *Reports) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
