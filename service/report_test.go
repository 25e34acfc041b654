package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinaaaquil/circulation/circulation"
	"github.com/kevinaaaquil/circulation/models"
)

func TestWriteOverdueCSV(t *testing.T) {
	borrowed := time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)
	rows := []circulation.OverdueLoan{{
		Loan: models.Loan{
			ID:         "loan-1",
			BookID:     "book-1",
			BorrowerID: "user-1",
			BranchID:   "north",
			BorrowDate: borrowed,
			DueDate:    borrowed.Add(14 * 24 * time.Hour),
		},
		DaysOverdue: 3,
		AccruedFine: decimal.RequireFromString("1.5"),
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteOverdueCSV(&buf, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, overdueHeader, records[0])
	assert.Equal(t, []string{
		"loan-1", "book-1", "user-1", "north",
		"2026-01-05T09:30:00Z", "2026-01-19T09:30:00Z", "3", "1.50",
	}, records[1])
}

func TestWriteOverdueCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOverdueCSV(&buf, nil))
	assert.Equal(t, strings.Join(overdueHeader, ",")+"\n", buf.String())
}

func TestNoticeBody(t *testing.T) {
	n := circulation.OverdueNotice{
		OverdueLoan: circulation.OverdueLoan{
			Loan:        models.Loan{DueDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
			DaysOverdue: 4,
			AccruedFine: decimal.NewFromInt(4),
		},
		Borrower: models.User{Email: "ada@example.org"},
		Book:     models.Book{Title: "Dune"},
	}
	body := noticeBody(n)
	assert.Contains(t, body, "Hello ada@example.org")
	assert.Contains(t, body, `"Dune" was due on 1 Feb 2026 and is 4 day(s) overdue`)
	assert.Contains(t, body, "4.00")

	n.Borrower.Name = "Ada"
	assert.Contains(t, noticeBody(n), "Hello Ada,")
}

func TestS3ArchivePresignedURL(t *testing.T) {
	ctx := context.Background()
	_, err := NewS3Archive(ctx, "", "us-east-1", "", "")
	require.Error(t, err)

	archive, err := NewS3Archive(ctx, "circulation-reports", "us-east-1", "AKIDEXAMPLE", "secret")
	require.NoError(t, err)

	url, err := archive.PresignedURL(ctx, "reports/overdue/x.csv", 15*time.Minute, `over"due.csv`)
	require.NoError(t, err)
	assert.Contains(t, url, "circulation-reports")
	assert.Contains(t, url, "reports/overdue/x.csv")
	assert.Contains(t, url, "X-Amz-Expires=900")
	assert.Contains(t, url, "response-content-disposition=")
}
