package circulation_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kevinaaaquil/circulation/circulation"
	"github.com/kevinaaaquil/circulation/models"
	"github.com/kevinaaaquil/circulation/sqlstore"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// fixture is an engine over a throwaway SQLite store with a settable clock.
type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *sqlstore.Store
	engine *circulation.Engine

	mu  sync.Mutex
	now time.Time
}

func newFixture(t *testing.T, opts ...circulation.Option) *fixture {
	t.Helper()
	ctx := context.Background()
	s, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, sqlstore.SQLiteDSN(filepath.Join(t.TempDir(), "c.db")))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(ctx))

	f := &fixture{t: t, ctx: ctx, store: s, now: epoch}
	opts = append([]circulation.Option{
		circulation.WithClock(f.clock),
		circulation.WithPasswordCost(bcrypt.MinCost),
	}, opts...)
	f.engine = circulation.NewEngine(s, opts...)
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fixture) user(role models.Role, branch string) models.Actor {
	f.t.Helper()
	u := &models.User{
		ID:        uuid.NewString(),
		Email:     uuid.NewString() + "@example.org",
		Password:  "x",
		Role:      role,
		BranchID:  branch,
		IsActive:  true,
		CreatedAt: f.clock(),
	}
	require.NoError(f.t, f.store.InsertUser(f.ctx, u))
	return u.Actor()
}

func (f *fixture) book(copies int, branch string) *models.Book {
	f.t.Helper()
	b := &models.Book{
		ID:              uuid.NewString(),
		Title:           "Title " + branch,
		TotalCopies:     copies,
		AvailableCopies: copies,
		BranchID:        branch,
		CreatedAt:       f.clock(),
	}
	require.NoError(f.t, f.store.InsertBook(f.ctx, b))
	return b
}

// requireCopyInvariant checks 0 <= available <= total and
// available == total - active loans.
func (f *fixture) requireCopyInvariant(bookID string) {
	f.t.Helper()
	b, err := f.store.BookByID(f.ctx, bookID)
	require.NoError(f.t, err)
	active, err := f.store.ListLoans(f.ctx, circulation.LoanFilter{BookID: bookID, Status: models.LoanActive})
	require.NoError(f.t, err)
	require.GreaterOrEqual(f.t, b.AvailableCopies, 0)
	require.LessOrEqual(f.t, b.AvailableCopies, b.TotalCopies)
	require.Equal(f.t, b.TotalCopies-len(active), b.AvailableCopies)
}

// borrowAndReturn runs a full loan of bookID for reader, issued by desk.
func (f *fixture) borrowAndReturn(desk models.Actor, bookID string, reader models.Actor) *models.Loan {
	f.t.Helper()
	loan, err := f.engine.IssueLoan(f.ctx, desk, bookID, reader.UserID)
	require.NoError(f.t, err)
	f.advance(time.Hour)
	returned, err := f.engine.ReturnLoan(f.ctx, desk, loan.ID)
	require.NoError(f.t, err)
	return returned
}
