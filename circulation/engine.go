// Package circulation issues and returns book copies, computes overdue fines,
// gates reviews on completed loans and authorizes every mutating call.
package circulation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/kevinaaaquil/circulation/models"
)

const (
	DefaultLoanPeriod    = 14 * day
	DefaultStoreTimeout  = 5 * time.Second
	DefaultCommentMaxLen = 1000
)

// DefaultFineRate is one currency unit per overdue day.
var DefaultFineRate = decimal.NewFromInt(1)

// Engine is the circulation core. It is safe for concurrent use; all shared
// state lives in the Store.
type Engine struct {
	store        Store
	now          func() time.Time
	timeout      time.Duration
	loanPeriod   time.Duration
	fineRate     decimal.Decimal
	commentMax   int
	passwordCost int
	logger       *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithStoreTimeout bounds every store round trip of an operation.
func WithStoreTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithLoanPeriod(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.loanPeriod = d
		}
	}
}

func WithFineRate(rate decimal.Decimal) Option {
	return func(e *Engine) {
		if !rate.IsNegative() {
			e.fineRate = rate
		}
	}
}

// WithCommentLimit sets the maximum review comment length in runes.
func WithCommentLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.commentMax = n
		}
	}
}

// WithPasswordCost sets the bcrypt cost for registered users.
func WithPasswordCost(cost int) Option {
	return func(e *Engine) { e.passwordCost = cost }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		now:          time.Now,
		timeout:      DefaultStoreTimeout,
		loanPeriod:   DefaultLoanPeriod,
		fineRate:     DefaultFineRate,
		commentMax:   DefaultCommentMaxLen,
		passwordCost: bcrypt.DefaultCost,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FineRate returns the configured fine per overdue day.
func (e *Engine) FineRate() decimal.Decimal { return e.fineRate }

func (e *Engine) clock() time.Time { return e.now().UTC() }

func (e *Engine) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.timeout)
}

// IssueLoan lends one copy of bookID to borrowerID for the loan period.
func (e *Engine) IssueLoan(ctx context.Context, actor models.Actor, bookID, borrowerID string) (*models.Loan, error) {
	if err := authorize(actor, ActionIssueLoan, Target{}); err != nil {
		return nil, err
	}
	ctx, cancel := e.bounded(ctx)
	defer cancel()

	if _, err := e.store.BookByID(ctx, bookID); err != nil {
		return nil, storeErr(err)
	}
	borrower, err := e.store.UserByID(ctx, borrowerID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, NotFound(ErrBorrowerNotFound, borrowerID)
		}
		return nil, storeErr(err)
	}
	if !borrower.IsActive {
		return nil, InvalidInput(ErrBorrowerInactive, borrowerID)
	}

	now := e.clock()
	branchID := borrower.BranchID
	if branchID == "" {
		branchID = actor.BranchID
	}
	loan := &models.Loan{
		ID:         uuid.NewString(),
		BookID:     bookID,
		BorrowerID: borrowerID,
		IssuedBy:   actor.UserID,
		BorrowDate: now,
		DueDate:    now.Add(e.loanPeriod),
		Status:     models.LoanActive,
		Fine:       decimal.Zero,
		BranchID:   branchID,
	}
	if err := e.store.CreateLoan(ctx, loan); err != nil {
		return nil, storeErr(err)
	}
	e.logger.InfoContext(ctx, "loan issued",
		slog.String("loan_id", loan.ID),
		slog.String("book_id", bookID),
		slog.String("borrower_id", borrowerID),
		slog.String("issued_by", actor.UserID))
	return loan, nil
}

// ReturnLoan closes an active loan and charges the overdue fine.
func (e *Engine) ReturnLoan(ctx context.Context, actor models.Actor, loanID string) (*models.Loan, error) {
	if err := authorize(actor, ActionReturnLoan, Target{}); err != nil {
		return nil, err
	}
	ctx, cancel := e.bounded(ctx)
	defer cancel()

	loan, err := e.store.LoanByID(ctx, loanID)
	if err != nil {
		return nil, storeErr(err)
	}
	if loan.Status != models.LoanActive {
		return nil, Conflict(ErrAlreadyReturned, loanID)
	}
	now := e.clock()
	closed, err := e.store.CloseLoan(ctx, LoanReturn{
		LoanID:     loanID,
		ReturnedBy: actor.UserID,
		ReturnDate: now,
		Fine:       ComputeFine(loan.DueDate, now, e.fineRate),
	})
	if err != nil {
		return nil, storeErr(err)
	}
	e.logger.InfoContext(ctx, "loan returned",
		slog.String("loan_id", loanID),
		slog.String("returned_by", actor.UserID),
		slog.String("fine", closed.Fine.String()))
	return closed, nil
}

// OverdueLoan is an active loan past due, with figures computed at query time.
type OverdueLoan struct {
	models.Loan
	DaysOverdue int             `json:"daysOverdue"`
	AccruedFine decimal.Decimal `json:"accruedFine"`
}

// ListOverdue returns active loans past due. Librarians see their own branch.
func (e *Engine) ListOverdue(ctx context.Context, actor models.Actor) ([]OverdueLoan, error) {
	if err := authorize(actor, ActionViewOverdue, Target{BranchID: actor.BranchID}); err != nil {
		return nil, err
	}
	ctx, cancel := e.bounded(ctx)
	defer cancel()

	now := e.clock()
	filter := LoanFilter{Status: models.LoanActive, DueBefore: &now}
	if actor.Role == models.RoleLibrarian {
		filter.BranchID = actor.BranchID
	}
	loans, err := e.store.ListLoans(ctx, filter)
	if err != nil {
		return nil, storeErr(err)
	}
	out := make([]OverdueLoan, 0, len(loans))
	for _, l := range loans {
		if !l.IsOverdue(now) {
			continue
		}
		l.Overdue = true
		out = append(out, OverdueLoan{
			Loan:        l,
			DaysOverdue: OverdueDays(l.DueDate, now),
			AccruedFine: ComputeFine(l.DueDate, now, e.fineRate),
		})
	}
	return out, nil
}

// ListLoans returns loans matching filter. Librarians are pinned to their branch.
func (e *Engine) ListLoans(ctx context.Context, actor models.Actor, filter LoanFilter) ([]models.Loan, error) {
	if err := authorize(actor, ActionViewAllLoans, Target{BranchID: actor.BranchID}); err != nil {
		return nil, err
	}
	if actor.Role == models.RoleLibrarian {
		filter.BranchID = actor.BranchID
	}
	return e.listLoans(ctx, filter)
}

// MyLoans returns the caller's own loans.
func (e *Engine) MyLoans(ctx context.Context, actor models.Actor) ([]models.Loan, error) {
	if !actor.IsActive || actor.UserID == "" {
		return nil, Forbidden(ErrUnauthorized, actor.UserID)
	}
	return e.listLoans(ctx, LoanFilter{BorrowerID: actor.UserID})
}

func (e *Engine) listLoans(ctx context.Context, filter LoanFilter) ([]models.Loan, error) {
	ctx, cancel := e.bounded(ctx)
	defer cancel()

	loans, err := e.store.ListLoans(ctx, filter)
	if err != nil {
		return nil, storeErr(err)
	}
	now := e.clock()
	for i := range loans {
		loans[i].Overdue = loans[i].IsOverdue(now)
	}
	return loans, nil
}

// NewBook is the input to AddBook.
type NewBook struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	ISBN        string `json:"isbn"`
	TotalCopies int    `json:"totalCopies"`
	BranchID    string `json:"branchId"`
}

// AddBook adds a title with all of its copies on the shelf.
func (e *Engine) AddBook(ctx context.Context, actor models.Actor, nb NewBook) (*models.Book, error) {
	if nb.BranchID == "" {
		nb.BranchID = actor.BranchID
	}
	if err := authorize(actor, ActionManageCatalogue, Target{BranchID: nb.BranchID}); err != nil {
		return nil, err
	}
	nb.Title = strings.TrimSpace(nb.Title)
	if nb.Title == "" || nb.TotalCopies < 1 {
		return nil, InvalidInput(ErrInvalidBook, "")
	}
	ctx, cancel := e.bounded(ctx)
	defer cancel()

	book := &models.Book{
		ID:              uuid.NewString(),
		Title:           nb.Title,
		Author:          strings.TrimSpace(nb.Author),
		ISBN:            strings.TrimSpace(nb.ISBN),
		TotalCopies:     nb.TotalCopies,
		AvailableCopies: nb.TotalCopies,
		BranchID:        nb.BranchID,
		CreatedAt:       e.clock(),
	}
	if err := e.store.InsertBook(ctx, book); err != nil {
		return nil, storeErr(err)
	}
	return book, nil
}

// RemoveBook deletes a title that has no copies on loan.
func (e *Engine) RemoveBook(ctx context.Context, actor models.Actor, bookID string) error {
	if err := authorize(actor, ActionRemoveBook, Target{}); err != nil {
		return err
	}
	ctx, cancel := e.bounded(ctx)
	defer cancel()
	return storeErr(e.store.DeleteBook(ctx, bookID))
}

func (e *Engine) GetBook(ctx context.Context, bookID string) (*models.Book, error) {
	ctx, cancel := e.bounded(ctx)
	defer cancel()
	book, err := e.store.BookByID(ctx, bookID)
	return book, storeErr(err)
}
