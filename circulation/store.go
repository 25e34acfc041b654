package circulation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kevinaaaquil/circulation/models"
)

// LoanFilter selects loans. Zero fields are ignored.
type LoanFilter struct {
	BranchID   string
	BookID     string
	BorrowerID string
	Status     models.LoanStatus
	DueBefore  *time.Time
}

// ReviewFilter selects reviews. Zero fields are ignored.
type ReviewFilter struct {
	BookID     string
	ReviewerID string
	BranchID   string
	Approved   *bool
}

// LoanReturn carries the fields written when a loan is closed.
type LoanReturn struct {
	LoanID     string
	ReturnedBy string
	ReturnDate time.Time
	Fine       decimal.Decimal
}

// Store is the persistence contract of the circulation core. Implementations
// report business failures as *Error values and transient failures through
// StoreFailure.
type Store interface {
	InsertBook(ctx context.Context, book *models.Book) error
	BookByID(ctx context.Context, id string) (*models.Book, error)
	// DeleteBook removes a book only while none of its copies are on loan.
	DeleteBook(ctx context.Context, id string) error

	// CreateLoan decrements the book's available copies only if one is left
	// and inserts the loan, as one atomic unit. At most one active loan may
	// exist per (book, borrower).
	CreateLoan(ctx context.Context, loan *models.Loan) error
	// CloseLoan moves an active loan to returned and gives the copy back, as
	// one atomic unit.
	CloseLoan(ctx context.Context, ret LoanReturn) (*models.Loan, error)
	LoanByID(ctx context.Context, id string) (*models.Loan, error)
	ListLoans(ctx context.Context, filter LoanFilter) ([]models.Loan, error)

	// InsertReview enforces one review per (book, reviewer).
	InsertReview(ctx context.Context, review *models.Review) error
	ReviewByID(ctx context.Context, id string) (*models.Review, error)
	ApproveReview(ctx context.Context, id, approvedBy string) error
	DeleteReview(ctx context.Context, id string) error
	ListReviews(ctx context.Context, filter ReviewFilter) ([]models.Review, error)

	InsertUser(ctx context.Context, user *models.User) error
	UserByID(ctx context.Context, id string) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, branchID string) ([]models.User, error)
	// CountUsers counts users with role, or all users when role is empty.
	CountUsers(ctx context.Context, role models.Role) (int64, error)
	SetUserRole(ctx context.Context, id string, role models.Role) error
	// DemoteAdmin gives admin id a non-admin role unless no other admin would
	// remain, in which case it returns Conflict(ErrLastAdmin). Concurrent
	// demotions are serialized so at least one admin always survives.
	DemoteAdmin(ctx context.Context, id string, role models.Role) error
	SetUserActive(ctx context.Context, id string, active bool) error

	InsertNoticeLog(ctx context.Context, log *models.NoticeLog) error
}
