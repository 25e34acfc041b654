package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanActive   LoanStatus = "active"
	LoanReturned LoanStatus = "returned"
)

// Loan records one physical copy held by one borrower between issue and return.
// Overdue is never stored; it is derived from DueDate whenever loans are read.
type Loan struct {
	ID         string          `json:"id" db:"id"`
	BookID     string          `json:"bookId" db:"book_id"`
	BorrowerID string          `json:"borrowerId" db:"borrower_id"`
	IssuedBy   string          `json:"issuedBy" db:"issued_by"`
	ReturnedBy string          `json:"returnedBy,omitempty" db:"returned_by"`
	BorrowDate time.Time       `json:"borrowDate" db:"borrow_date"`
	DueDate    time.Time       `json:"dueDate" db:"due_date"`
	ReturnDate *time.Time      `json:"returnDate,omitempty" db:"return_date"`
	Status     LoanStatus      `json:"status" db:"status"`
	Fine       decimal.Decimal `json:"fine" db:"fine"`
	BranchID   string          `json:"branchId" db:"branch_id"`
	Overdue    bool            `json:"overdue" db:"-"`
}

// IsOverdue reports whether the loan is still out past its due date at now.
func (l *Loan) IsOverdue(now time.Time) bool {
	return l.Status == LoanActive && l.DueDate.Before(now)
}
