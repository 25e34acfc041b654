package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"github.com/kevinaaaquil/circulation/circulation"
	"github.com/kevinaaaquil/circulation/models"
)

const tableLoans = "loans"

var loanColumns = []interface{}{
	"id", "book_id", "borrower_id", "issued_by", "returned_by", "borrow_date",
	"due_date", "return_date", "status", "fine", "branch_id",
}

// CreateLoan takes a copy off the shelf and records the loan in one
// transaction. The decrement is conditional on a copy being left, so
// concurrent issues of the last copy cannot both succeed.
func (s *Store) CreateLoan(ctx context.Context, loan *models.Loan) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		n, err := s.exec(ctx, tx, s.dialect.Update(tableBooks).
			Set(goqu.Record{"available_copies": goqu.L("available_copies - 1")}).
			Where(goqu.C("id").Eq(loan.BookID), goqu.C("available_copies").Gt(0)).
			Prepared(true))
		if err != nil {
			return err
		}
		if n == 0 {
			if _, err := s.bookByID(ctx, tx, loan.BookID); err != nil {
				return err
			}
			return circulation.Unavailable(circulation.ErrBookUnavailable, loan.BookID)
		}

		_, err = s.exec(ctx, tx, s.dialect.Insert(tableLoans).Rows(goqu.Record{
			"id":          loan.ID,
			"book_id":     loan.BookID,
			"borrower_id": loan.BorrowerID,
			"issued_by":   loan.IssuedBy,
			"returned_by": loan.ReturnedBy,
			"borrow_date": loan.BorrowDate,
			"due_date":    loan.DueDate,
			"status":      string(loan.Status),
			"fine":        loan.Fine.String(),
			"branch_id":   loan.BranchID,
		}).Prepared(true))
		if isUniqueViolation(err) {
			return circulation.Conflict(circulation.ErrDuplicateActiveLoan, loan.BookID)
		}
		return err
	})
}

// CloseLoan marks an active loan returned and puts the copy back on the shelf
// in one transaction.
func (s *Store) CloseLoan(ctx context.Context, ret circulation.LoanReturn) (*models.Loan, error) {
	var loan *models.Loan
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		current, err := s.loanByID(ctx, tx, ret.LoanID)
		if err != nil {
			return err
		}
		n, err := s.exec(ctx, tx, s.dialect.Update(tableLoans).
			Set(goqu.Record{
				"status":      string(models.LoanReturned),
				"return_date": ret.ReturnDate,
				"returned_by": ret.ReturnedBy,
				"fine":        ret.Fine.String(),
			}).
			Where(goqu.C("id").Eq(ret.LoanID), goqu.C("status").Eq(string(models.LoanActive))).
			Prepared(true))
		if err != nil {
			return err
		}
		if n == 0 {
			return circulation.Conflict(circulation.ErrAlreadyReturned, ret.LoanID)
		}

		n, err = s.exec(ctx, tx, s.dialect.Update(tableBooks).
			Set(goqu.Record{"available_copies": goqu.L("available_copies + 1")}).
			Where(goqu.C("id").Eq(current.BookID), goqu.L("available_copies < total_copies")).
			Prepared(true))
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("sqlstore: book %s has no copy out for loan %s", current.BookID, ret.LoanID)
		}

		returned := ret.ReturnDate
		current.Status = models.LoanReturned
		current.ReturnDate = &returned
		current.ReturnedBy = ret.ReturnedBy
		current.Fine = ret.Fine
		loan = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

func (s *Store) LoanByID(ctx context.Context, id string) (*models.Loan, error) {
	return s.loanByID(ctx, s.db, id)
}

func (s *Store) loanByID(ctx context.Context, q querier, id string) (*models.Loan, error) {
	var loan models.Loan
	err := s.get(ctx, q, &loan, s.dialect.From(tableLoans).Select(loanColumns...).
		Where(goqu.C("id").Eq(id)).Prepared(true))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, circulation.NotFound(circulation.ErrLoanNotFound, id)
	}
	if err != nil {
		return nil, classify(err)
	}
	return &loan, nil
}

func (s *Store) ListLoans(ctx context.Context, f circulation.LoanFilter) ([]models.Loan, error) {
	var where []exp.Expression
	if f.BranchID != "" {
		where = append(where, goqu.C("branch_id").Eq(f.BranchID))
	}
	if f.BookID != "" {
		where = append(where, goqu.C("book_id").Eq(f.BookID))
	}
	if f.BorrowerID != "" {
		where = append(where, goqu.C("borrower_id").Eq(f.BorrowerID))
	}
	if f.Status != "" {
		where = append(where, goqu.C("status").Eq(string(f.Status)))
	}
	if f.DueBefore != nil {
		where = append(where, goqu.C("due_date").Lt(*f.DueBefore))
	}
	loans := []models.Loan{}
	err := s.selectAll(ctx, s.db, &loans, s.dialect.From(tableLoans).Select(loanColumns...).
		Where(where...).
		Order(goqu.C("borrow_date").Desc(), goqu.C("id").Asc()).
		Prepared(true))
	if err != nil {
		return nil, classify(err)
	}
	return loans, nil
}
