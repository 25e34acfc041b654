package service

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/kevinaaaquil/circulation/circulation"
)

var overdueHeader = []string{
	"loan_id", "book_id", "borrower_id", "branch_id",
	"borrow_date", "due_date", "days_overdue", "accrued_fine",
}

// WriteOverdueCSV renders overdue loans as CSV with a header row.
func WriteOverdueCSV(w io.Writer, rows []circulation.OverdueLoan) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(overdueHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{
			r.ID,
			r.BookID,
			r.BorrowerID,
			r.BranchID,
			r.BorrowDate.UTC().Format(time.RFC3339),
			r.DueDate.UTC().Format(time.RFC3339),
			strconv.Itoa(r.DaysOverdue),
			r.AccruedFine.StringFixed(2),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
