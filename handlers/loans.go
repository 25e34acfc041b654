package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kevinaaaquil/circulation/circulation"
	"github.com/kevinaaaquil/circulation/models"
	"github.com/kevinaaaquil/circulation/service"
)

type LoansHandler struct {
	base
	Engine  *circulation.Engine
	Reports *service.Reports
}

type IssueLoanRequest struct {
	BookID     string `json:"bookId"`
	BorrowerID string `json:"borrowerId"`
}

func (h *LoansHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req IssueLoanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var loan *models.Loan
	err := h.run(r, func(ctx context.Context) (err error) {
		loan, err = h.Engine.IssueLoan(ctx, actorOf(r), req.BookID, req.BorrowerID)
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

func (h *LoansHandler) Return(w http.ResponseWriter, r *http.Request) {
	var loan *models.Loan
	err := h.run(r, func(ctx context.Context) (err error) {
		loan, err = h.Engine.ReturnLoan(ctx, actorOf(r), chi.URLParam(r, "id"))
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// List returns loans filtered by the status, borrowerId and bookId query
// parameters.
func (h *LoansHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := circulation.LoanFilter{
		Status:     models.LoanStatus(q.Get("status")),
		BorrowerID: q.Get("borrowerId"),
		BookID:     q.Get("bookId"),
		BranchID:   q.Get("branchId"),
	}
	var loans []models.Loan
	err := h.run(r, func(ctx context.Context) (err error) {
		loans, err = h.Engine.ListLoans(ctx, actorOf(r), filter)
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (h *LoansHandler) Mine(w http.ResponseWriter, r *http.Request) {
	var loans []models.Loan
	err := h.run(r, func(ctx context.Context) (err error) {
		loans, err = h.Engine.MyLoans(ctx, actorOf(r))
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (h *LoansHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	var rows []circulation.OverdueLoan
	err := h.run(r, func(ctx context.Context) (err error) {
		rows, err = h.Engine.ListOverdue(ctx, actorOf(r))
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// Export archives the overdue list as CSV and returns a download link.
func (h *LoansHandler) Export(w http.ResponseWriter, r *http.Request) {
	if h.Reports == nil {
		writeError(w, r, h.logger, service.ErrNotConfigured)
		return
	}
	var res *service.ExportResult
	err := h.run(r, func(ctx context.Context) (err error) {
		res, err = h.Reports.ExportOverdue(ctx, actorOf(r))
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Notices emails every visible overdue borrower. It is not retried, so a
// flaky store cannot cause duplicate mail.
func (h *LoansHandler) Notices(w http.ResponseWriter, r *http.Request) {
	if h.Reports == nil {
		writeError(w, r, h.logger, service.ErrNotConfigured)
		return
	}
	res, err := h.Reports.SendOverdueNotices(r.Context(), actorOf(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
