package circulation

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/kevinaaaquil/circulation/models"
)

// OverdueNotice is everything needed to remind a borrower of an overdue loan.
type OverdueNotice struct {
	OverdueLoan
	Borrower models.User
	Book     models.Book
}

// OverdueNotices resolves borrower and title for every overdue loan the actor
// can see. Loans whose borrower or title no longer exists are skipped.
func (e *Engine) OverdueNotices(ctx context.Context, actor models.Actor) ([]OverdueNotice, error) {
	overdue, err := e.ListOverdue(ctx, actor)
	if err != nil {
		return nil, err
	}
	ctx, cancel := e.bounded(ctx)
	defer cancel()

	out := make([]OverdueNotice, 0, len(overdue))
	for _, o := range overdue {
		borrower, err := e.store.UserByID(ctx, o.BorrowerID)
		if errors.Is(err, ErrUserNotFound) {
			continue
		}
		if err != nil {
			return nil, storeErr(err)
		}
		book, err := e.store.BookByID(ctx, o.BookID)
		if errors.Is(err, ErrBookNotFound) {
			continue
		}
		if err != nil {
			return nil, storeErr(err)
		}
		out = append(out, OverdueNotice{OverdueLoan: o, Borrower: *borrower, Book: *book})
	}
	return out, nil
}

// RecordNotice logs that a notice for n was sent by actor.
func (e *Engine) RecordNotice(ctx context.Context, actor models.Actor, n OverdueNotice) (*models.NoticeLog, error) {
	if err := authorize(actor, ActionViewOverdue, Target{BranchID: n.BranchID}); err != nil {
		return nil, err
	}
	ctx, cancel := e.bounded(ctx)
	defer cancel()

	entry := &models.NoticeLog{
		ID:         uuid.NewString(),
		LoanID:     n.ID,
		BorrowerID: n.BorrowerID,
		ToEmail:    n.Borrower.Email,
		SentBy:     actor.UserID,
		SentAt:     e.clock(),
	}
	if err := e.store.InsertNoticeLog(ctx, entry); err != nil {
		return nil, storeErr(err)
	}
	return entry, nil
}
