package circulation

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/kevinaaaquil/circulation/models"
)

const (
	minRating = 1
	maxRating = 5
)

// EligibleBook is a title the user finished reading and has not reviewed.
type EligibleBook struct {
	LoanID string      `json:"loanId"`
	Book   models.Book `json:"book"`
}

// GetEligibleBooks lists the titles userID may review, one entry per title,
// keyed to the most recently returned loan.
func (e *Engine) GetEligibleBooks(ctx context.Context, userID string) ([]EligibleBook, error) {
	ctx, cancel := e.bounded(ctx)
	defer cancel()

	loans, err := e.store.ListLoans(ctx, LoanFilter{BorrowerID: userID, Status: models.LoanReturned})
	if err != nil {
		return nil, storeErr(err)
	}
	reviews, err := e.store.ListReviews(ctx, ReviewFilter{ReviewerID: userID})
	if err != nil {
		return nil, storeErr(err)
	}
	reviewedLoans := make(map[string]bool, len(reviews))
	reviewedBooks := make(map[string]bool, len(reviews))
	for _, r := range reviews {
		reviewedLoans[r.LoanID] = true
		reviewedBooks[r.BookID] = true
	}

	sortByReturnDesc(loans)
	out := []EligibleBook{}
	for _, l := range loans {
		if reviewedLoans[l.ID] || reviewedBooks[l.BookID] {
			continue
		}
		reviewedBooks[l.BookID] = true
		book, err := e.store.BookByID(ctx, l.BookID)
		if errors.Is(err, ErrBookNotFound) {
			continue // title left the catalogue
		}
		if err != nil {
			return nil, storeErr(err)
		}
		out = append(out, EligibleBook{LoanID: l.ID, Book: *book})
	}
	return out, nil
}

func sortByReturnDesc(loans []models.Loan) {
	sort.SliceStable(loans, func(i, j int) bool {
		a, b := loans[i].ReturnDate, loans[j].ReturnDate
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.After(*b)
	})
}

// ReviewInput is the input to SubmitReview.
type ReviewInput struct {
	BookID  string `json:"bookId"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// SubmitReview records the actor's review of a title they have returned. The
// review stays hidden until a moderator approves it.
func (e *Engine) SubmitReview(ctx context.Context, actor models.Actor, in ReviewInput) (*models.Review, error) {
	if err := authorize(actor, ActionSubmitReview, Target{}); err != nil {
		return nil, err
	}
	if in.Rating == 0 {
		return nil, InvalidInput(ErrInvalidRating, in.BookID)
	}
	ctx, cancel := e.bounded(ctx)
	defer cancel()

	if _, err := e.store.BookByID(ctx, in.BookID); err != nil {
		return nil, storeErr(err)
	}
	loans, err := e.store.ListLoans(ctx, LoanFilter{
		BookID:     in.BookID,
		BorrowerID: actor.UserID,
		Status:     models.LoanReturned,
	})
	if err != nil {
		return nil, storeErr(err)
	}
	if len(loans) == 0 {
		return nil, Forbidden(ErrNoCompletedLoan, in.BookID)
	}
	existing, err := e.store.ListReviews(ctx, ReviewFilter{BookID: in.BookID, ReviewerID: actor.UserID})
	if err != nil {
		return nil, storeErr(err)
	}
	if len(existing) > 0 {
		return nil, Conflict(ErrAlreadyReviewed, in.BookID)
	}

	sortByReturnDesc(loans)
	loan := loans[0]
	review := &models.Review{
		ID:         uuid.NewString(),
		BookID:     in.BookID,
		ReviewerID: actor.UserID,
		LoanID:     loan.ID,
		Rating:     clampRating(in.Rating),
		Comment:    truncateRunes(strings.TrimSpace(in.Comment), e.commentMax),
		BranchID:   loan.BranchID,
		CreatedAt:  e.clock(),
	}
	if err := e.store.InsertReview(ctx, review); err != nil {
		return nil, storeErr(err)
	}
	return review, nil
}

func clampRating(r int) int {
	if r < minRating {
		return minRating
	}
	if r > maxRating {
		return maxRating
	}
	return r
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == max {
			return s[:pos]
		}
		i++
	}
	return s
}

// ModerateReview publishes a review, or deletes it when approve is false.
// The returned review is nil after a rejection.
func (e *Engine) ModerateReview(ctx context.Context, actor models.Actor, reviewID string, approve bool) (*models.Review, error) {
	// role check first so non-staff cannot probe review ids
	if err := authorize(actor, ActionModerateReview, Target{BranchID: actor.BranchID}); err != nil {
		return nil, err
	}
	ctx, cancel := e.bounded(ctx)
	defer cancel()

	review, err := e.store.ReviewByID(ctx, reviewID)
	if err != nil {
		return nil, storeErr(err)
	}
	if err := authorize(actor, ActionModerateReview, Target{BranchID: review.BranchID}); err != nil {
		return nil, err
	}
	if !approve {
		if err := e.store.DeleteReview(ctx, reviewID); err != nil {
			return nil, storeErr(err)
		}
		e.logger.InfoContext(ctx, "review rejected",
			slog.String("review_id", reviewID),
			slog.String("moderator", actor.UserID))
		return nil, nil
	}
	if err := e.store.ApproveReview(ctx, reviewID, actor.UserID); err != nil {
		return nil, storeErr(err)
	}
	review.IsApproved = true
	review.ApprovedBy = actor.UserID
	return review, nil
}

// BookReviews is the published side of a title's reviews.
type BookReviews struct {
	BookID        string          `json:"bookId"`
	Reviews       []models.Review `json:"reviews"`
	Count         int             `json:"count"`
	AverageRating float64         `json:"averageRating"`
}

// PublishedReviews returns the approved reviews of a title and their mean rating.
func (e *Engine) PublishedReviews(ctx context.Context, bookID string) (*BookReviews, error) {
	ctx, cancel := e.bounded(ctx)
	defer cancel()

	if _, err := e.store.BookByID(ctx, bookID); err != nil {
		return nil, storeErr(err)
	}
	approved := true
	reviews, err := e.store.ListReviews(ctx, ReviewFilter{BookID: bookID, Approved: &approved})
	if err != nil {
		return nil, storeErr(err)
	}
	ratings := make([]int, len(reviews))
	for i, r := range reviews {
		ratings[i] = r.Rating
	}
	return &BookReviews{
		BookID:        bookID,
		Reviews:       reviews,
		Count:         len(reviews),
		AverageRating: AverageRating(ratings),
	}, nil
}

// PendingReviews lists reviews awaiting moderation. Librarians see their own branch.
func (e *Engine) PendingReviews(ctx context.Context, actor models.Actor) ([]models.Review, error) {
	if err := authorize(actor, ActionModerateReview, Target{BranchID: actor.BranchID}); err != nil {
		return nil, err
	}
	ctx, cancel := e.bounded(ctx)
	defer cancel()

	pending := false
	filter := ReviewFilter{Approved: &pending}
	if actor.Role == models.RoleLibrarian {
		filter.BranchID = actor.BranchID
	}
	reviews, err := e.store.ListReviews(ctx, filter)
	return reviews, storeErr(err)
}
