package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/kevinaaaquil/circulation/circulation"
	"github.com/kevinaaaquil/circulation/models"
)

const tableReviews = "reviews"

var reviewColumns = []interface{}{
	"id", "book_id", "reviewer_id", "loan_id", "rating", "comment",
	"is_approved", "approved_by", "branch_id", "created_at",
}

// InsertReview relies on UNIQUE (book_id, reviewer_id) to close the race
// between the eligibility check and the insert.
func (s *Store) InsertReview(ctx context.Context, r *models.Review) error {
	_, err := s.exec(ctx, s.db, s.dialect.Insert(tableReviews).Rows(goqu.Record{
		"id":          r.ID,
		"book_id":     r.BookID,
		"reviewer_id": r.ReviewerID,
		"loan_id":     r.LoanID,
		"rating":      r.Rating,
		"comment":     r.Comment,
		"is_approved": r.IsApproved,
		"approved_by": r.ApprovedBy,
		"branch_id":   r.BranchID,
		"created_at":  r.CreatedAt,
	}).Prepared(true))
	if isUniqueViolation(err) {
		return circulation.Conflict(circulation.ErrAlreadyReviewed, r.BookID)
	}
	return classify(err)
}

func (s *Store) ReviewByID(ctx context.Context, id string) (*models.Review, error) {
	var r models.Review
	err := s.get(ctx, s.db, &r, s.dialect.From(tableReviews).Select(reviewColumns...).
		Where(goqu.C("id").Eq(id)).Prepared(true))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, circulation.NotFound(circulation.ErrReviewNotFound, id)
	}
	if err != nil {
		return nil, classify(err)
	}
	return &r, nil
}

func (s *Store) ApproveReview(ctx context.Context, id, approvedBy string) error {
	n, err := s.exec(ctx, s.db, s.dialect.Update(tableReviews).
		Set(goqu.Record{"is_approved": true, "approved_by": approvedBy}).
		Where(goqu.C("id").Eq(id)).Prepared(true))
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		return circulation.NotFound(circulation.ErrReviewNotFound, id)
	}
	return nil
}

func (s *Store) DeleteReview(ctx context.Context, id string) error {
	n, err := s.exec(ctx, s.db, s.dialect.Delete(tableReviews).
		Where(goqu.C("id").Eq(id)).Prepared(true))
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		return circulation.NotFound(circulation.ErrReviewNotFound, id)
	}
	return nil
}

func (s *Store) ListReviews(ctx context.Context, f circulation.ReviewFilter) ([]models.Review, error) {
	var where []exp.Expression
	if f.BookID != "" {
		where = append(where, goqu.C("book_id").Eq(f.BookID))
	}
	if f.ReviewerID != "" {
		where = append(where, goqu.C("reviewer_id").Eq(f.ReviewerID))
	}
	if f.BranchID != "" {
		where = append(where, goqu.C("branch_id").Eq(f.BranchID))
	}
	if f.Approved != nil {
		where = append(where, goqu.C("is_approved").Eq(*f.Approved))
	}
	reviews := []models.Review{}
	err := s.selectAll(ctx, s.db, &reviews, s.dialect.From(tableReviews).Select(reviewColumns...).
		Where(where...).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Asc()).
		Prepared(true))
	if err != nil {
		return nil, classify(err)
	}
	return reviews, nil
}
