package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kevinaaaquil/circulation/circulation"
	"github.com/kevinaaaquil/circulation/models"
)

type ReviewsHandler struct {
	base
	Engine *circulation.Engine
}

type ModerateRequest struct {
	Approve bool `json:"approve"`
}

// Eligible lists the titles the caller may still review.
func (h *ReviewsHandler) Eligible(w http.ResponseWriter, r *http.Request) {
	var out []circulation.EligibleBook
	err := h.run(r, func(ctx context.Context) (err error) {
		out, err = h.Engine.GetEligibleBooks(ctx, actorOf(r).UserID)
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ReviewsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req circulation.ReviewInput
	if !decodeJSON(w, r, &req) {
		return
	}
	var review *models.Review
	err := h.run(r, func(ctx context.Context) (err error) {
		review, err = h.Engine.SubmitReview(ctx, actorOf(r), req)
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (h *ReviewsHandler) Pending(w http.ResponseWriter, r *http.Request) {
	var out []models.Review
	err := h.run(r, func(ctx context.Context) (err error) {
		out, err = h.Engine.PendingReviews(ctx, actorOf(r))
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Moderate approves a review, or deletes it when approve is false.
func (h *ReviewsHandler) Moderate(w http.ResponseWriter, r *http.Request) {
	var req ModerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var review *models.Review
	err := h.run(r, func(ctx context.Context) (err error) {
		review, err = h.Engine.ModerateReview(ctx, actorOf(r), chi.URLParam(r, "id"), req.Approve)
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if review == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, review)
}
