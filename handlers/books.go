package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kevinaaaquil/circulation/circulation"
	"github.com/kevinaaaquil/circulation/models"
)

type BooksHandler struct {
	base
	Engine *circulation.Engine
}

func (h *BooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req circulation.NewBook
	if !decodeJSON(w, r, &req) {
		return
	}
	var book *models.Book
	err := h.run(r, func(ctx context.Context) (err error) {
		book, err = h.Engine.AddBook(ctx, actorOf(r), req)
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (h *BooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	var book *models.Book
	err := h.run(r, func(ctx context.Context) (err error) {
		book, err = h.Engine.GetBook(ctx, chi.URLParam(r, "id"))
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// Delete removes a title once every copy is back on the shelf (admin only).
func (h *BooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.run(r, func(ctx context.Context) error {
		return h.Engine.RemoveBook(ctx, actorOf(r), chi.URLParam(r, "id"))
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reviews returns the approved reviews of a title and their average rating.
func (h *BooksHandler) Reviews(w http.ResponseWriter, r *http.Request) {
	var out *circulation.BookReviews
	err := h.run(r, func(ctx context.Context) (err error) {
		out, err = h.Engine.PublishedReviews(ctx, chi.URLParam(r, "id"))
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
