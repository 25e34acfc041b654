package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v9"

	"github.com/kevinaaaquil/circulation/circulation"
	"github.com/kevinaaaquil/circulation/models"
)

const tableBooks = "books"

var bookColumns = []interface{}{
	"id", "title", "author", "isbn", "total_copies", "available_copies", "branch_id", "created_at",
}

func (s *Store) InsertBook(ctx context.Context, book *models.Book) error {
	_, err := s.exec(ctx, s.db, s.dialect.Insert(tableBooks).Rows(goqu.Record{
		"id":               book.ID,
		"title":            book.Title,
		"author":           book.Author,
		"isbn":             book.ISBN,
		"total_copies":     book.TotalCopies,
		"available_copies": book.AvailableCopies,
		"branch_id":        book.BranchID,
		"created_at":       book.CreatedAt,
	}).Prepared(true))
	return classify(err)
}

func (s *Store) BookByID(ctx context.Context, id string) (*models.Book, error) {
	return s.bookByID(ctx, s.db, id)
}

func (s *Store) bookByID(ctx context.Context, q querier, id string) (*models.Book, error) {
	var book models.Book
	err := s.get(ctx, q, &book, s.dialect.From(tableBooks).Select(bookColumns...).
		Where(goqu.C("id").Eq(id)).Prepared(true))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, circulation.NotFound(circulation.ErrBookNotFound, id)
	}
	if err != nil {
		return nil, classify(err)
	}
	return &book, nil
}

// DeleteBook deletes the book only while every copy is on the shelf.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	n, err := s.exec(ctx, s.db, s.dialect.Delete(tableBooks).Where(
		goqu.C("id").Eq(id),
		goqu.L("available_copies = total_copies"),
	).Prepared(true))
	if err != nil {
		return classify(err)
	}
	if n == 1 {
		return nil
	}
	if _, err := s.BookByID(ctx, id); err != nil {
		return err
	}
	return circulation.Conflict(circulation.ErrBookInUse, id)
}
