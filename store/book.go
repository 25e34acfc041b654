package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kevinaaaquil/circulation/circulation"
	"github.com/kevinaaaquil/circulation/models"
)

func (db *DB) InsertBook(ctx context.Context, book *models.Book) error {
	_, err := db.Books().InsertOne(ctx, book, options.InsertOne())
	return classify(err)
}

func (db *DB) BookByID(ctx context.Context, id string) (*models.Book, error) {
	return db.bookByID(ctx, id)
}

func (db *DB) bookByID(ctx context.Context, id string) (*models.Book, error) {
	var book models.Book
	err := db.Books().FindOne(ctx, bson.M{"_id": id}).Decode(&book)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, circulation.NotFound(circulation.ErrBookNotFound, id)
	}
	if err != nil {
		return nil, classify(err)
	}
	return &book, nil
}

// DeleteBook removes a book only while every copy is on the shelf.
func (db *DB) DeleteBook(ctx context.Context, id string) error {
	res, err := db.Books().DeleteOne(ctx, bson.M{
		"_id":   id,
		"$expr": bson.M{"$eq": bson.A{"$availableCopies", "$totalCopies"}},
	})
	if err != nil {
		return classify(err)
	}
	if res.DeletedCount == 1 {
		return nil
	}
	if _, err := db.bookByID(ctx, id); err != nil {
		return err
	}
	return circulation.Conflict(circulation.ErrBookInUse, id)
}
