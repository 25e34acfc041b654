package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Migrate creates the indexes the store relies on for uniqueness. Collections
// are created up front because transactions cannot create them.
func (db *DB) Migrate(ctx context.Context) error {
	existing, err := db.Database.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return classify(err)
	}
	have := make(map[string]bool, len(existing))
	for _, name := range existing {
		have[name] = true
	}
	for _, name := range []string{"users", "books", "loans", "reviews", "notice_logs", "locks"} {
		if have[name] {
			continue
		}
		if err := db.Database.CreateCollection(ctx, name); err != nil {
			return fmt.Errorf("store: create collection %s: %w", name, err)
		}
	}

	indexes := map[*mongo.Collection][]mongo.IndexModel{
		db.Users(): {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		db.Loans(): {
			{
				Keys: bson.D{{Key: "bookId", Value: 1}, {Key: "borrowerId", Value: 1}},
				Options: options.Index().
					SetName("one_active_loan").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"status": "active"}),
			},
			{Keys: bson.D{{Key: "borrowerId", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "dueDate", Value: 1}}},
		},
		db.Reviews(): {
			{
				Keys:    bson.D{{Key: "bookId", Value: 1}, {Key: "reviewerId", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}
	for coll, models := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("store: create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}
