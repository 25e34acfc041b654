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

func (db *DB) InsertReview(ctx context.Context, r *models.Review) error {
	_, err := db.Reviews().InsertOne(ctx, r, options.InsertOne())
	if mongo.IsDuplicateKeyError(err) {
		return circulation.Conflict(circulation.ErrAlreadyReviewed, r.BookID)
	}
	return classify(err)
}

func (db *DB) ReviewByID(ctx context.Context, id string) (*models.Review, error) {
	var r models.Review
	err := db.Reviews().FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, circulation.NotFound(circulation.ErrReviewNotFound, id)
	}
	if err != nil {
		return nil, classify(err)
	}
	return &r, nil
}

func (db *DB) ApproveReview(ctx context.Context, id, approvedBy string) error {
	res, err := db.Reviews().UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"isApproved": true, "approvedBy": approvedBy}})
	if err != nil {
		return classify(err)
	}
	if res.MatchedCount == 0 {
		return circulation.NotFound(circulation.ErrReviewNotFound, id)
	}
	return nil
}

func (db *DB) DeleteReview(ctx context.Context, id string) error {
	res, err := db.Reviews().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return classify(err)
	}
	if res.DeletedCount == 0 {
		return circulation.NotFound(circulation.ErrReviewNotFound, id)
	}
	return nil
}

func (db *DB) ListReviews(ctx context.Context, f circulation.ReviewFilter) ([]models.Review, error) {
	filter := bson.M{}
	if f.BookID != "" {
		filter["bookId"] = f.BookID
	}
	if f.ReviewerID != "" {
		filter["reviewerId"] = f.ReviewerID
	}
	if f.BranchID != "" {
		filter["branchId"] = f.BranchID
	}
	if f.Approved != nil {
		filter["isApproved"] = *f.Approved
	}
	cur, err := db.Reviews().Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, classify(err)
	}
	defer cur.Close(ctx)
	reviews := []models.Review{}
	if err := cur.All(ctx, &reviews); err != nil {
		return nil, classify(err)
	}
	return reviews, nil
}
