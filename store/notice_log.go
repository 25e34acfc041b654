package store

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kevinaaaquil/circulation/models"
)

// InsertNoticeLog records that an overdue notice was emailed to a borrower.
func (db *DB) InsertNoticeLog(ctx context.Context, log *models.NoticeLog) error {
	_, err := db.NoticeLogs().InsertOne(ctx, log, options.InsertOne())
	return classify(err)
}
