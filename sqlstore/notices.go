package sqlstore

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"github.com/kevinaaaquil/circulation/models"
)

func (s *Store) InsertNoticeLog(ctx context.Context, l *models.NoticeLog) error {
	_, err := s.exec(ctx, s.db, s.dialect.Insert("notice_logs").Rows(goqu.Record{
		"id":          l.ID,
		"loan_id":     l.LoanID,
		"borrower_id": l.BorrowerID,
		"to_email":    l.ToEmail,
		"sent_by":     l.SentBy,
		"sent_at":     l.SentAt,
	}).Prepared(true))
	return classify(err)
}
