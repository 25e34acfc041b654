package models

import "time"

// NoticeLog records an overdue notice emailed to a borrower.
type NoticeLog struct {
	ID         string    `bson:"_id" json:"id" db:"id"`
	LoanID     string    `bson:"loanId" json:"loanId" db:"loan_id"`
	BorrowerID string    `bson:"borrowerId" json:"borrowerId" db:"borrower_id"`
	ToEmail    string    `bson:"toEmail" json:"toEmail" db:"to_email"`
	SentBy     string    `bson:"sentBy" json:"sentBy" db:"sent_by"`
	SentAt     time.Time `bson:"sentAt" json:"sentAt" db:"sent_at"`
}
