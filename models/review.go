package models

import "time"

// Review is a reader's rating of a title, published only once approved.
type Review struct {
	ID         string    `bson:"_id" json:"id" db:"id"`
	BookID     string    `bson:"bookId" json:"bookId" db:"book_id"`
	ReviewerID string    `bson:"reviewerId" json:"reviewerId" db:"reviewer_id"`
	LoanID     string    `bson:"loanId" json:"loanId" db:"loan_id"`
	Rating     int       `bson:"rating" json:"rating" db:"rating"`
	Comment    string    `bson:"comment" json:"comment" db:"comment"`
	IsApproved bool      `bson:"isApproved" json:"isApproved" db:"is_approved"`
	ApprovedBy string    `bson:"approvedBy,omitempty" json:"approvedBy,omitempty" db:"approved_by"`
	BranchID   string    `bson:"branchId" json:"branchId" db:"branch_id"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt" db:"created_at"`
}
