package models

import "time"

// Book is a catalogue title with a bounded number of physical copies.
// AvailableCopies always equals TotalCopies minus the title's active loans.
type Book struct {
	ID              string    `bson:"_id" json:"id" db:"id"`
	Title           string    `bson:"title" json:"title" db:"title"`
	Author          string    `bson:"author,omitempty" json:"author,omitempty" db:"author"`
	ISBN            string    `bson:"isbn,omitempty" json:"isbn,omitempty" db:"isbn"`
	TotalCopies     int       `bson:"totalCopies" json:"totalCopies" db:"total_copies"`
	AvailableCopies int       `bson:"availableCopies" json:"availableCopies" db:"available_copies"`
	BranchID        string    `bson:"branchId" json:"branchId" db:"branch_id"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt" db:"created_at"`
}
