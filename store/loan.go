package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kevinaaaquil/circulation/circulation"
	"github.com/kevinaaaquil/circulation/models"
)

// loanDocument is the stored shape of a loan; fines are Decimal128.
type loanDocument struct {
	ID         string               `bson:"_id"`
	BookID     string               `bson:"bookId"`
	BorrowerID string               `bson:"borrowerId"`
	IssuedBy   string               `bson:"issuedBy"`
	ReturnedBy string               `bson:"returnedBy,omitempty"`
	BorrowDate time.Time            `bson:"borrowDate"`
	DueDate    time.Time            `bson:"dueDate"`
	ReturnDate *time.Time           `bson:"returnDate,omitempty"`
	Status     string               `bson:"status"`
	Fine       primitive.Decimal128 `bson:"fine"`
	BranchID   string               `bson:"branchId"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	return primitive.ParseDecimal128(d.String())
}

func newLoanDocument(l *models.Loan) (*loanDocument, error) {
	fine, err := toDecimal128(l.Fine)
	if err != nil {
		return nil, err
	}
	return &loanDocument{
		ID:         l.ID,
		BookID:     l.BookID,
		BorrowerID: l.BorrowerID,
		IssuedBy:   l.IssuedBy,
		ReturnedBy: l.ReturnedBy,
		BorrowDate: l.BorrowDate,
		DueDate:    l.DueDate,
		ReturnDate: l.ReturnDate,
		Status:     string(l.Status),
		Fine:       fine,
		BranchID:   l.BranchID,
	}, nil
}

func (d *loanDocument) model() (*models.Loan, error) {
	fine, err := decimal.NewFromString(d.Fine.String())
	if err != nil {
		return nil, err
	}
	return &models.Loan{
		ID:         d.ID,
		BookID:     d.BookID,
		BorrowerID: d.BorrowerID,
		IssuedBy:   d.IssuedBy,
		ReturnedBy: d.ReturnedBy,
		BorrowDate: d.BorrowDate.UTC(),
		DueDate:    d.DueDate.UTC(),
		ReturnDate: utcPtr(d.ReturnDate),
		Status:     models.LoanStatus(d.Status),
		Fine:       fine,
		BranchID:   d.BranchID,
	}, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// CreateLoan decrements availableCopies only while it is positive and inserts
// the loan in the same transaction.
func (db *DB) CreateLoan(ctx context.Context, loan *models.Loan) error {
	doc, err := newLoanDocument(loan)
	if err != nil {
		return err
	}
	return db.inTransaction(ctx, func(sc mongo.SessionContext) error {
		err := db.Books().FindOneAndUpdate(sc,
			bson.M{"_id": loan.BookID, "availableCopies": bson.M{"$gt": 0}},
			bson.M{"$inc": bson.M{"availableCopies": -1}},
		).Err()
		if errors.Is(err, mongo.ErrNoDocuments) {
			if _, err := db.bookByID(sc, loan.BookID); err != nil {
				return err
			}
			return circulation.Unavailable(circulation.ErrBookUnavailable, loan.BookID)
		}
		if err != nil {
			return err
		}

		_, err = db.Loans().InsertOne(sc, doc)
		if mongo.IsDuplicateKeyError(err) {
			return circulation.Conflict(circulation.ErrDuplicateActiveLoan, loan.BookID)
		}
		return err
	})
}

// CloseLoan flips an active loan to returned and puts the copy back in the
// same transaction.
func (db *DB) CloseLoan(ctx context.Context, ret circulation.LoanReturn) (*models.Loan, error) {
	fine, err := toDecimal128(ret.Fine)
	if err != nil {
		return nil, err
	}
	var closed *models.Loan
	err = db.inTransaction(ctx, func(sc mongo.SessionContext) error {
		current, err := db.loanByID(sc, ret.LoanID)
		if err != nil {
			return err
		}
		var doc loanDocument
		err = db.Loans().FindOneAndUpdate(sc,
			bson.M{"_id": ret.LoanID, "status": string(models.LoanActive)},
			bson.M{"$set": bson.M{
				"status":     string(models.LoanReturned),
				"returnDate": ret.ReturnDate,
				"returnedBy": ret.ReturnedBy,
				"fine":       fine,
			}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return circulation.Conflict(circulation.ErrAlreadyReturned, ret.LoanID)
		}
		if err != nil {
			return err
		}

		res, err := db.Books().UpdateOne(sc,
			bson.M{
				"_id":   current.BookID,
				"$expr": bson.M{"$lt": bson.A{"$availableCopies", "$totalCopies"}},
			},
			bson.M{"$inc": bson.M{"availableCopies": 1}},
		)
		if err != nil {
			return err
		}
		if res.ModifiedCount == 0 {
			return fmt.Errorf("store: close loan %s: book %s has no copy out", ret.LoanID, current.BookID)
		}
		closed, err = doc.model()
		return err
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

func (db *DB) LoanByID(ctx context.Context, id string) (*models.Loan, error) {
	loan, err := db.loanByID(ctx, id)
	return loan, classify(err)
}

// loanByID returns driver errors unclassified so that transaction callbacks
// keep their error labels.
func (db *DB) loanByID(ctx context.Context, id string) (*models.Loan, error) {
	var doc loanDocument
	err := db.Loans().FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, circulation.NotFound(circulation.ErrLoanNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return doc.model()
}

func (db *DB) ListLoans(ctx context.Context, f circulation.LoanFilter) ([]models.Loan, error) {
	filter := bson.M{}
	if f.BranchID != "" {
		filter["branchId"] = f.BranchID
	}
	if f.BookID != "" {
		filter["bookId"] = f.BookID
	}
	if f.BorrowerID != "" {
		filter["borrowerId"] = f.BorrowerID
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	if f.DueBefore != nil {
		filter["dueDate"] = bson.M{"$lt": *f.DueBefore}
	}
	cur, err := db.Loans().Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "borrowDate", Value: -1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, classify(err)
	}
	defer cur.Close(ctx)
	var docs []loanDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classify(err)
	}
	loans := make([]models.Loan, 0, len(docs))
	for i := range docs {
		l, err := docs[i].model()
		if err != nil {
			return nil, err
		}
		loans = append(loans, *l)
	}
	return loans, nil
}
