// Package store persists the circulation core in MongoDB. Copy accounting
// runs in multi-document transactions, so the server must be a replica set.
package store

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/kevinaaaquil/circulation/circulation"
)

type DB struct {
	Client   *mongo.Client
	Database *mongo.Database
	logger   *slog.Logger
}

var _ circulation.Store = (*DB)(nil)

func NewMongoDB(ctx context.Context, uri, dbName string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	logger.Info("connected to MongoDB", slog.String("database", dbName))
	return &DB{
		Client:   client,
		Database: client.Database(dbName),
		logger:   logger,
	}, nil
}

func (db *DB) Users() *mongo.Collection {
	return db.Database.Collection("users")
}

func (db *DB) Books() *mongo.Collection {
	return db.Database.Collection("books")
}

func (db *DB) Loans() *mongo.Collection {
	return db.Database.Collection("loans")
}

func (db *DB) Reviews() *mongo.Collection {
	return db.Database.Collection("reviews")
}

func (db *DB) NoticeLogs() *mongo.Collection {
	return db.Database.Collection("notice_logs")
}

// Locks holds guard documents that transactions write to collide on purpose.
func (db *DB) Locks() *mongo.Collection {
	return db.Database.Collection("locks")
}

func (db *DB) Disconnect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return db.Client.Disconnect(ctx)
}

// inTransaction runs fn in a majority-committed transaction. The driver
// retries fn on TransientTransactionError.
func (db *DB) inTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	sess, err := db.Client.StartSession()
	if err != nil {
		return classify(err)
	}
	defer sess.EndSession(ctx)

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	}, txOpts)
	return classify(err)
}
