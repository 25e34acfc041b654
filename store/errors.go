package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/kevinaaaquil/circulation/circulation"
)

// classify passes circulation errors through and marks network failures,
// timeouts and aborted transactions as StoreUnavailable.
func classify(err error) error {
	if err == nil || circulation.KindOf(err) != circulation.KindUnknown {
		return err
	}
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, mongo.ErrClientDisconnected) {
		return circulation.StoreFailure(err)
	}
	var se mongo.ServerError
	if errors.As(err, &se) && se.HasErrorLabel("TransientTransactionError") {
		return circulation.StoreFailure(err)
	}
	return err
}
