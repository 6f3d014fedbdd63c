// internal/app/system/txn/txn.go
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// WithTransaction runs fn inside a MongoDB multi-document transaction.
//
// Standalone servers (and some hosted Mongo look-alikes) reject transactions
// entirely. When that happens the work still needs to run, so fn is retried
// once outside a transaction. Callers must order their writes so the
// sequential fallback never leaves an invalid intermediate state visible for
// longer than the window between two writes.
func WithTransaction(ctx context.Context, client *mongo.Client, logger *zap.Logger, fn func(ctx context.Context) error) error {
	sess, err := client.StartSession()
	if err != nil {
		if IsNotSupported(err) {
			if logger != nil {
				logger.Debug("sessions unsupported, running without transaction", zap.Error(err))
			}
			return fn(ctx)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		if logger != nil {
			logger.Debug("transactions unsupported, running sequentially", zap.Error(err))
		}
		return fn(ctx)
	}
	return err
}

// IsNotSupported reports whether err indicates the server cannot run
// multi-document transactions (standalone mongod, old wire version, etc.).
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) {
		// 20 IllegalOperation (standalone), 51 no such transaction support,
		// 263 OperationNotSupportedInTransaction
		switch ce.Code {
		case 20, 51, 263:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	pairs := [][2]string{
		{"transaction", "replica set"},
		{"session", "not supported"},
		{"transaction", "session"},
		{"illegal operation", "transaction"},
	}
	for _, p := range pairs {
		if strings.Contains(msg, p[0]) && strings.Contains(msg, p[1]) {
			return true
		}
	}
	return false
}
