// Package txn runs multi-document writes inside a MongoDB transaction, falling
// back to a plain sequential run when the deployment cannot host transactions
// (for example a standalone mongod used in development).
//
// Callers that rely on the fallback must order their writes so that a partial
// run never exposes a broken invariant.
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Server error codes meaning "this deployment cannot run the transaction".
var notSupportedCodes = map[int32]bool{
	20:  true,
	51:  true,
	263: true,
}

var notSupportedKeywords = []string{
	"transaction",
	"replica set",
	"session",
	"not supported",
	"illegal operation",
}

// IsNotSupported reports whether err says transactions are unavailable.
// Command errors are matched on code; anything else needs at least two of
// the known keywords in its message.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) {
		if notSupportedCodes[ce.Code] {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	hits := 0
	for _, kw := range notSupportedKeywords {
		if strings.Contains(msg, kw) {
			hits++
		}
	}
	return hits >= 2
}

type activeKey struct{}

// Active reports whether ctx belongs to a callback running inside a
// transaction started by Run. It is false on the sequential fallback, where
// callers must repair partial writes themselves.
func Active(ctx context.Context) bool {
	v, _ := ctx.Value(activeKey{}).(bool)
	return v
}

// Run executes fn inside a transaction on db's client. If the server rejects
// the transaction as unsupported, fn is run once more without one.
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn func(ctx context.Context) error) error {
	sess, err := db.Client().StartSession()
	if err != nil {
		if IsNotSupported(err) {
			warnFallback(log, err)
			return fn(ctx)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(context.WithValue(sc, activeKey{}, true))
	})
	if err != nil && IsNotSupported(err) {
		warnFallback(log, err)
		return fn(ctx)
	}
	return err
}

func warnFallback(log *zap.Logger, err error) {
	if log == nil {
		return
	}
	log.Warn("transactions not supported, running writes sequentially", zap.Error(err))
}
