// Package txn runs PinBoard's multi-document writes (counter updates next to
// the like, follow, membership or post they count) in a MongoDB transaction
// when the deployment supports one.
//
// A standalone mongod has no transactions. There the function runs once
// without a session, so counters can drift on a crash mid-write but never
// on a concurrent request.
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Func does the writes. ctx is a mongo.SessionContext inside a transaction
// and the caller's context otherwise; every operation must use it.
type Func func(ctx context.Context) error

// Run executes fn in a transaction, retrying on transient errors as the
// driver's WithTransaction does, and falls back to a plain call when the
// server cannot run transactions. log may be nil.
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn Func) error {
	session, err := db.Client().StartSession()
	if err != nil {
		warn(log, "failed to start session, running without transaction", err)
		return fn(ctx)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		warn(log, "transactions not supported, running without transaction", err)
		return fn(ctx)
	}
	return err
}

func warn(log *zap.Logger, msg string, err error) {
	if log != nil {
		log.Warn(msg, zap.Error(err))
	}
}

// Server codes meaning "no transactions here": 20 IllegalOperation on a
// standalone, 51 on some DocumentDB setups, 263 OperationNotSupportedInTransaction.
var notSupportedCodes = map[int32]bool{20: true, 51: true, 263: true}

// IsNotSupported reports whether err says the deployment cannot run
// multi-document transactions.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && notSupportedCodes[cmdErr.Code] {
		return true
	}

	// Some servers only say so in the message. Two hits avoid matching an
	// unrelated error that merely mentions a session.
	msg := strings.ToLower(err.Error())
	hits := 0
	for _, kw := range []string{"transaction", "replica set", "session", "not supported", "illegal operation"} {
		if strings.Contains(msg, kw) {
			hits++
		}
	}
	return hits >= 2
}
