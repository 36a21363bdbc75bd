// Package testutil holds the shared fixtures PinBoard's package tests use:
// a throwaway Mongo database per test, seeded documents, authenticated
// requests and a booted template engine.
package testutil

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"os"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/pinboard/internal/app/system/indexes"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultMongoURI is used unless PINBOARD_TEST_MONGO_URI is set.
const DefaultMongoURI = "mongodb://localhost:27017"

var (
	connectOnce sync.Once
	shared      *mongo.Client
	connectErr  error

	unsafeDBChars = regexp.MustCompile(`[^A-Za-z0-9_]`)
)

func mongoURI() string {
	if uri := os.Getenv("PINBOARD_TEST_MONGO_URI"); uri != "" {
		return uri
	}
	return DefaultMongoURI
}

func sharedClient() (*mongo.Client, error) {
	connectOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		opts := options.Client().
			ApplyURI(mongoURI()).
			SetMaxPoolSize(200).
			SetServerSelectionTimeout(5 * time.Second)
		shared, connectErr = mongo.Connect(ctx, opts)
		if connectErr == nil {
			connectErr = shared.Ping(ctx, nil)
		}
	})
	return shared, connectErr
}

// SetupTestDB hands the test an empty database named after it, with
// PinBoard's indexes in place. The database is dropped on cleanup. Tests
// are skipped when no MongoDB is reachable.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()

	client, err := sharedClient()
	if err != nil {
		t.Skipf("mongodb unavailable at %s: %v", mongoURI(), err)
	}

	db := client.Database(dbNameFor(t.Name()))
	ctx, cancel := TestContext()
	defer cancel()
	if err := db.Drop(ctx); err != nil {
		t.Fatalf("drop %s: %v", db.Name(), err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.Drop(ctx); err != nil {
			t.Logf("drop %s on cleanup: %v", db.Name(), err)
		}
	})
	return db
}

// dbNameFor keeps names under Mongo's 63-byte limit. Long test names are
// cut and suffixed with a hash so subtests never share a database.
func dbNameFor(testName string) string {
	name := "pb_" + unsafeDBChars.ReplaceAllString(testName, "_")
	if len(name) <= 63 {
		return name
	}
	sum := sha1.Sum([]byte(testName))
	return name[:50] + "_" + hex.EncodeToString(sum[:])[:12]
}

// TestContext bounds a test's database calls.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
