// Package store defines a uniform document-style CRUD contract implemented by
// interchangeable backends. Route logic depends only on the Store interface;
// whether documents live in MongoDB collections or MySQL tables is a
// startup-time configuration decision.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/school-management/internal/config"
)

// Document is a stored record. Every document carries a string "id" field;
// InsertOne assigns one when absent.
type Document = map[string]any

// Query matches documents by field equality. An empty query matches all
// documents in a collection.
type Query = map[string]any

// ErrNotFound is returned by FindOne when no document matches.
var ErrNotFound = errors.New("document not found")

// Store is the database adapter contract. Implementations must be safe for
// concurrent use by arbitrarily many in-flight requests.
type Store interface {
	// InsertOne stores a document and returns its id.
	InsertOne(ctx context.Context, collection string, doc Document) (string, error)

	// FindOne returns the single document matching query, or ErrNotFound.
	FindOne(ctx context.Context, collection string, query Query) (Document, error)

	// FindMany returns up to limit matching documents. Order is unspecified.
	FindMany(ctx context.Context, collection string, query Query, limit int) ([]Document, error)

	// UpdateOne applies a partial update (field-set semantics) to the single
	// matching document. It reports true iff exactly one document was
	// modified.
	UpdateOne(ctx context.Context, collection string, query Query, update Document) (bool, error)

	// DeleteOne removes the single matching document, reporting whether one
	// was removed.
	DeleteOne(ctx context.Context, collection string, query Query) (bool, error)

	// AdjustOne atomically adds delta to a numeric field of the single
	// matching document. For a positive delta, boundField names a sibling
	// field whose value is the exclusive upper bound: the adjustment applies
	// only while field < boundField. For a negative delta the result must
	// stay at or above zero. The guard and the write are one operation, so
	// concurrent callers racing for the last slot cannot both succeed.
	AdjustOne(ctx context.Context, collection string, query Query, field string, delta int64, boundField string) (bool, error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}

// Open selects and connects the backend named by cfg.DatabaseType.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.DatabaseType {
	case "mysql":
		return OpenMySQL(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	case "mongo":
		return OpenMongo(ctx, cfg.MongoURL, cfg.DBName)
	default:
		return nil, fmt.Errorf("store: unsupported database type %q", cfg.DatabaseType)
	}
}
