package datastore

import "context"

// Kind identifies a backend engine.
type Kind string

const (
	Postgres   Kind = "postgres"
	MongoDB    Kind = "mongodb"
	ClickHouse Kind = "clickhouse"
)

// ParseKind resolves a configuration-supplied backend name to a Kind.
// Common aliases are accepted.
func ParseKind(name string) (Kind, bool) {
	switch name {
	case "postgres", "postgresql", "pg":
		return Postgres, true
	case "mongodb", "mongo":
		return MongoDB, true
	case "clickhouse":
		return ClickHouse, true
	}
	return "", false
}

// Record is a single stored row or document.
type Record map[string]interface{}

// RowSet is an ordered sequence of records.
type RowSet []Record

// Txn is an opaque transaction handle owned by the adapter that created
// it. Only the relational and document backends produce transaction
// handles; the columnar backend fails BeginTransaction with
// ErrOperationNotSupported.
//
// A handle must not be used from multiple goroutines concurrently; the
// adapter does not serialize operations issued against one handle.
type Txn interface {
	Kind() Kind
}

// Store is the capability contract every backend adapter implements.
//
// Every operation except Initialize and Close fails with
// ErrNotInitialized before Initialize completes or after Close. Adapters
// never retry on their own; transient failures surface immediately and
// retry policy belongs to the caller.
type Store interface {
	// Kind returns the backend engine this store is bound to.
	Kind() Kind

	// Initialize validates the configuration, acquires the underlying
	// pool or client and verifies liveness. It must be called before any
	// data operation.
	Initialize(ctx context.Context) error

	// Close releases the underlying pool or client. It is idempotent and
	// safe to call on a store whose Initialize never completed.
	Close() error

	// Query executes a raw query in the backend's native language.
	// Parameter binding follows the backend's own convention; the
	// document backend interprets raw as an extended-JSON command.
	Query(ctx context.Context, raw string, params ...interface{}) (RowSet, error)

	// Insert stores the given records in target. An empty slice is a
	// no-op success with a zero count and no backend round trip.
	Insert(ctx context.Context, target string, records []Record, opts *InsertOptions) (*InsertResult, error)

	// Find returns all records in target matching filter.
	Find(ctx context.Context, target string, filter Filter, opts *FindOptions) (RowSet, error)

	// FindOne returns the first record matching filter, or (nil, nil)
	// when nothing matches.
	FindOne(ctx context.Context, target string, filter Filter, opts *FindOptions) (Record, error)

	// Update applies update to every record matching filter. A bare
	// field-to-value update is interpreted as "set these fields"; native
	// mutation operators are honored by the document backend only.
	// An empty filter matches all records on the relational and document
	// backends. The columnar backend does not support Update at all.
	Update(ctx context.Context, target string, filter Filter, update Update, opts *UpdateOptions) (*MutationResult, error)

	// Delete removes every record matching filter. An empty filter
	// matches all records on the relational and document backends but
	// fails with ErrInvalidOperation on the columnar backend.
	Delete(ctx context.Context, target string, filter Filter, opts *DeleteOptions) (*DeleteResult, error)

	// Count returns the number of records matching filter.
	Count(ctx context.Context, target string, filter Filter) (int64, error)

	// Aggregate runs a backend-native aggregation: a pipeline for the
	// document backend, a raw SQL statement for the SQL backends.
	Aggregate(ctx context.Context, target string, spec interface{}) (RowSet, error)

	// BeginTransaction opens a transaction and returns its handle.
	// Operations join the transaction by carrying the handle in their
	// options.
	BeginTransaction(ctx context.Context) (Txn, error)

	// CommitTransaction commits the transaction. The underlying
	// connection or session is released whether or not the commit
	// succeeds.
	CommitTransaction(ctx context.Context, txn Txn) error

	// RollbackTransaction aborts the transaction. The underlying
	// connection or session is released whether or not the rollback
	// succeeds.
	RollbackTransaction(ctx context.Context, txn Txn) error
}
