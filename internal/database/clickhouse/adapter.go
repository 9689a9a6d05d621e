package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/ClickHouse/clickhouse-go/v2"
	chdriver "github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"

	"github.com/cohortlab/cohortlab/pkg/datastore"
	"github.com/cohortlab/cohortlab/pkg/logger"
)

// Conn is the slice of the native driver connection the adapter uses.
// Narrowing it to an interface keeps the statement paths testable.
type Conn interface {
	Query(ctx context.Context, query string, args ...interface{}) (chdriver.Rows, error)
	Exec(ctx context.Context, query string, args ...interface{}) error
	PrepareBatch(ctx context.Context, query string, opts ...chdriver.PrepareBatchOption) (chdriver.Batch, error)
	Ping(ctx context.Context) error
	Close() error
}

// Adapter implements datastore.Store for ClickHouse. It owns a single
// client; the engine needs no pooled sessions. The engine has no
// transactional isolation and no safe row update, so those parts of the
// contract fail with typed errors instead of being emulated.
type Adapter struct {
	id   string
	cfg  datastore.Config
	log  *logger.Logger
	conn Conn

	initialized int32
}

// NewAdapter creates an unconnected ClickHouse adapter.
func NewAdapter(cfg datastore.Config) datastore.Store {
	return &Adapter{cfg: cfg}
}

// SetLogger sets the logger used for lifecycle events.
func (a *Adapter) SetLogger(l *logger.Logger) {
	a.log = l
}

// Kind returns the backend identifier.
func (a *Adapter) Kind() datastore.Kind {
	return datastore.ClickHouse
}

func (a *Adapter) checkReady() error {
	if atomic.LoadInt32(&a.initialized) == 0 {
		return datastore.ErrNotInitialized
	}
	return nil
}

func validateConfig(cfg datastore.Config) error {
	if cfg.Host == "" {
		return datastore.NewConfigurationError(datastore.ClickHouse, "host", "required")
	}
	if cfg.Port == 0 {
		return datastore.NewConfigurationError(datastore.ClickHouse, "port", "required")
	}
	if cfg.DatabaseName == "" {
		return datastore.NewConfigurationError(datastore.ClickHouse, "databaseName", "required")
	}
	return nil
}

// Initialize opens the client and runs a liveness probe.
func (a *Adapter) Initialize(ctx context.Context) error {
	if atomic.LoadInt32(&a.initialized) == 1 {
		return nil
	}
	if err := validateConfig(a.cfg); err != nil {
		return err
	}

	options := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", a.cfg.Host, a.cfg.Port)},
		Auth: clickhouse.Auth{
			Database: a.cfg.DatabaseName,
			Username: a.cfg.Username,
			Password: a.cfg.Password,
		},
	}
	if a.cfg.SSL {
		options.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return datastore.NewConnectionError(datastore.ClickHouse, a.cfg.Host, a.cfg.Port, err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return datastore.NewConnectionError(datastore.ClickHouse, a.cfg.Host, a.cfg.Port, err)
	}

	a.conn = conn
	a.id = uuid.NewString()
	atomic.StoreInt32(&a.initialized, 1)

	if a.log != nil {
		a.log.WithFields(map[string]string{
			"store":   a.id,
			"backend": string(datastore.ClickHouse),
			"host":    a.cfg.Host,
		}).Info("client connected")
	}
	return nil
}

// Close releases the client. Safe to call repeatedly and before
// Initialize ever completed.
func (a *Adapter) Close() error {
	atomic.StoreInt32(&a.initialized, 0)
	if a.conn != nil {
		err := a.conn.Close()
		a.conn = nil
		if err != nil {
			return datastore.NewQueryError(datastore.ClickHouse, "close", err)
		}
	}
	return nil
}

// Query executes a raw SQL statement.
func (a *Adapter) Query(ctx context.Context, raw string, params ...interface{}) (datastore.RowSet, error) {
	if err := a.checkReady(); err != nil {
		return nil, err
	}
	rows, err := a.conn.Query(ctx, raw, params...)
	if err != nil {
		return nil, datastore.NewQueryError(datastore.ClickHouse, "query", err)
	}
	return scanRows(rows)
}

// Insert appends records through the native batch protocol. An empty
// slice returns a zero count without a round trip.
func (a *Adapter) Insert(ctx context.Context, target string, records []datastore.Record, opts *datastore.InsertOptions) (*datastore.InsertResult, error) {
	if err := a.checkReady(); err != nil {
		return nil, err
	}
	if opts != nil && opts.Txn != nil {
		return nil, a.noTransactions("insert")
	}
	if len(records) == 0 {
		return &datastore.InsertResult{}, nil
	}

	columns := datastore.SortedKeys(records[0])
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = quoteIdentifier(col)
	}

	batch, err := a.conn.PrepareBatch(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s)", quoteIdentifier(target), strings.Join(quoted, ", ")))
	if err != nil {
		return nil, datastore.NewQueryError(datastore.ClickHouse, "insert", err)
	}

	for _, rec := range records {
		values := make([]interface{}, len(columns))
		for i, col := range columns {
			values[i] = rec[col]
		}
		if err := batch.Append(values...); err != nil {
			return nil, datastore.NewQueryError(datastore.ClickHouse, "insert", err)
		}
	}
	if err := batch.Send(); err != nil {
		return nil, datastore.NewQueryError(datastore.ClickHouse, "insert", err)
	}

	return &datastore.InsertResult{InsertedCount: int64(len(records))}, nil
}

// Find returns all rows matching filter.
func (a *Adapter) Find(ctx context.Context, target string, filter datastore.Filter, opts *datastore.FindOptions) (datastore.RowSet, error) {
	if err := a.checkReady(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &datastore.FindOptions{}
	}
	if opts.Txn != nil {
		return nil, a.noTransactions("find")
	}

	where, err := buildWhere(filter)
	if err != nil {
		return nil, err
	}

	stmt := fmt.Sprintf("SELECT %s FROM %s%s%s",
		buildSelectClause(opts.Projection),
		quoteIdentifier(target),
		where,
		buildOrderBy(opts.Sort))
	if opts.Limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Offset > 0 {
		stmt += fmt.Sprintf(" OFFSET %d", opts.Offset)
	}

	rows, err := a.conn.Query(ctx, stmt)
	if err != nil {
		return nil, datastore.NewQueryError(datastore.ClickHouse, "find", err)
	}
	return scanRows(rows)
}

// FindOne returns the first row matching filter, or (nil, nil) when
// nothing matches.
func (a *Adapter) FindOne(ctx context.Context, target string, filter datastore.Filter, opts *datastore.FindOptions) (datastore.Record, error) {
	limited := datastore.FindOptions{Limit: 1}
	if opts != nil {
		limited = *opts
		limited.Limit = 1
	}
	rows, err := a.Find(ctx, target, filter, &limited)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Update is not supported. The engine's mutation model is asynchronous
// and non-atomic, so it cannot satisfy the update contract; emulating
// it by reading, rewriting and reinserting rows is unreliable and is
// deliberately not attempted.
func (a *Adapter) Update(ctx context.Context, target string, filter datastore.Filter, update datastore.Update, opts *datastore.UpdateOptions) (*datastore.MutationResult, error) {
	return nil, datastore.NewUnsupportedOperationError(
		datastore.ClickHouse, "update",
		"mutations are asynchronous and non-atomic on this engine")
}

// Delete issues one range-delete statement. A non-empty filter is a
// hard precondition: an empty filter fails fast with no network call
// instead of translating to "delete everything".
func (a *Adapter) Delete(ctx context.Context, target string, filter datastore.Filter, opts *datastore.DeleteOptions) (*datastore.DeleteResult, error) {
	if err := a.checkReady(); err != nil {
		return nil, err
	}
	if opts != nil && opts.Txn != nil {
		return nil, a.noTransactions("delete")
	}
	if len(filter) == 0 {
		return nil, datastore.NewInvalidOperationError(
			datastore.ClickHouse, "delete", "a non-empty filter is required for a range delete")
	}

	where, err := buildWhere(filter)
	if err != nil {
		return nil, err
	}

	stmt := fmt.Sprintf("ALTER TABLE %s DELETE%s", quoteIdentifier(target), where)
	if err := a.conn.Exec(ctx, stmt); err != nil {
		return nil, datastore.NewQueryError(datastore.ClickHouse, "delete", err)
	}

	// The engine applies range deletes asynchronously and does not
	// report an affected-row count.
	return &datastore.DeleteResult{}, nil
}

// Count returns the number of rows matching filter.
func (a *Adapter) Count(ctx context.Context, target string, filter datastore.Filter) (int64, error) {
	if err := a.checkReady(); err != nil {
		return 0, err
	}
	where, err := buildWhere(filter)
	if err != nil {
		return 0, err
	}

	stmt := fmt.Sprintf("SELECT count() FROM %s%s", quoteIdentifier(target), where)
	rows, err := a.conn.Query(ctx, stmt)
	if err != nil {
		return 0, datastore.NewQueryError(datastore.ClickHouse, "count", err)
	}
	defer rows.Close()

	var count uint64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, datastore.NewQueryError(datastore.ClickHouse, "count", err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, datastore.NewQueryError(datastore.ClickHouse, "count", err)
	}
	return int64(count), nil
}

// Aggregate runs a raw SQL aggregation statement.
func (a *Adapter) Aggregate(ctx context.Context, target string, spec interface{}) (datastore.RowSet, error) {
	if err := a.checkReady(); err != nil {
		return nil, err
	}
	raw, ok := spec.(string)
	if !ok {
		return nil, datastore.NewInvalidOperationError(
			datastore.ClickHouse, "aggregate", "aggregation spec must be a raw SQL statement")
	}
	return a.Query(ctx, raw)
}

// BeginTransaction is not supported: the engine has no transactional
// isolation.
func (a *Adapter) BeginTransaction(ctx context.Context) (datastore.Txn, error) {
	return nil, a.noTransactions("beginTransaction")
}

// CommitTransaction is not supported.
func (a *Adapter) CommitTransaction(ctx context.Context, t datastore.Txn) error {
	return a.noTransactions("commitTransaction")
}

// RollbackTransaction is not supported.
func (a *Adapter) RollbackTransaction(ctx context.Context, t datastore.Txn) error {
	return a.noTransactions("rollbackTransaction")
}

func (a *Adapter) noTransactions(operation string) error {
	return datastore.NewUnsupportedOperationError(
		datastore.ClickHouse, operation, "this engine has no transactional isolation")
}

func scanRows(rows chdriver.Rows) (datastore.RowSet, error) {
	defer rows.Close()

	columns := rows.Columns()
	columnTypes := rows.ColumnTypes()

	var out datastore.RowSet
	for rows.Next() {
		valuePtrs := make([]interface{}, len(columns))
		for i, ct := range columnTypes {
			valuePtrs[i] = reflect.New(ct.ScanType()).Interface()
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, datastore.NewQueryError(datastore.ClickHouse, "scan", err)
		}

		rec := make(datastore.Record, len(columns))
		for i, col := range columns {
			rec[col] = reflect.ValueOf(valuePtrs[i]).Elem().Interface()
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, datastore.NewQueryError(datastore.ClickHouse, "scan", err)
	}
	return out, nil
}
