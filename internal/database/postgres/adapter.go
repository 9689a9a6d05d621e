package postgres

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cohortlab/cohortlab/internal/database/common"
	"github.com/cohortlab/cohortlab/pkg/datastore"
	"github.com/cohortlab/cohortlab/pkg/logger"
)

const defaultMaxPoolSize = 10

// Adapter implements datastore.Store for PostgreSQL. It owns one
// bounded connection pool, created in Initialize and released in Close.
// Concurrent calls are safe: each call checks out its own pooled
// connection, except calls joined to an explicit transaction handle,
// which the caller must serialize.
type Adapter struct {
	id   string
	cfg  datastore.Config
	log  *logger.Logger
	pool *pgxpool.Pool

	initialized int32
}

// NewAdapter creates an unconnected PostgreSQL adapter.
func NewAdapter(cfg datastore.Config) datastore.Store {
	return &Adapter{cfg: cfg}
}

// SetLogger sets the logger used for lifecycle events.
func (a *Adapter) SetLogger(l *logger.Logger) {
	a.log = l
}

// Kind returns the backend identifier.
func (a *Adapter) Kind() datastore.Kind {
	return datastore.Postgres
}

// pgExecutor is the slice of pgx shared by *pgxpool.Pool and pgx.Tx, so
// the same statement builders serve pooled and transactional calls.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// txn is the relational transaction handle. The pgx.Tx inside holds one
// dedicated connection checked out of the pool; Commit and Rollback both
// return it, even when they fail.
type txn struct {
	tx pgx.Tx
}

// Kind returns the backend identifier of the handle.
func (t *txn) Kind() datastore.Kind {
	return datastore.Postgres
}

func (a *Adapter) checkReady() error {
	if atomic.LoadInt32(&a.initialized) == 0 {
		return datastore.ErrNotInitialized
	}
	return nil
}

func (a *Adapter) executor(t datastore.Txn) (pgExecutor, error) {
	if t == nil {
		return a.pool, nil
	}
	pt, ok := t.(*txn)
	if !ok {
		return nil, datastore.NewInvalidOperationError(
			datastore.Postgres, "transaction", "handle belongs to a different backend")
	}
	return pt.tx, nil
}

func validateConfig(cfg datastore.Config) error {
	if cfg.Host == "" {
		return datastore.NewConfigurationError(datastore.Postgres, "host", "required")
	}
	if cfg.Port == 0 {
		return datastore.NewConfigurationError(datastore.Postgres, "port", "required")
	}
	if cfg.DatabaseName == "" {
		return datastore.NewConfigurationError(datastore.Postgres, "databaseName", "required")
	}
	return nil
}

func buildConnString(cfg datastore.Config) string {
	var connString strings.Builder

	fmt.Fprintf(&connString, "postgres://%s:%s@%s:%d/%s",
		cfg.Username,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DatabaseName)

	if cfg.SSL {
		sslMode := cfg.SSLMode
		if sslMode == "" {
			sslMode = "require"
		}
		fmt.Fprintf(&connString, "?sslmode=%s", sslMode)
	} else {
		connString.WriteString("?sslmode=disable")
	}

	return connString.String()
}

// Initialize opens the connection pool and runs a liveness probe.
func (a *Adapter) Initialize(ctx context.Context) error {
	if atomic.LoadInt32(&a.initialized) == 1 {
		return nil
	}
	if err := validateConfig(a.cfg); err != nil {
		return err
	}

	poolCfg, err := pgxpool.ParseConfig(buildConnString(a.cfg))
	if err != nil {
		return datastore.NewConfigurationError(datastore.Postgres, "", err.Error())
	}
	maxConns := a.cfg.MaxPoolSize
	if maxConns <= 0 {
		maxConns = defaultMaxPoolSize
	}
	poolCfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return datastore.NewConnectionError(datastore.Postgres, a.cfg.Host, a.cfg.Port, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return datastore.NewConnectionError(datastore.Postgres, a.cfg.Host, a.cfg.Port, err)
	}

	a.pool = pool
	a.id = uuid.NewString()
	atomic.StoreInt32(&a.initialized, 1)

	if a.log != nil {
		a.log.WithFields(map[string]string{
			"store":   a.id,
			"backend": string(datastore.Postgres),
			"host":    a.cfg.Host,
		}).Info("connection pool ready, max %d connections", maxConns)
	}
	return nil
}

// Close releases the pool. Safe to call repeatedly and before
// Initialize ever completed.
func (a *Adapter) Close() error {
	atomic.StoreInt32(&a.initialized, 0)
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	return nil
}

// Query executes a raw SQL statement with positional parameters.
func (a *Adapter) Query(ctx context.Context, raw string, params ...interface{}) (datastore.RowSet, error) {
	if err := a.checkReady(); err != nil {
		return nil, err
	}
	rows, err := a.pool.Query(ctx, raw, params...)
	if err != nil {
		return nil, datastore.NewQueryError(datastore.Postgres, "query", err)
	}
	return collectRows(rows)
}

// Insert stores records in target. A multi-record insert runs inside
// its own transaction: either every record commits or none do, so a
// partial batch is never observable.
func (a *Adapter) Insert(ctx context.Context, target string, records []datastore.Record, opts *datastore.InsertOptions) (*datastore.InsertResult, error) {
	if err := a.checkReady(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &datastore.InsertResult{}, nil
	}

	var handle datastore.Txn
	if opts != nil {
		handle = opts.Txn
	}
	exec, err := a.executor(handle)
	if err != nil {
		return nil, err
	}

	// A caller-owned transaction already provides batch atomicity.
	if handle != nil || len(records) == 1 {
		return insertAll(ctx, exec, target, records)
	}

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return nil, datastore.NewQueryError(datastore.Postgres, "insert", err)
	}
	res, err := insertAll(ctx, tx, target, records)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && a.log != nil {
			a.log.Warnf("rollback after failed batch insert into %s: %v", target, rbErr)
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, datastore.NewQueryError(datastore.Postgres, "insert", err)
	}
	return res, nil
}

func insertAll(ctx context.Context, exec pgExecutor, target string, records []datastore.Record) (*datastore.InsertResult, error) {
	res := &datastore.InsertResult{}
	for _, rec := range records {
		stmt, args := buildInsert(target, rec)
		rows, err := exec.Query(ctx, stmt, args...)
		if err != nil {
			return nil, datastore.NewQueryError(datastore.Postgres, "insert", err)
		}
		returned, err := collectRows(rows)
		if err != nil {
			return nil, err
		}
		res.InsertedCount++
		if len(returned) > 0 {
			if id, ok := returned[0]["id"]; ok && id != nil {
				res.InsertedIDs = append(res.InsertedIDs, common.FormatID(id))
			}
		}
	}
	return res, nil
}

// Find returns all rows matching filter.
func (a *Adapter) Find(ctx context.Context, target string, filter datastore.Filter, opts *datastore.FindOptions) (datastore.RowSet, error) {
	if err := a.checkReady(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &datastore.FindOptions{}
	}
	exec, err := a.executor(opts.Txn)
	if err != nil {
		return nil, err
	}

	where, args, err := buildWhere(filter, 1)
	if err != nil {
		return nil, err
	}

	stmt := fmt.Sprintf("SELECT %s FROM %s%s%s",
		buildSelectClause(opts.Projection),
		common.QuoteIdentifier(target),
		where,
		buildOrderBy(opts.Sort))
	if opts.Limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Offset > 0 {
		stmt += fmt.Sprintf(" OFFSET %d", opts.Offset)
	}

	rows, err := exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, datastore.NewQueryError(datastore.Postgres, "find", err)
	}
	return collectRows(rows)
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

// Update sets fields on every row matching filter. Native mutation
// operators are document-store vocabulary and rejected here.
func (a *Adapter) Update(ctx context.Context, target string, filter datastore.Filter, update datastore.Update, opts *datastore.UpdateOptions) (*datastore.MutationResult, error) {
	if err := a.checkReady(); err != nil {
		return nil, err
	}
	if len(update) == 0 {
		return nil, datastore.NewInvalidOperationError(datastore.Postgres, "update", "empty update expression")
	}
	if update.HasMutationOperators() {
		return nil, datastore.NewInvalidOperationError(
			datastore.Postgres, "update", "native mutation operators are not part of the relational vocabulary")
	}
	if opts != nil && opts.Upsert {
		return nil, datastore.NewUnsupportedOperationError(datastore.Postgres, "upsert via update", "")
	}

	var handle datastore.Txn
	if opts != nil {
		handle = opts.Txn
	}
	exec, err := a.executor(handle)
	if err != nil {
		return nil, err
	}

	set, args := buildSet(update)
	where, whereArgs, err := buildWhere(filter, len(args)+1)
	if err != nil {
		return nil, err
	}
	args = append(args, whereArgs...)

	stmt := fmt.Sprintf("UPDATE %s SET %s%s RETURNING *",
		common.QuoteIdentifier(target), set, where)

	rows, err := exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, datastore.NewQueryError(datastore.Postgres, "update", err)
	}
	affected, err := collectRows(rows)
	if err != nil {
		return nil, err
	}
	n := int64(len(affected))
	return &datastore.MutationResult{MatchedCount: n, ModifiedCount: n}, nil
}

// Delete removes every row matching filter. An empty filter deletes
// all rows; that is the documented relational contract.
func (a *Adapter) Delete(ctx context.Context, target string, filter datastore.Filter, opts *datastore.DeleteOptions) (*datastore.DeleteResult, error) {
	if err := a.checkReady(); err != nil {
		return nil, err
	}
	var handle datastore.Txn
	if opts != nil {
		handle = opts.Txn
	}
	exec, err := a.executor(handle)
	if err != nil {
		return nil, err
	}

	where, args, err := buildWhere(filter, 1)
	if err != nil {
		return nil, err
	}

	stmt := fmt.Sprintf("DELETE FROM %s%s RETURNING *", common.QuoteIdentifier(target), where)
	rows, err := exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, datastore.NewQueryError(datastore.Postgres, "delete", err)
	}
	deleted, err := collectRows(rows)
	if err != nil {
		return nil, err
	}
	return &datastore.DeleteResult{DeletedCount: int64(len(deleted))}, nil
}

// Count returns the number of rows matching filter.
func (a *Adapter) Count(ctx context.Context, target string, filter datastore.Filter) (int64, error) {
	if err := a.checkReady(); err != nil {
		return 0, err
	}
	where, args, err := buildWhere(filter, 1)
	if err != nil {
		return 0, err
	}

	stmt := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", common.QuoteIdentifier(target), where)
	rows, err := a.pool.Query(ctx, stmt, args...)
	if err != nil {
		return 0, datastore.NewQueryError(datastore.Postgres, "count", err)
	}
	defer rows.Close()

	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, datastore.NewQueryError(datastore.Postgres, "count", err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, datastore.NewQueryError(datastore.Postgres, "count", err)
	}
	return count, nil
}

// Aggregate runs a raw SQL aggregation statement.
func (a *Adapter) Aggregate(ctx context.Context, target string, spec interface{}) (datastore.RowSet, error) {
	if err := a.checkReady(); err != nil {
		return nil, err
	}
	raw, ok := spec.(string)
	if !ok {
		return nil, datastore.NewInvalidOperationError(
			datastore.Postgres, "aggregate", "aggregation spec must be a raw SQL statement")
	}
	return a.Query(ctx, raw)
}

// BeginTransaction checks one connection out of the pool for the
// lifetime of the transaction. Every operation carrying the returned
// handle reuses that connection.
func (a *Adapter) BeginTransaction(ctx context.Context) (datastore.Txn, error) {
	if err := a.checkReady(); err != nil {
		return nil, err
	}
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return nil, datastore.NewQueryError(datastore.Postgres, "begin", err)
	}
	return &txn{tx: tx}, nil
}

// CommitTransaction commits the handle's transaction. pgx returns the
// dedicated connection to the pool whether or not the commit succeeds.
func (a *Adapter) CommitTransaction(ctx context.Context, t datastore.Txn) error {
	if err := a.checkReady(); err != nil {
		return err
	}
	pt, ok := t.(*txn)
	if !ok {
		return datastore.NewInvalidOperationError(
			datastore.Postgres, "commit", "handle belongs to a different backend")
	}
	if err := pt.tx.Commit(ctx); err != nil {
		return datastore.NewQueryError(datastore.Postgres, "commit", err)
	}
	return nil
}

// RollbackTransaction aborts the handle's transaction, releasing the
// dedicated connection in all cases.
func (a *Adapter) RollbackTransaction(ctx context.Context, t datastore.Txn) error {
	if err := a.checkReady(); err != nil {
		return err
	}
	pt, ok := t.(*txn)
	if !ok {
		return datastore.NewInvalidOperationError(
			datastore.Postgres, "rollback", "handle belongs to a different backend")
	}
	if err := pt.tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
		return datastore.NewQueryError(datastore.Postgres, "rollback", err)
	}
	return nil
}

func collectRows(rows pgx.Rows) (datastore.RowSet, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out datastore.RowSet
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, datastore.NewQueryError(datastore.Postgres, "scan", err)
		}
		rec := make(datastore.Record, len(fields))
		for i, fd := range fields {
			rec[fd.Name] = values[i]
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, datastore.NewQueryError(datastore.Postgres, "scan", err)
	}
	return out, nil
}
