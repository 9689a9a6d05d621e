package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/cohortlab/cohortlab/internal/database/common"
	"github.com/cohortlab/cohortlab/pkg/datastore"
	"github.com/cohortlab/cohortlab/pkg/logger"
)

// Adapter implements datastore.Store for MongoDB. One client object is
// shared across concurrent calls; the driver multiplexes, and the
// adapter holds no lock of its own.
type Adapter struct {
	id     string
	cfg    datastore.Config
	log    *logger.Logger
	client *mongo.Client
	db     *mongo.Database

	initialized int32
}

// NewAdapter creates an unconnected MongoDB adapter.
func NewAdapter(cfg datastore.Config) datastore.Store {
	return &Adapter{cfg: cfg}
}

// SetLogger sets the logger used for lifecycle events.
func (a *Adapter) SetLogger(l *logger.Logger) {
	a.log = l
}

// Kind returns the backend identifier.
func (a *Adapter) Kind() datastore.Kind {
	return datastore.MongoDB
}

// txn is the document transaction handle. It owns one driver session
// for its lifetime; commit and rollback both end the session.
type txn struct {
	sess *mongo.Session
}

// Kind returns the backend identifier of the handle.
func (t *txn) Kind() datastore.Kind {
	return datastore.MongoDB
}

func (a *Adapter) checkReady() error {
	if atomic.LoadInt32(&a.initialized) == 0 {
		return datastore.ErrNotInitialized
	}
	return nil
}

// opCtx binds the operation context to the handle's session, if any.
func (a *Adapter) opCtx(ctx context.Context, t datastore.Txn) (context.Context, error) {
	if t == nil {
		return ctx, nil
	}
	mt, ok := t.(*txn)
	if !ok {
		return nil, datastore.NewInvalidOperationError(
			datastore.MongoDB, "transaction", "handle belongs to a different backend")
	}
	return mongo.NewSessionContext(ctx, mt.sess), nil
}

func validateConfig(cfg datastore.Config) error {
	if cfg.Host == "" {
		return datastore.NewConfigurationError(datastore.MongoDB, "host", "required")
	}
	if cfg.Port == 0 {
		return datastore.NewConfigurationError(datastore.MongoDB, "port", "required")
	}
	if cfg.DatabaseName == "" {
		return datastore.NewConfigurationError(datastore.MongoDB, "databaseName", "required")
	}
	return nil
}

func buildConnString(cfg datastore.Config) string {
	var connString strings.Builder

	authSource := cfg.AuthSource
	if authSource == "" {
		authSource = "admin"
	}

	if cfg.Username != "" {
		fmt.Fprintf(&connString, "mongodb://%s:%s@%s:%d/%s?authSource=%s",
			cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.DatabaseName, authSource)
	} else {
		fmt.Fprintf(&connString, "mongodb://%s:%d/%s?authSource=%s",
			cfg.Host, cfg.Port, cfg.DatabaseName, authSource)
	}
	fmt.Fprintf(&connString, "&tls=%t", cfg.SSL)

	return connString.String()
}

// Initialize connects the client and runs a liveness probe.
func (a *Adapter) Initialize(ctx context.Context) error {
	if atomic.LoadInt32(&a.initialized) == 1 {
		return nil
	}
	if err := validateConfig(a.cfg); err != nil {
		return err
	}

	client, err := mongo.Connect(options.Client().ApplyURI(buildConnString(a.cfg)))
	if err != nil {
		return datastore.NewConnectionError(datastore.MongoDB, a.cfg.Host, a.cfg.Port, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return datastore.NewConnectionError(datastore.MongoDB, a.cfg.Host, a.cfg.Port, err)
	}

	a.client = client
	a.db = client.Database(a.cfg.DatabaseName)
	a.id = uuid.NewString()
	atomic.StoreInt32(&a.initialized, 1)

	if a.log != nil {
		a.log.WithFields(map[string]string{
			"store":   a.id,
			"backend": string(datastore.MongoDB),
			"host":    a.cfg.Host,
		}).Info("client connected")
	}
	return nil
}

// Close disconnects the client. Safe to call repeatedly and before
// Initialize ever completed.
func (a *Adapter) Close() error {
	atomic.StoreInt32(&a.initialized, 0)
	if a.client != nil {
		err := a.client.Disconnect(context.Background())
		a.client = nil
		a.db = nil
		if err != nil {
			return datastore.NewQueryError(datastore.MongoDB, "close", err)
		}
	}
	return nil
}

// Query interprets raw as an extended-JSON database command and runs it.
func (a *Adapter) Query(ctx context.Context, raw string, params ...interface{}) (datastore.RowSet, error) {
	if err := a.checkReady(); err != nil {
		return nil, err
	}
	var cmd bson.D
	if err := bson.UnmarshalExtJSON([]byte(raw), false, &cmd); err != nil {
		return nil, datastore.NewInvalidOperationError(
			datastore.MongoDB, "query", fmt.Sprintf("raw query must be an extended-JSON command: %v", err))
	}

	var result map[string]interface{}
	if err := a.db.RunCommand(ctx, cmd).Decode(&result); err != nil {
		return nil, datastore.NewQueryError(datastore.MongoDB, "query", err)
	}
	return datastore.RowSet{normalizeRecord(result)}, nil
}

// Insert stores documents in the target collection. An empty slice
// returns a zero count without a round trip to the backend.
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
	opCtx, err := a.opCtx(ctx, handle)
	if err != nil {
		return nil, err
	}

	documents := make([]interface{}, len(records))
	for i, rec := range records {
		documents[i] = coerceObjectIDs(rec)
	}

	res, err := a.db.Collection(target).InsertMany(opCtx, documents)
	if err != nil {
		return nil, datastore.NewQueryError(datastore.MongoDB, "insert", err)
	}

	out := &datastore.InsertResult{InsertedCount: int64(len(res.InsertedIDs))}
	for _, id := range res.InsertedIDs {
		if oid, ok := id.(bson.ObjectID); ok {
			out.InsertedIDs = append(out.InsertedIDs, oid.Hex())
		} else {
			out.InsertedIDs = append(out.InsertedIDs, common.FormatID(id))
		}
	}
	return out, nil
}

func buildFindOptions(opts *datastore.FindOptions) *options.FindOptionsBuilder {
	builder := options.Find()
	if opts == nil {
		return builder
	}
	if len(opts.Projection) > 0 {
		projection := make(bson.D, len(opts.Projection))
		for i, field := range opts.Projection {
			projection[i] = bson.E{Key: field, Value: 1}
		}
		builder.SetProjection(projection)
	}
	if len(opts.Sort) > 0 {
		sort := make(bson.D, len(opts.Sort))
		for i, s := range opts.Sort {
			direction := 1
			if s.Descending {
				direction = -1
			}
			sort[i] = bson.E{Key: s.Field, Value: direction}
		}
		builder.SetSort(sort)
	}
	if opts.Limit > 0 {
		builder.SetLimit(opts.Limit)
	}
	if opts.Offset > 0 {
		builder.SetSkip(opts.Offset)
	}
	return builder
}

// Find returns all documents matching filter.
func (a *Adapter) Find(ctx context.Context, target string, filter datastore.Filter, opts *datastore.FindOptions) (datastore.RowSet, error) {
	if err := a.checkReady(); err != nil {
		return nil, err
	}
	var handle datastore.Txn
	if opts != nil {
		handle = opts.Txn
	}
	opCtx, err := a.opCtx(ctx, handle)
	if err != nil {
		return nil, err
	}

	cursor, err := a.db.Collection(target).Find(opCtx, coerceObjectIDs(filter), buildFindOptions(opts))
	if err != nil {
		return nil, datastore.NewQueryError(datastore.MongoDB, "find", err)
	}
	defer cursor.Close(opCtx)

	var raw []map[string]interface{}
	if err := cursor.All(opCtx, &raw); err != nil {
		return nil, datastore.NewQueryError(datastore.MongoDB, "find", err)
	}

	out := make(datastore.RowSet, len(raw))
	for i, rec := range raw {
		out[i] = normalizeRecord(rec)
	}
	return out, nil
}

// FindOne returns the first document matching filter, or (nil, nil)
// when nothing matches.
func (a *Adapter) FindOne(ctx context.Context, target string, filter datastore.Filter, opts *datastore.FindOptions) (datastore.Record, error) {
	if err := a.checkReady(); err != nil {
		return nil, err
	}
	var handle datastore.Txn
	if opts != nil {
		handle = opts.Txn
	}
	opCtx, err := a.opCtx(ctx, handle)
	if err != nil {
		return nil, err
	}

	builder := options.FindOne()
	if opts != nil {
		if len(opts.Projection) > 0 {
			projection := make(bson.D, len(opts.Projection))
			for i, field := range opts.Projection {
				projection[i] = bson.E{Key: field, Value: 1}
			}
			builder.SetProjection(projection)
		}
		if len(opts.Sort) > 0 {
			sort := make(bson.D, len(opts.Sort))
			for i, s := range opts.Sort {
				direction := 1
				if s.Descending {
					direction = -1
				}
				sort[i] = bson.E{Key: s.Field, Value: direction}
			}
			builder.SetSort(sort)
		}
		if opts.Offset > 0 {
			builder.SetSkip(opts.Offset)
		}
	}

	var rec map[string]interface{}
	err = a.db.Collection(target).FindOne(opCtx, coerceObjectIDs(filter), builder).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, datastore.NewQueryError(datastore.MongoDB, "findOne", err)
	}
	return normalizeRecord(rec), nil
}

// Update applies update to every document matching filter. Bare updates
// are auto-wrapped in $set; updates already using the native mutation
// vocabulary pass through untouched.
func (a *Adapter) Update(ctx context.Context, target string, filter datastore.Filter, update datastore.Update, opts *datastore.UpdateOptions) (*datastore.MutationResult, error) {
	if err := a.checkReady(); err != nil {
		return nil, err
	}
	if len(update) == 0 {
		return nil, datastore.NewInvalidOperationError(datastore.MongoDB, "update", "empty update expression")
	}

	wrapped, err := wrapUpdate(update)
	if err != nil {
		return nil, err
	}

	var handle datastore.Txn
	upsert := false
	if opts != nil {
		handle = opts.Txn
		upsert = opts.Upsert
	}
	opCtx, err := a.opCtx(ctx, handle)
	if err != nil {
		return nil, err
	}

	res, err := a.db.Collection(target).UpdateMany(
		opCtx,
		coerceObjectIDs(filter),
		wrapped,
		options.UpdateMany().SetUpsert(upsert),
	)
	if err != nil {
		return nil, datastore.NewQueryError(datastore.MongoDB, "update", err)
	}

	out := &datastore.MutationResult{
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
	}
	if res.UpsertedID != nil {
		if oid, ok := res.UpsertedID.(bson.ObjectID); ok {
			out.UpsertedID = oid.Hex()
		} else {
			out.UpsertedID = common.FormatID(res.UpsertedID)
		}
	}
	return out, nil
}

// Delete removes every document matching filter. An empty filter
// deletes all documents; that is the documented document-store contract.
func (a *Adapter) Delete(ctx context.Context, target string, filter datastore.Filter, opts *datastore.DeleteOptions) (*datastore.DeleteResult, error) {
	if err := a.checkReady(); err != nil {
		return nil, err
	}
	var handle datastore.Txn
	if opts != nil {
		handle = opts.Txn
	}
	opCtx, err := a.opCtx(ctx, handle)
	if err != nil {
		return nil, err
	}

	res, err := a.db.Collection(target).DeleteMany(opCtx, coerceObjectIDs(filter))
	if err != nil {
		return nil, datastore.NewQueryError(datastore.MongoDB, "delete", err)
	}
	return &datastore.DeleteResult{DeletedCount: res.DeletedCount}, nil
}

// Count returns the number of documents matching filter.
func (a *Adapter) Count(ctx context.Context, target string, filter datastore.Filter) (int64, error) {
	if err := a.checkReady(); err != nil {
		return 0, err
	}
	count, err := a.db.Collection(target).CountDocuments(ctx, coerceObjectIDs(filter))
	if err != nil {
		return 0, datastore.NewQueryError(datastore.MongoDB, "count", err)
	}
	return count, nil
}

// Aggregate runs a native aggregation pipeline.
func (a *Adapter) Aggregate(ctx context.Context, target string, spec interface{}) (datastore.RowSet, error) {
	if err := a.checkReady(); err != nil {
		return nil, err
	}

	pipeline, err := toPipeline(spec)
	if err != nil {
		return nil, err
	}

	cursor, err := a.db.Collection(target).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, datastore.NewQueryError(datastore.MongoDB, "aggregate", err)
	}
	defer cursor.Close(ctx)

	var raw []map[string]interface{}
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, datastore.NewQueryError(datastore.MongoDB, "aggregate", err)
	}

	out := make(datastore.RowSet, len(raw))
	for i, rec := range raw {
		out[i] = normalizeRecord(rec)
	}
	return out, nil
}

func toPipeline(spec interface{}) (interface{}, error) {
	switch t := spec.(type) {
	case mongo.Pipeline, bson.A, []interface{}:
		return t, nil
	case []datastore.Record:
		stages := make([]interface{}, len(t))
		for i, stage := range t {
			stages[i] = coerceObjectIDs(stage)
		}
		return stages, nil
	case []map[string]interface{}:
		stages := make([]interface{}, len(t))
		for i, stage := range t {
			stages[i] = coerceObjectIDs(stage)
		}
		return stages, nil
	default:
		return nil, datastore.NewInvalidOperationError(
			datastore.MongoDB, "aggregate", "aggregation spec must be a pipeline of stages")
	}
}

// BeginTransaction starts a session-backed transaction.
func (a *Adapter) BeginTransaction(ctx context.Context) (datastore.Txn, error) {
	if err := a.checkReady(); err != nil {
		return nil, err
	}
	sess, err := a.client.StartSession()
	if err != nil {
		return nil, datastore.NewQueryError(datastore.MongoDB, "begin", err)
	}
	if err := sess.StartTransaction(); err != nil {
		sess.EndSession(ctx)
		return nil, datastore.NewQueryError(datastore.MongoDB, "begin", err)
	}
	return &txn{sess: sess}, nil
}

// CommitTransaction commits the handle's transaction. The session is
// ended afterward whether or not the commit succeeds.
func (a *Adapter) CommitTransaction(ctx context.Context, t datastore.Txn) error {
	if err := a.checkReady(); err != nil {
		return err
	}
	mt, ok := t.(*txn)
	if !ok {
		return datastore.NewInvalidOperationError(
			datastore.MongoDB, "commit", "handle belongs to a different backend")
	}
	defer mt.sess.EndSession(ctx)
	if err := mt.sess.CommitTransaction(ctx); err != nil {
		return datastore.NewQueryError(datastore.MongoDB, "commit", err)
	}
	return nil
}

// RollbackTransaction aborts the handle's transaction. The session is
// ended afterward whether or not the abort succeeds.
func (a *Adapter) RollbackTransaction(ctx context.Context, t datastore.Txn) error {
	if err := a.checkReady(); err != nil {
		return err
	}
	mt, ok := t.(*txn)
	if !ok {
		return datastore.NewInvalidOperationError(
			datastore.MongoDB, "rollback", "handle belongs to a different backend")
	}
	defer mt.sess.EndSession(ctx)
	if err := mt.sess.AbortTransaction(ctx); err != nil {
		return datastore.NewQueryError(datastore.MongoDB, "rollback", err)
	}
	return nil
}
