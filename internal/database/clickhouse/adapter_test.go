package clickhouse

import (
	"context"
	"errors"
	"testing"

	chdriver "github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohortlab/cohortlab/pkg/datastore"
)

// fakeConn counts driver calls so tests can assert which statements an
// operation issues, if any.
type fakeConn struct {
	execCalls  int
	queryCalls int
	batchCalls int
	lastExec   string
}

func (f *fakeConn) Query(ctx context.Context, query string, args ...interface{}) (chdriver.Rows, error) {
	f.queryCalls++
	return nil, errors.New("fake connection has no rows")
}

func (f *fakeConn) Exec(ctx context.Context, query string, args ...interface{}) error {
	f.execCalls++
	f.lastExec = query
	return nil
}

func (f *fakeConn) PrepareBatch(ctx context.Context, query string, opts ...chdriver.PrepareBatchOption) (chdriver.Batch, error) {
	f.batchCalls++
	return nil, errors.New("fake connection has no batches")
}

func (f *fakeConn) Ping(ctx context.Context) error { return nil }
func (f *fakeConn) Close() error                   { return nil }

func newTestAdapter(conn Conn) *Adapter {
	return &Adapter{conn: conn, initialized: 1}
}

func TestOperationsBeforeInitialize(t *testing.T) {
	a := NewAdapter(datastore.Config{}).(*Adapter)
	ctx := context.Background()

	_, err := a.Query(ctx, "SELECT 1")
	assert.ErrorIs(t, err, datastore.ErrNotInitialized)

	_, err = a.Insert(ctx, "events", []datastore.Record{{"event": "click"}}, nil)
	assert.ErrorIs(t, err, datastore.ErrNotInitialized)

	_, err = a.Find(ctx, "events", nil, nil)
	assert.ErrorIs(t, err, datastore.ErrNotInitialized)

	_, err = a.Delete(ctx, "events", datastore.Filter{"user_id": "u1"}, nil)
	assert.ErrorIs(t, err, datastore.ErrNotInitialized)

	_, err = a.Count(ctx, "events", nil)
	assert.ErrorIs(t, err, datastore.ErrNotInitialized)
}

func TestCloseBeforeInitialize(t *testing.T) {
	a := NewAdapter(datastore.Config{}).(*Adapter)

	assert.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}

func TestDeleteEmptyFilterFailsFast(t *testing.T) {
	conn := &fakeConn{}
	a := newTestAdapter(conn)

	_, err := a.Delete(context.Background(), "events", datastore.Filter{}, nil)

	assert.True(t, datastore.IsInvalidOperation(err))
	assert.Zero(t, conn.execCalls, "empty-filter delete must not reach the backend")
	assert.Zero(t, conn.queryCalls)
}

func TestDeleteIssuesOneRangeDelete(t *testing.T) {
	conn := &fakeConn{}
	a := newTestAdapter(conn)

	res, err := a.Delete(context.Background(), "events", datastore.Filter{"user_id": "u1"}, nil)

	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Equal(t, 1, conn.execCalls)
	assert.Zero(t, conn.queryCalls)
	assert.Equal(t, "ALTER TABLE `events` DELETE WHERE `user_id` = 'u1'", conn.lastExec)
}

func TestUpdateAlwaysUnsupported(t *testing.T) {
	conn := &fakeConn{}
	a := newTestAdapter(conn)
	ctx := context.Background()

	_, err := a.Update(ctx, "events", datastore.Filter{"user_id": "u1"},
		datastore.Update{"event": "view"}, nil)
	assert.True(t, datastore.IsUnsupported(err))

	_, err = a.Update(ctx, "events", datastore.Filter{}, datastore.Update{}, nil)
	assert.True(t, datastore.IsUnsupported(err))

	assert.Zero(t, conn.execCalls)
	assert.Zero(t, conn.queryCalls)
}

func TestTransactionsUnsupported(t *testing.T) {
	a := NewAdapter(datastore.Config{}).(*Adapter)
	ctx := context.Background()

	_, err := a.BeginTransaction(ctx)
	assert.True(t, datastore.IsUnsupported(err))

	assert.True(t, datastore.IsUnsupported(a.CommitTransaction(ctx, nil)))
	assert.True(t, datastore.IsUnsupported(a.RollbackTransaction(ctx, nil)))
}

func TestInsertEmptySliceIsNoOp(t *testing.T) {
	conn := &fakeConn{}
	a := newTestAdapter(conn)

	res, err := a.Insert(context.Background(), "events", []datastore.Record{}, nil)

	require.NoError(t, err)
	assert.Equal(t, int64(0), res.InsertedCount)
	assert.Zero(t, conn.batchCalls, "empty insert must not reach the backend")
}

func TestInsertRejectsTransactionHandle(t *testing.T) {
	conn := &fakeConn{}
	a := newTestAdapter(conn)

	_, err := a.Insert(context.Background(), "events",
		[]datastore.Record{{"event": "click"}},
		&datastore.InsertOptions{Txn: fakeTxn{}})

	assert.True(t, datastore.IsUnsupported(err))
	assert.Zero(t, conn.batchCalls)
}

type fakeTxn struct{}

func (fakeTxn) Kind() datastore.Kind { return datastore.Postgres }

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name  string
		cfg   datastore.Config
		field string
	}{
		{"missing host", datastore.Config{Port: 9000, DatabaseName: "analytics"}, "host"},
		{"missing port", datastore.Config{Host: "localhost", DatabaseName: "analytics"}, "port"},
		{"missing database", datastore.Config{Host: "localhost", Port: 9000}, "databaseName"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfig(tt.cfg)

			require.Error(t, err)
			assert.True(t, datastore.IsConfigurationError(err))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestAdapterKind(t *testing.T) {
	a := NewAdapter(datastore.Config{})
	assert.Equal(t, datastore.ClickHouse, a.Kind())
}
