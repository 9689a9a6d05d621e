package datastore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryErrorWrapsCause(t *testing.T) {
	cause := errors.New("relation \"projects\" does not exist")
	err := NewQueryError(Postgres, "find", cause)

	assert.ErrorIs(t, err, ErrQueryFailed)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "relation \"projects\" does not exist")
}

func TestWrapQueryErrorNoDoubleWrap(t *testing.T) {
	cause := errors.New("duplicate key")
	wrapped := WrapQueryError(Postgres, "insert", cause)
	rewrapped := WrapQueryError(Postgres, "insert", wrapped)

	assert.Equal(t, wrapped, rewrapped)
}

func TestWrapQueryErrorPreservesTypedErrors(t *testing.T) {
	unsupported := NewUnsupportedOperationError(ClickHouse, "update", "")
	assert.Equal(t, error(unsupported), WrapQueryError(ClickHouse, "update", unsupported))

	invalid := NewInvalidOperationError(ClickHouse, "delete", "empty filter")
	assert.Equal(t, error(invalid), WrapQueryError(ClickHouse, "delete", invalid))

	assert.Nil(t, WrapQueryError(Postgres, "find", nil))
}

func TestUnsupportedOperationError(t *testing.T) {
	err := NewUnsupportedOperationError(ClickHouse, "beginTransaction", "this engine has no transactional isolation")

	assert.ErrorIs(t, err, ErrOperationNotSupported)
	assert.True(t, IsUnsupported(err))
	assert.Contains(t, err.Error(), "beginTransaction")
}

func TestInvalidOperationError(t *testing.T) {
	err := NewInvalidOperationError(ClickHouse, "delete", "a non-empty filter is required")

	assert.ErrorIs(t, err, ErrInvalidOperation)
	assert.True(t, IsInvalidOperation(err))
	assert.False(t, IsUnsupported(err))
}

func TestConnectionError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewConnectionError(Postgres, "db.internal", 5432, cause)

	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsConnectionError(err))
	assert.Contains(t, err.Error(), "db.internal:5432")
}

func TestConfigurationError(t *testing.T) {
	err := NewConfigurationError(MongoDB, "databaseName", "required")

	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.True(t, IsConfigurationError(err))
	assert.Contains(t, err.Error(), "databaseName")
}

func TestIsNotInitialized(t *testing.T) {
	assert.True(t, IsNotInitialized(ErrNotInitialized))
	assert.False(t, IsNotInitialized(ErrQueryFailed))
}
