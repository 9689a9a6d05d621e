package datastore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	Store
	kind Kind
}

func (s *stubStore) Kind() Kind                           { return s.kind }
func (s *stubStore) Initialize(ctx context.Context) error { return nil }

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(Kind("graph"), Config{})

	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestRegisterAndNew(t *testing.T) {
	kind := Kind("stub")
	Register(kind, func(cfg Config) Store {
		return &stubStore{kind: kind}
	})

	assert.True(t, IsRegistered(kind))

	store, err := New(kind, Config{Host: "localhost"})
	require.NoError(t, err)
	assert.Equal(t, kind, store.Kind())
}

func TestNewByNameAlias(t *testing.T) {
	kind := Kind("postgres")
	Register(kind, func(cfg Config) Store {
		return &stubStore{kind: kind}
	})

	store, err := NewByName("pg", Config{})
	require.NoError(t, err)
	assert.Equal(t, Postgres, store.Kind())

	_, err = NewByName("cassandra", Config{})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		name string
		want Kind
		ok   bool
	}{
		{"postgres", Postgres, true},
		{"postgresql", Postgres, true},
		{"pg", Postgres, true},
		{"mongodb", MongoDB, true},
		{"mongo", MongoDB, true},
		{"clickhouse", ClickHouse, true},
		{"mysql", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := ParseKind(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, kind)
		})
	}
}
