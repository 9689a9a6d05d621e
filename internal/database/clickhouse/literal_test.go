package clickhouse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohortlab/cohortlab/pkg/datastore"
)

func TestEscapeString(t *testing.T) {
	assert.Equal(t, "plain", escapeString("plain"))
	assert.Equal(t, "O''Brien", escapeString("O'Brien"))
	assert.Equal(t, "''; DROP TABLE events; --", escapeString("'; DROP TABLE events; --"))
}

func TestFormatLiteral(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"nil", nil, "NULL"},
		{"string", "u1", "'u1'"},
		{"string with quote", "it's", "'it''s'"},
		{"int", 42, "42"},
		{"int64", int64(-7), "-7"},
		{"uint", uint64(9), "9"},
		{"float", 1.5, "1.5"},
		{"bool true", true, "1"},
		{"bool false", false, "0"},
		{"time", ts, "'2024-03-01 12:30:00'"},
		{"slice", []interface{}{"a", 1}, "('a', 1)"},
		{"string slice", []string{"a", "b"}, "('a', 'b')"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatLiteral(tt.value)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatLiteralRejectsUnknownTypes(t *testing.T) {
	// Types without an escaping rule must be rejected, never
	// interpolated raw.
	_, err := formatLiteral(struct{ X int }{1})

	assert.Error(t, err)
	assert.True(t, datastore.IsInvalidOperation(err))
}

func TestOperatorClause(t *testing.T) {
	tests := []struct {
		op   string
		want string
	}{
		{datastore.OpGT, "`duration` > 30"},
		{datastore.OpGTE, "`duration` >= 30"},
		{datastore.OpLT, "`duration` < 30"},
		{datastore.OpLTE, "`duration` <= 30"},
		{datastore.OpNE, "`duration` != 30"},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			got, err := operatorClause("duration", tt.op, 30)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("regex", func(t *testing.T) {
		got, err := operatorClause("path", datastore.OpRegex, "^/checkout")

		require.NoError(t, err)
		assert.Equal(t, "match(`path`, '^/checkout')", got)
	})

	t.Run("unrecognized operator rejected", func(t *testing.T) {
		_, err := operatorClause("duration", "$mod", 2)

		assert.True(t, datastore.IsInvalidOperation(err))
	})
}

func TestBuildWhere(t *testing.T) {
	t.Run("empty filter yields empty clause", func(t *testing.T) {
		where, err := buildWhere(datastore.Filter{})

		assert.NoError(t, err)
		assert.Empty(t, where)
	})

	t.Run("equality and operators combine", func(t *testing.T) {
		where, err := buildWhere(datastore.Filter{
			"user_id":  "u1",
			"duration": map[string]interface{}{datastore.OpGTE: 30, datastore.OpLT: 90},
		})

		require.NoError(t, err)
		assert.Equal(t, " WHERE `duration` >= 30 AND `duration` < 90 AND `user_id` = 'u1'", where)
	})

	t.Run("slice literal becomes membership", func(t *testing.T) {
		where, err := buildWhere(datastore.Filter{"user_id": []string{"u1", "u2"}})

		require.NoError(t, err)
		assert.Equal(t, " WHERE `user_id` IN ('u1', 'u2')", where)
	})

	t.Run("string literals are escaped", func(t *testing.T) {
		where, err := buildWhere(datastore.Filter{"name": "O'Brien"})

		require.NoError(t, err)
		assert.Equal(t, " WHERE `name` = 'O''Brien'", where)
	})
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, "`events`", quoteIdentifier("events"))
	assert.Equal(t, "`odd``name`", quoteIdentifier("odd`name"))
}
