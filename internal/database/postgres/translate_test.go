package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohortlab/cohortlab/pkg/datastore"
)

func TestBuildWhere(t *testing.T) {
	t.Run("empty filter yields empty clause", func(t *testing.T) {
		where, args, err := buildWhere(datastore.Filter{}, 1)

		assert.NoError(t, err)
		assert.Empty(t, where)
		assert.Empty(t, args)
	})

	t.Run("flat equality with deterministic order", func(t *testing.T) {
		where, args, err := buildWhere(datastore.Filter{
			"team":    "growth",
			"project": "p1",
		}, 1)

		require.NoError(t, err)
		assert.Equal(t, ` WHERE "project" = $1 AND "team" = $2`, where)
		assert.Equal(t, []interface{}{"p1", "growth"}, args)
	})

	t.Run("start index offsets placeholders", func(t *testing.T) {
		where, args, err := buildWhere(datastore.Filter{"id": 7}, 3)

		require.NoError(t, err)
		assert.Equal(t, ` WHERE "id" = $3`, where)
		assert.Equal(t, []interface{}{7}, args)
	})

	t.Run("slice literal becomes membership", func(t *testing.T) {
		where, args, err := buildWhere(datastore.Filter{
			"user_id": []interface{}{"u1", "u2"},
		}, 1)

		require.NoError(t, err)
		assert.Equal(t, ` WHERE "user_id" = ANY($1)`, where)
		assert.Len(t, args, 1)
	})

	t.Run("operator sub-filter is rejected", func(t *testing.T) {
		_, _, err := buildWhere(datastore.Filter{
			"duration": map[string]interface{}{datastore.OpGTE: 30},
		}, 1)

		assert.Error(t, err)
		assert.True(t, datastore.IsUnsupported(err))
	})
}

func TestBuildSet(t *testing.T) {
	set, args := buildSet(datastore.Update{"name": "checkout-v2", "active": true})

	assert.Equal(t, `"active" = $1, "name" = $2`, set)
	assert.Equal(t, []interface{}{true, "checkout-v2"}, args)
}

func TestBuildInsert(t *testing.T) {
	stmt, args := buildInsert("projects", datastore.Record{"name": "web", "token": "tok1"})

	assert.Equal(t, `INSERT INTO "projects" ("name", "token") VALUES ($1, $2) RETURNING *`, stmt)
	assert.Equal(t, []interface{}{"web", "tok1"}, args)
}

func TestBuildSelectClause(t *testing.T) {
	assert.Equal(t, "*", buildSelectClause(nil))
	assert.Equal(t, `"id", "name"`, buildSelectClause([]string{"id", "name"}))
}

func TestBuildOrderBy(t *testing.T) {
	assert.Empty(t, buildOrderBy(nil))
	assert.Equal(t, ` ORDER BY "created_at" DESC, "id" ASC`, buildOrderBy([]datastore.Sort{
		{Field: "created_at", Descending: true},
		{Field: "id"},
	}))
}
