package postgres

import (
	"fmt"
	"strings"

	"github.com/cohortlab/cohortlab/internal/database/common"
	"github.com/cohortlab/cohortlab/pkg/datastore"
)

// buildWhere translates a neutral filter into a parameterized WHERE
// clause. Each field becomes a positional-parameter equality clause;
// slice literals become membership tests. Operator sub-filters are not
// translated on this backend: the relational contract is flat equality
// only, and a sub-filter fails loudly instead of being misapplied.
//
// startIdx is the first positional parameter number to use. The clause
// is empty (matching all rows) for an empty filter.
func buildWhere(filter datastore.Filter, startIdx int) (string, []interface{}, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}

	conditions := make([]string, 0, len(filter))
	args := make([]interface{}, 0, len(filter))
	idx := startIdx

	for _, field := range datastore.SortedKeys(filter) {
		value := filter[field]
		if datastore.IsOperatorMap(value) {
			return "", nil, datastore.NewUnsupportedOperationError(
				datastore.Postgres,
				"operator sub-filters",
				fmt.Sprintf("field %q: only flat equality filters are translated for this backend", field),
			)
		}
		switch value.(type) {
		case []interface{}, []string, []int, []int64, []float64:
			conditions = append(conditions, fmt.Sprintf("%s = ANY($%d)", common.QuoteIdentifier(field), idx))
		default:
			conditions = append(conditions, fmt.Sprintf("%s = $%d", common.QuoteIdentifier(field), idx))
		}
		args = append(args, value)
		idx++
	}

	return " WHERE " + strings.Join(conditions, " AND "), args, nil
}

// buildSet translates a bare field-to-value update into a parameterized
// SET clause starting at parameter $1.
func buildSet(update datastore.Update) (string, []interface{}) {
	assignments := make([]string, 0, len(update))
	args := make([]interface{}, 0, len(update))

	for i, field := range datastore.SortedKeys(update) {
		assignments = append(assignments, fmt.Sprintf("%s = $%d", common.QuoteIdentifier(field), i+1))
		args = append(args, update[field])
	}

	return strings.Join(assignments, ", "), args
}

// buildInsert builds a single-row INSERT with RETURNING * so the
// backend-assigned primary key can be read back.
func buildInsert(table string, rec datastore.Record) (string, []interface{}) {
	cols := datastore.SortedKeys(rec)

	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, col := range cols {
		quoted[i] = common.QuoteIdentifier(col)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = rec[col]
	}

	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		common.QuoteIdentifier(table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	)
	return stmt, args
}

// buildSelectClause renders the projection, or * when none is given.
func buildSelectClause(projection []string) string {
	if len(projection) == 0 {
		return "*"
	}
	quoted := make([]string, len(projection))
	for i, col := range projection {
		quoted[i] = common.QuoteIdentifier(col)
	}
	return strings.Join(quoted, ", ")
}

// buildOrderBy renders an ORDER BY clause, empty when no sort is given.
func buildOrderBy(sorts []datastore.Sort) string {
	if len(sorts) == 0 {
		return ""
	}
	parts := make([]string, len(sorts))
	for i, s := range sorts {
		direction := "ASC"
		if s.Descending {
			direction = "DESC"
		}
		parts[i] = fmt.Sprintf("%s %s", common.QuoteIdentifier(s.Field), direction)
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}
