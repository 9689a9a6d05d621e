package clickhouse

import (
	"fmt"
	"strings"
	"time"

	"github.com/cohortlab/cohortlab/pkg/datastore"
)

// The statement protocol used here has no parameter binding for filter
// translation, so every literal is inlined. This is a trust boundary:
// all literals MUST pass through formatLiteral (and strings through
// escapeString) before interpolation. A literal type formatLiteral does
// not know is rejected, never interpolated raw.

// escapeString escapes a string literal by quote-doubling.
func escapeString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// quoteIdentifier quotes a ClickHouse identifier with backticks.
func quoteIdentifier(name string) string {
	name = strings.ReplaceAll(name, "`", "``")
	return fmt.Sprintf("`%s`", name)
}

// formatLiteral renders a Go value as an inline ClickHouse literal.
func formatLiteral(v interface{}) (string, error) {
	switch t := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return "'" + escapeString(t) + "'", nil
	case bool:
		if t {
			return "1", nil
		}
		return "0", nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", t), nil
	case float32, float64:
		return fmt.Sprintf("%v", t), nil
	case time.Time:
		return "'" + t.UTC().Format("2006-01-02 15:04:05") + "'", nil
	case []interface{}:
		return formatLiteralList(t)
	case []string:
		elems := make([]interface{}, len(t))
		for i, s := range t {
			elems[i] = s
		}
		return formatLiteralList(elems)
	default:
		return "", datastore.NewInvalidOperationError(
			datastore.ClickHouse, "filter",
			fmt.Sprintf("literal type %T has no escaping rule", v))
	}
}

func formatLiteralList(elems []interface{}) (string, error) {
	parts := make([]string, len(elems))
	for i, e := range elems {
		lit, err := formatLiteral(e)
		if err != nil {
			return "", err
		}
		parts[i] = lit
	}
	return "(" + strings.Join(parts, ", ") + ")", nil
}

// operatorClause renders one operator sub-filter condition.
func operatorClause(field, op string, value interface{}) (string, error) {
	ident := quoteIdentifier(field)
	lit, err := formatLiteral(value)
	if err != nil {
		return "", err
	}
	switch op {
	case datastore.OpGT:
		return fmt.Sprintf("%s > %s", ident, lit), nil
	case datastore.OpGTE:
		return fmt.Sprintf("%s >= %s", ident, lit), nil
	case datastore.OpLT:
		return fmt.Sprintf("%s < %s", ident, lit), nil
	case datastore.OpLTE:
		return fmt.Sprintf("%s <= %s", ident, lit), nil
	case datastore.OpNE:
		return fmt.Sprintf("%s != %s", ident, lit), nil
	case datastore.OpRegex:
		return fmt.Sprintf("match(%s, %s)", ident, lit), nil
	case datastore.OpIn:
		return fmt.Sprintf("%s IN %s", ident, lit), nil
	default:
		return "", datastore.NewInvalidOperationError(
			datastore.ClickHouse, "filter", fmt.Sprintf("unrecognized operator %q", op))
	}
}

// buildWhere translates a neutral filter into an inlined WHERE clause.
// The clause is empty for an empty filter; operations for which an
// empty filter is dangerous must check before calling.
func buildWhere(filter datastore.Filter) (string, error) {
	if len(filter) == 0 {
		return "", nil
	}

	var conditions []string
	for _, field := range datastore.SortedKeys(filter) {
		value := filter[field]
		if datastore.IsOperatorMap(value) {
			sub := value.(map[string]interface{})
			for _, op := range datastore.SortedKeys(sub) {
				cond, err := operatorClause(field, op, sub[op])
				if err != nil {
					return "", err
				}
				conditions = append(conditions, cond)
			}
			continue
		}
		switch value.(type) {
		case []interface{}, []string:
			cond, err := operatorClause(field, datastore.OpIn, value)
			if err != nil {
				return "", err
			}
			conditions = append(conditions, cond)
		default:
			lit, err := formatLiteral(value)
			if err != nil {
				return "", err
			}
			conditions = append(conditions, fmt.Sprintf("%s = %s", quoteIdentifier(field), lit))
		}
	}

	return " WHERE " + strings.Join(conditions, " AND "), nil
}

func buildSelectClause(projection []string) string {
	if len(projection) == 0 {
		return "*"
	}
	quoted := make([]string, len(projection))
	for i, col := range projection {
		quoted[i] = quoteIdentifier(col)
	}
	return strings.Join(quoted, ", ")
}

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
		parts[i] = fmt.Sprintf("%s %s", quoteIdentifier(s.Field), direction)
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}
