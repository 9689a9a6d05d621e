package common

import (
	"fmt"
	"strings"
)

// QuoteIdentifier quotes a SQL identifier for engines using double-quote
// quoting (PostgreSQL). Embedded quotes are doubled.
func QuoteIdentifier(name string) string {
	name = strings.Replace(name, `"`, `""`, -1)
	return fmt.Sprintf(`"%s"`, name)
}

// QuoteStringSlice single-quotes each element, doubling embedded quotes.
func QuoteStringSlice(slice []string) []string {
	quoted := make([]string, len(slice))
	for i, s := range slice {
		quoted[i] = fmt.Sprintf("'%s'", strings.ReplaceAll(s, "'", "''"))
	}
	return quoted
}

// FormatID renders a backend-generated primary key as the string form
// callers see. Byte slices and stringers collapse to their natural text
// representation; everything else goes through fmt.
func FormatID(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
