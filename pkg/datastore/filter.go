package datastore

import (
	"sort"
	"strings"
)

// Filter is the backend-neutral WHERE description passed into
// Find/FindOne/Update/Delete/Count. Each entry maps a field name to
// either a literal (equality, or membership when the literal is a
// slice) or a nested operator map such as
//
//	Filter{"duration": map[string]interface{}{OpGTE: 30}}
//
// The operator vocabulary uses the document-native spellings, which the
// SQL adapters translate.
type Filter map[string]interface{}

// Comparison operators recognized in operator sub-filters.
const (
	OpGT    = "$gt"
	OpGTE   = "$gte"
	OpLT    = "$lt"
	OpLTE   = "$lte"
	OpNE    = "$ne"
	OpRegex = "$regex"
	OpIn    = "$in"
)

// Update is the backend-neutral mutation description. A bare
// field-to-value mapping always means "set these fields". The document
// backend additionally accepts its native mutation operators as top
// level keys; mixing native operators with bare fields is ambiguous and
// rejected.
type Update map[string]interface{}

// Native mutation operators accepted by the document backend.
const (
	OpSet   = "$set"
	OpUnset = "$unset"
	OpInc   = "$inc"
	OpPush  = "$push"
	OpPull  = "$pull"
)

// HasMutationOperators reports whether any top-level key of the update
// uses the native mutation vocabulary.
func (u Update) HasMutationOperators() bool {
	for k := range u {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

// IsMixed reports whether the update combines native mutation operators
// with bare field assignments.
func (u Update) IsMixed() bool {
	var bare, native bool
	for k := range u {
		if strings.HasPrefix(k, "$") {
			native = true
		} else {
			bare = true
		}
	}
	return bare && native
}

// IsOperatorMap reports whether a filter value is an operator sub-filter
// rather than a literal.
func IsOperatorMap(v interface{}) bool {
	m, ok := v.(map[string]interface{})
	if !ok || len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

// SortedKeys returns the keys of a map in lexical order. The SQL
// adapters iterate filters and updates in this order so that generated
// statements are deterministic.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
