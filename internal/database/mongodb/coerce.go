package mongodb

import (
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/cohortlab/cohortlab/pkg/datastore"
)

// coerceObjectIDs rewrites a neutral filter for execution: any value
// under a field literally named "_id", at any nesting depth including
// operator sub-filters and membership arrays, that is a string in the
// native 24-hex identifier format becomes a bson.ObjectID. Strings that
// do not match the format pass through unchanged, as do all other
// values. The input is not mutated.
func coerceObjectIDs(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = coerceValue(v, k == "_id")
	}
	return out
}

// coerceValue walks one value. underID is true while the walk is inside
// an "_id" field; it survives operator keys and arrays but resets at any
// other field name.
func coerceValue(v interface{}, underID bool) interface{} {
	if m, ok := asStringMap(v); ok {
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			out[k] = coerceValue(val, k == "_id" || (underID && strings.HasPrefix(k, "$")))
		}
		return out
	}

	switch t := v.(type) {
	case string:
		if underID {
			if oid, err := bson.ObjectIDFromHex(t); err == nil {
				return oid
			}
		}
		return t
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = coerceValue(e, underID)
		}
		return out
	case []string:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = coerceValue(e, underID)
		}
		return out
	case bson.A:
		out := make(bson.A, len(t))
		for i, e := range t {
			out[i] = coerceValue(e, underID)
		}
		return out
	default:
		return v
	}
}

func asStringMap(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, true
	case bson.M:
		return t, true
	case datastore.Filter:
		return t, true
	case datastore.Record:
		return t, true
	case datastore.Update:
		return t, true
	}
	return nil, false
}

// wrapUpdate prepares a neutral update for the driver. A bare
// field-to-value mapping is wrapped in $set; an update already using
// native mutation operators passes through; mixing the two is ambiguous
// and rejected.
func wrapUpdate(update datastore.Update) (bson.M, error) {
	if update.IsMixed() {
		return nil, datastore.NewInvalidOperationError(
			datastore.MongoDB, "update",
			"mixing native mutation operators with bare field assignments is ambiguous")
	}
	coerced := coerceObjectIDs(update)
	if update.HasMutationOperators() {
		return bson.M(coerced), nil
	}
	return bson.M{"$set": coerced}, nil
}

// normalizeRecord converts driver-decoded BSON values into plain Go
// types so callers never see backend-native representations: ObjectIDs
// become hex strings, BSON datetimes become time.Time, nested documents
// and arrays become plain maps and slices.
func normalizeRecord(rec map[string]interface{}) datastore.Record {
	out := make(datastore.Record, len(rec))
	for k, v := range rec {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.ObjectID:
		return t.Hex()
	case bson.DateTime:
		return t.Time()
	case bson.D:
		out := make(map[string]interface{}, len(t))
		for _, e := range t {
			out[e.Key] = normalizeValue(e.Value)
		}
		return out
	case bson.M:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalizeValue(val)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalizeValue(val)
		}
		return out
	case bson.A:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}
