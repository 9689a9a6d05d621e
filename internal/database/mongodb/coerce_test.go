package mongodb

import (
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/cohortlab/cohortlab/pkg/datastore"
)

const validHex = "507f1f77bcf86cd799439011"

func TestCoerceObjectIDsScalar(t *testing.T) {
	out := coerceObjectIDs(map[string]interface{}{"_id": validHex})

	oid, ok := out["_id"].(bson.ObjectID)
	if !ok {
		t.Fatalf("expected bson.ObjectID, got %T", out["_id"])
	}
	if oid.Hex() != validHex {
		t.Errorf("expected hex %s, got %s", validHex, oid.Hex())
	}
}

func TestCoerceObjectIDsInvalidPassThrough(t *testing.T) {
	out := coerceObjectIDs(map[string]interface{}{"_id": "not-a-valid-id"})

	if got, ok := out["_id"].(string); !ok || got != "not-a-valid-id" {
		t.Errorf("expected untouched string, got %v (%T)", out["_id"], out["_id"])
	}
}

func TestCoerceObjectIDsMembershipList(t *testing.T) {
	out := coerceObjectIDs(map[string]interface{}{
		"_id": map[string]interface{}{
			datastore.OpIn: []interface{}{validHex, "not-a-valid-id"},
		},
	})

	sub := out["_id"].(map[string]interface{})
	list := sub[datastore.OpIn].([]interface{})

	if _, ok := list[0].(bson.ObjectID); !ok {
		t.Errorf("expected first element coerced, got %T", list[0])
	}
	if got, ok := list[1].(string); !ok || got != "not-a-valid-id" {
		t.Errorf("expected second element untouched, got %v (%T)", list[1], list[1])
	}
}

func TestCoerceObjectIDsNested(t *testing.T) {
	out := coerceObjectIDs(map[string]interface{}{
		"$or": []interface{}{
			map[string]interface{}{"_id": validHex},
			map[string]interface{}{"name": validHex},
		},
	})

	clauses := out["$or"].([]interface{})
	first := clauses[0].(map[string]interface{})
	second := clauses[1].(map[string]interface{})

	if _, ok := first["_id"].(bson.ObjectID); !ok {
		t.Errorf("expected nested _id coerced, got %T", first["_id"])
	}
	// A 24-hex string under any other field name stays a string.
	if _, ok := second["name"].(string); !ok {
		t.Errorf("expected non-_id field untouched, got %T", second["name"])
	}
}

func TestCoerceObjectIDsDoesNotMutateInput(t *testing.T) {
	in := map[string]interface{}{"_id": validHex}
	coerceObjectIDs(in)

	if _, ok := in["_id"].(string); !ok {
		t.Errorf("input filter was mutated")
	}
}

func TestWrapUpdateBareFields(t *testing.T) {
	wrapped, err := wrapUpdate(datastore.Update{"name": "checkout-v2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	set, ok := wrapped["$set"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected $set wrapper, got %v", wrapped)
	}
	if set["name"] != "checkout-v2" {
		t.Errorf("expected field preserved, got %v", set["name"])
	}
}

func TestWrapUpdateNativeOperatorsPassThrough(t *testing.T) {
	wrapped, err := wrapUpdate(datastore.Update{
		datastore.OpInc: map[string]interface{}{"views": 1},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := wrapped[datastore.OpInc]; !ok {
		t.Errorf("expected $inc preserved, got %v", wrapped)
	}
	if _, ok := wrapped["$set"]; ok {
		t.Errorf("native update must not be wrapped in $set")
	}
}

func TestWrapUpdateMixedRejected(t *testing.T) {
	_, err := wrapUpdate(datastore.Update{
		"name":          "checkout-v2",
		datastore.OpInc: map[string]interface{}{"views": 1},
	})

	if !datastore.IsInvalidOperation(err) {
		t.Errorf("expected invalid-operation error, got %v", err)
	}
}

func TestNormalizeValue(t *testing.T) {
	oid, _ := bson.ObjectIDFromHex(validHex)

	rec := normalizeRecord(map[string]interface{}{
		"_id":  oid,
		"tags": bson.A{"a", "b"},
		"meta": bson.D{{Key: "owner", Value: oid}},
	})

	if rec["_id"] != validHex {
		t.Errorf("expected ObjectID normalized to hex, got %v", rec["_id"])
	}
	meta, ok := rec["meta"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected bson.D normalized to map, got %T", rec["meta"])
	}
	if meta["owner"] != validHex {
		t.Errorf("expected nested ObjectID normalized, got %v", meta["owner"])
	}
	if _, ok := rec["tags"].([]interface{}); !ok {
		t.Errorf("expected bson.A normalized to slice, got %T", rec["tags"])
	}
}
