package datastore

// InsertResult reports the outcome of an Insert.
type InsertResult struct {
	InsertedCount int64    `json:"insertedCount"`
	InsertedIDs   []string `json:"insertedIds,omitempty"`
}

// MutationResult reports the outcome of an Update.
type MutationResult struct {
	MatchedCount  int64  `json:"matchedCount"`
	ModifiedCount int64  `json:"modifiedCount"`
	UpsertedID    string `json:"upsertedId,omitempty"`
}

// DeleteResult reports the outcome of a Delete.
type DeleteResult struct {
	DeletedCount int64 `json:"deletedCount"`
}

// Sort orders a result set by one field. Sorts compose in slice order.
type Sort struct {
	Field      string
	Descending bool
}

// FindOptions adjusts Find and FindOne. A nil *FindOptions is valid.
type FindOptions struct {
	// Projection restricts the returned fields. Empty means all fields.
	Projection []string
	Sort       []Sort
	Limit      int64
	Offset     int64
	// Txn joins the operation to an open transaction.
	Txn Txn
}

// InsertOptions adjusts Insert. A nil *InsertOptions is valid.
type InsertOptions struct {
	Txn Txn
}

// UpdateOptions adjusts Update. A nil *UpdateOptions is valid.
type UpdateOptions struct {
	// Upsert inserts a new record when the filter matches nothing.
	// Supported by the document backend only.
	Upsert bool
	Txn    Txn
}

// DeleteOptions adjusts Delete. A nil *DeleteOptions is valid.
type DeleteOptions struct {
	Txn Txn
}
