// Package datastore defines the unified storage contract for the platform.
//
// The platform persists its data in three structurally different engines:
// a relational SQL store (PostgreSQL), a document store (MongoDB) and a
// columnar analytics store (ClickHouse). Feature code (experiment
// assignment, cohort tracking, session capture, dashboard CRUD) is written
// once against the Store interface in this package; the engine-specific
// adapters under internal/database translate the neutral filter and update
// expressions into each engine's native query form.
//
// Construction and connection are deliberately separate: New (or
// database.Open) only builds an adapter, Initialize acquires the pool or
// client session, and Close releases it. Callers may construct adapters
// speculatively without paying connection cost.
//
// Capabilities are not papered over. Engines that lack a feature surface
// that absence as a typed error instead of emulating it: the columnar
// backend has no transactions and no safe row update, so those operations
// fail with ErrOperationNotSupported, and a delete with an empty filter on
// it fails with ErrInvalidOperation rather than translating to "delete
// everything".
package datastore
