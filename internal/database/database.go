// Package database wires the concrete backend adapters to the
// datastore registry. Importing it (directly or via Open) makes the
// postgres, mongodb and clickhouse adapters constructible by name.
package database

import (
	"github.com/cohortlab/cohortlab/pkg/datastore"

	// Import all backend adapters to trigger their init() registration
	_ "github.com/cohortlab/cohortlab/internal/database/clickhouse"
	_ "github.com/cohortlab/cohortlab/internal/database/mongodb"
	_ "github.com/cohortlab/cohortlab/internal/database/postgres"
)

// Open constructs the adapter for a configuration-selected backend
// name. It performs no I/O; Initialize remains the caller's
// responsibility.
func Open(name string, cfg datastore.Config) (datastore.Store, error) {
	return datastore.NewByName(name, cfg)
}
