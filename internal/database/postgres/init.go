package postgres

import (
	"github.com/cohortlab/cohortlab/pkg/datastore"
)

func init() {
	// Register the PostgreSQL adapter with the global registry
	datastore.Register(datastore.Postgres, NewAdapter)
}
