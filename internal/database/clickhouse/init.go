package clickhouse

import (
	"github.com/cohortlab/cohortlab/pkg/datastore"
)

func init() {
	// Register the ClickHouse adapter with the global registry
	datastore.Register(datastore.ClickHouse, NewAdapter)
}
