package mongodb

import (
	"github.com/cohortlab/cohortlab/pkg/datastore"
)

func init() {
	// Register the MongoDB adapter with the global registry
	datastore.Register(datastore.MongoDB, NewAdapter)
}
