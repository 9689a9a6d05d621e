package datastore

// Config carries the connection settings for one backend. Only the
// fields relevant to the selected backend are consulted; required-field
// validation happens in Initialize, not in the factory.
type Config struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	DatabaseName string `json:"databaseName"`
	SSL          bool   `json:"ssl,omitempty"`
	SSLMode      string `json:"sslMode,omitempty"` // e.g. "require", "verify-full"

	// MaxPoolSize bounds the relational connection pool. Zero selects
	// the default. Pool exhaustion blocks callers rather than growing
	// unbounded.
	MaxPoolSize int32 `json:"maxPoolSize,omitempty"`

	// AuthSource is the document backend's authentication database.
	// Empty selects "admin".
	AuthSource string `json:"authSource,omitempty"`
}
