package db

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

// Implementation identifies a storage engine.
// The value is what gets written to the engine record of a data directory.
type Implementation string

const (
	ImplKvs     Implementation = "kvs"
	ImplLevelDB Implementation = "leveldb"
)

// ParseImplementation converts an engine name (e.g. from the command line) to an Implementation
func ParseImplementation(name string) (Implementation, error) {
	switch Implementation(name) {
	case ImplKvs, ImplLevelDB:
		return Implementation(name), nil
	default:
		return "", NewError(RetCInvalidOperation, "unknown engine "+name+" (expected kvs or leveldb)")
	}
}

type DatabaseInfo struct {
	SizeBytes int64          `json:"size_bytes"`
	DbType    Implementation `json:"db_type"`
	Metadata  interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines the interface every storage engine implements.
// Implementations own their data directory and must be safe for concurrent use:
// any number of goroutines may call the methods at the same time, the required
// synchronization is the engine's responsibility.
type KVDB interface {

	// Set inserts or updates the value for a key.
	// When Set returns without error the write is visible to every following Get.
	Set(key string, value []byte) (err error)

	// Get retrieves the value for an exact key.
	// A missing key is not an error: loaded is false and err is nil.
	Get(key string) (value []byte, loaded bool, err error)

	// Remove deletes a key.
	// Returns ErrKeyNotFound if the key does not exist.
	Remove(key string) (err error)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close flushes all pending writes and releases the data directory.
	Close() (err error)
}
