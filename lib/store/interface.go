package store

import (
	"github.com/ValentinKolb/kvs/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that opens the db used by the store in the given data directory.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func(dataDir string) (db.KVDB, error)

// IStore is the generic interface for interacting with a key–value store.
// It is implemented by the local store (backed by a db.KVDB) and by the RPC client
// (backed by a remote server), so callers do not need to know where the data lives.
// Errors are *db.Error values that can be matched with errors.Is.
type IStore interface {
	// Set inserts or updates a key–value pair.
	Set(key string, value []byte) (err error)
	// Get return the value for a key. The boolean return value indicates whether a value for the key was found.
	Get(key string) (value []byte, loaded bool, err error)
	// Remove deletes a key–value pair. Returns db.ErrKeyNotFound if the key does not exist.
	Remove(key string) (err error)
	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
	// Close releases the resources of the store. The store must not be used afterwards.
	Close() (err error)
}
