// Package store provides the high-level interface for key-value storage operations.
// It serves as an abstraction layer over the lower-level db.KVDB engines and the
// remote client, so applications can switch between an embedded and a remote store
// without code changes.
//
// Key Components:
//
//   - IStore Interface: The core abstraction defining Set, Get, Remove, GetDBInfo and
//     Close. All implementations are safe for concurrent use and report failures as
//     *db.Error values carrying a return code (KeyNotFound, IoError, ...).
//
//   - DBFactory: A function type that opens a db.KVDB in a data directory, providing
//     dependency injection and flexible configuration of storage backends.
//
// Implementations:
//
//	- Local Store (lstore): Owns a data directory and a db.KVDB opened in it. It records
//	  which engine created the directory and refuses to open it with another engine.
//	  Available in the "github.com/ValentinKolb/kvs/lib/store/lstore" package.
//
//	- RPC Store: Sends every operation to a server as one request/response exchange.
//	  Available in the "github.com/ValentinKolb/kvs/rpc/client" package.
package store
