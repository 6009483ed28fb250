// Package db defines the contract between the store layer and the storage engines.
//
// Key Components:
//
//   - KVDB Interface: The interface every engine implements (Set, Get, Remove,
//     GetInfo, Close). Engines own their data directory and synchronize internally,
//     so a single instance can be shared by any number of goroutines.
//
//   - Implementation Identifiers: The Implementation type names the available engines
//     ("kvs" and "leveldb"). The name is persisted in the data directory by the
//     lstore package so a directory is never opened by the wrong engine.
//
//   - Errors: Error carries a RetCode next to the message. Errors with the same code
//     match with errors.Is, which is how callers detect ErrKeyNotFound, IO failures,
//     corrupt records or engine mismatches independent of the message text.
//
//   - Database Information: DatabaseInfo reports the on-disk size, the engine type and
//     engine specific metadata.
//
// Related Packages:
//
// The engines/kvs package (github.com/ValentinKolb/kvs/lib/db/engines/kvs) is the native
// log-structured engine: an append-only command log split into generations, an in-memory
// index rebuilt on open, and compaction of stale records.
//
// The engines/leveldb package (github.com/ValentinKolb/kvs/lib/db/engines/leveldb) adapts
// goleveldb to the same interface.
//
// The testing package (github.com/ValentinKolb/kvs/lib/db/testing) provides the conformance
// suite (RunKVDBTests) and benchmarks (RunKVDBBenchmarks) every engine runs.
package db
