// Package leveldb adapts goleveldb (github.com/syndtr/goleveldb) to the db.KVDB interface.
//
// It is the alternative to the native log-structured engine and exists to compare both
// against the same workloads. The goleveldb files live in the "leveldb" sub directory
// of the data directory. Reads go straight to goleveldb, writes are serialized by a mutex
// so Remove can check for the key and delete it in one step.
package leveldb
