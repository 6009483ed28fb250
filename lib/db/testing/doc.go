// Package testing provides standardised tests and benchmarks for
// database implementations that satisfy the db.KVDB interface.
//
// The package contains:
//   - testing: A conformance suite for the KVDB contract (set/get, overwrite, remove,
//     edge cases, recovery after reopening, concurrent readers against a writer)
//   - benchmark: Performance tests for measuring throughput of common database operations
//
// Every test gets its own temporary data directory, so factories only have to open
// an engine in the directory they are given.
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func(dir string) (db.KVDB, error) {
//		return mydb.Open(dir)
//	}
//
//	// Running the standard test suite
//	dbtesting.RunKVDBTests(t, "MyDatabase", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunKVDBBenchmarks(b, "MyDatabase", factory)
package testing
