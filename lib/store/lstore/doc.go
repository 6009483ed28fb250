// Package lstore implements the local, single-node key-value store based on the
// store.IStore interface. It is a thin wrapper around any db.KVDB implementation
// that owns the data directory of the engine.
//
// Key Features:
//   - Direct integration with db.KVDB implementations through a store.DBFactory
//   - Engine record: the name of the engine that created a data directory is stored
//     in "<dir>/engine". Reopening the directory with a different engine fails with
//     a RetCEngineMismatch error (matchable with errors.Is(err, ErrEngineMismatch))
//   - Thread-safe operations, the engines synchronize internally
//
// Usage Example:
//
//	factory := func(dir string) (db.KVDB, error) { return kvs.Open(dir, nil) }
//	s, err := lstore.NewLocalStore("data", db.ImplKvs, factory)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	err = s.Set("session:123", sessionData)
//	value, exists, err := s.Get("session:123")
package lstore
