package leveldb

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/kvs/lib/db"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

var Logger = logger.GetLogger("leveldb")

// subDir keeps the goleveldb files apart from the other files of the data directory
const subDir = "leveldb"

// DBOptions configures the engine during Open
type DBOptions struct {
	SyncWrites bool // Fsync the goleveldb journal after every write
}

// DefaultOptions returns the default engine options
func DefaultOptions() *DBOptions {
	return &DBOptions{}
}

// DB adapts a goleveldb database to the db.KVDB interface
type DB struct {
	dir    string
	ldb    *leveldb.DB
	wo     *opt.WriteOptions
	mu     sync.Mutex // makes the check and delete of Remove atomic
	closed atomic.Bool
}

// Open opens (or creates) the goleveldb database in <dir>/leveldb.
// goleveldb locks its directory itself, a second Open fails with an IoError.
func Open(dir string, opts *DBOptions) (*DB, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	path := filepath.Join(dir, subDir)
	ldb, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, db.WrapError(db.RetCIoError, err, "failed to open leveldb in "+path)
	}

	Logger.Infof("opened %s", path)
	return &DB{
		dir: dir,
		ldb: ldb,
		wo:  &opt.WriteOptions{Sync: opts.SyncWrites},
	}, nil
}

// --------------------------------------------------------------------------
// KVDB Interface Methods (docu see db.KVDB)
// --------------------------------------------------------------------------

func (l *DB) Set(key string, value []byte) error {
	if l.closed.Load() {
		return db.ErrClosed
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ldb.Put([]byte(key), value, l.wo); err != nil {
		return wrap(err, "failed to write key")
	}
	return nil
}

func (l *DB) Get(key string) ([]byte, bool, error) {
	if l.closed.Load() {
		return nil, false, db.ErrClosed
	}

	value, err := l.ldb.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrap(err, "failed to read key")
	}
	return value, true, nil
}

func (l *DB) Remove(key string) error {
	if l.closed.Load() {
		return db.ErrClosed
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ok, err := l.ldb.Has([]byte(key), nil)
	if err != nil {
		return wrap(err, "failed to look up key")
	}
	if !ok {
		return db.ErrKeyNotFound
	}
	if err := l.ldb.Delete([]byte(key), l.wo); err != nil {
		return wrap(err, "failed to delete key")
	}
	return nil
}

// GetInfo returns the size of the goleveldb directory and the goleveldb statistics
func (l *DB) GetInfo() db.DatabaseInfo {
	var size int64
	_ = filepath.WalkDir(filepath.Join(l.dir, subDir), func(_ string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return nil
		}
		if info, err := entry.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})

	stats, _ := l.ldb.GetProperty("leveldb.stats")
	return db.DatabaseInfo{
		SizeBytes: size,
		DbType:    db.ImplLevelDB,
		Metadata: &struct {
			Stats string `json:"stats"`
		}{
			Stats: stats,
		},
	}
}

func (l *DB) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.closed.CompareAndSwap(false, true) {
		return db.ErrClosed
	}
	if err := l.ldb.Close(); err != nil {
		return wrap(err, "failed to close leveldb")
	}
	Logger.Infof("closed %s", filepath.Join(l.dir, subDir))
	return nil
}

// wrap converts a goleveldb error, corruption is reported as a serialization error
func wrap(err error, msg string) error {
	if errors.Is(err, leveldb.ErrClosed) {
		return db.ErrClosed
	}
	if lerrors.IsCorrupted(err) {
		return db.WrapError(db.RetCSerializationError, err, msg)
	}
	return db.WrapError(db.RetCIoError, err, msg)
}
