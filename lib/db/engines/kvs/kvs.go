package kvs

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/kvs/lib/db"
	"github.com/ValentinKolb/kvs/lib/util"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("kvs")

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// defaultCompactionThreshold is the number of stale bytes that triggers a compaction
const defaultCompactionThreshold = 1024 * 1024

// DBOptions configures the engine during Open
type DBOptions struct {
	CompactionThreshold int64 // Stale bytes after which a write triggers a compaction (0 = use default: 1 MiB)
	SyncWrites          bool  // Fsync the active generation after every write
	StrictRecovery      bool  // Fail Open on a torn or corrupt record instead of truncating the generation
}

// DefaultOptions returns the default engine options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		CompactionThreshold: defaultCompactionThreshold,
	}
}

// --------------------------------------------------------------------------
// Core database structure
// --------------------------------------------------------------------------

// DB is the log-structured engine.
//
// All writes (Set, Remove and compaction) are serialized by one mutex. Reads never take it:
// they pin the current index version and read through a pooled set of file handles.
type DB struct {
	dir  string
	opts DBOptions
	lock *dirLock

	// writer side, guarded by mu
	mu            sync.Mutex
	writer        *genWriter
	compactReader *genReader
	compactions   atomic.Uint64

	// shared state
	stale     atomic.Int64
	current   atomic.Pointer[version]
	safePoint atomic.Uint64 // generations below this number were compacted away
	readers   *readerCache
	reclaimer *reclaimer
	closed    atomic.Bool
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// Open opens the engine in dir, creating the directory if necessary.
// The existing generations are replayed to rebuild the index before a new active generation is started.
// Only one instance may have a directory open at a time: a second Open fails with an IoError.
func Open(dir string, opts *DBOptions) (*DB, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.CompactionThreshold <= 0 {
		opts.CompactionThreshold = defaultCompactionThreshold
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, db.WrapError(db.RetCIoError, err, "failed to create data directory")
	}

	lock, err := acquireDirLock(dir)
	if err != nil {
		return nil, err
	}

	kvs := &DB{
		dir:           dir,
		opts:          *opts,
		lock:          lock,
		compactReader: newGenReader(dir),
		readers:       newReaderCache(dir, 4*runtime.GOMAXPROCS(0)),
		reclaimer:     newReclaimer(dir),
	}

	state, err := recoverGenerations(dir, opts.StrictRecovery)
	if err != nil {
		_ = lock.release()
		return nil, err
	}

	writer, err := newGenWriter(dir, state.maxGen+1)
	if err != nil {
		_ = lock.release()
		return nil, err
	}

	kvs.writer = writer
	kvs.stale.Store(state.stale)
	kvs.current.Store(newVersion(state.index))
	kvs.safePoint.Store(state.minGen)

	Logger.Infof("opened %s: %d keys, %d stale bytes, %d generations, active generation %d",
		dir, state.index.Size(), state.stale, len(state.gens), writer.gen)

	return kvs, nil
}

// --------------------------------------------------------------------------
// KVDB Interface Methods (docu see db.KVDB)
// --------------------------------------------------------------------------

func (kvs *DB) Set(key string, value []byte) error {
	kvs.mu.Lock()
	defer kvs.mu.Unlock()

	if kvs.closed.Load() {
		return db.ErrClosed
	}

	pointer, err := kvs.appendCommand(command{op: opSet, key: key, value: value})
	if err != nil {
		return err
	}

	if old, loaded := kvs.current.Load().index.LoadAndStore(key, pointer); loaded {
		kvs.stale.Add(old.Len)
	}

	kvs.maybeCompact()
	return nil
}

func (kvs *DB) Get(key string) ([]byte, bool, error) {
	if kvs.closed.Load() {
		return nil, false, db.ErrClosed
	}

	v := kvs.pin()
	defer v.release()

	pointer, ok := v.index.Load(key)
	if !ok {
		return nil, false, nil
	}

	reader := kvs.readers.get()
	reader.dropBelow(kvs.safePoint.Load())
	buf, err := reader.readAt(pointer)
	kvs.readers.put(reader)
	if err != nil {
		return nil, false, err
	}

	cmd, err := decodeCommand(buf)
	if err != nil {
		return nil, false, err
	}
	if cmd.op != opSet || cmd.key != key {
		return nil, false, db.NewError(db.RetCSerializationError,
			fmt.Sprintf("index entry of %q points to a %s record of another key", key, cmd.op))
	}
	return cmd.value, true, nil
}

func (kvs *DB) Remove(key string) error {
	kvs.mu.Lock()
	defer kvs.mu.Unlock()

	if kvs.closed.Load() {
		return db.ErrClosed
	}

	index := kvs.current.Load().index
	old, ok := index.Load(key)
	if !ok {
		return db.ErrKeyNotFound
	}

	tombstone, err := kvs.appendCommand(command{op: opRemove, key: key})
	if err != nil {
		return err
	}

	index.Delete(key)
	kvs.stale.Add(old.Len + tombstone.Len)

	kvs.maybeCompact()
	return nil
}

// GetInfo returns statistics about the database
func (kvs *DB) GetInfo() db.DatabaseInfo {
	gens, _ := listGenerations(kvs.dir)
	var size int64
	for _, gen := range gens {
		if stat, err := os.Stat(genPath(kvs.dir, gen)); err == nil {
			size += stat.Size()
		}
	}

	v := kvs.pin()
	defer v.release()

	histogram := util.NewSizeHistogram()
	v.index.Range(func(_ string, p LogPointer) bool {
		histogram.AddSample(int(p.Len))
		return true
	})

	kvs.mu.Lock()
	active := kvs.writer.gen
	kvs.mu.Unlock()

	meta := &struct {
		Keys             int    `json:"keys"`
		StaleBytes       int64  `json:"stale_bytes"`
		Threshold        int64  `json:"compaction_threshold"`
		Generations      int    `json:"generations"`
		ActiveGeneration uint64 `json:"active_generation"`
		Compactions      uint64 `json:"compactions"`
		AvgRecordSize    int    `json:"avg_record_size"`
		MedianRecordSize int    `json:"median_record_size"`
		P99RecordSize    int    `json:"p99_record_size"`
	}{
		Keys:             v.index.Size(),
		StaleBytes:       kvs.stale.Load(),
		Threshold:        kvs.opts.CompactionThreshold,
		Generations:      len(gens),
		ActiveGeneration: active,
		Compactions:      kvs.compactions.Load(),
		AvgRecordSize:    histogram.AverageSize(),
		MedianRecordSize: histogram.MedianEstimate(),
		P99RecordSize:    histogram.GetPercentileEstimate(99),
	}

	return db.DatabaseInfo{
		SizeBytes: size,
		DbType:    db.ImplKvs,
		Metadata:  meta,
	}
}

// Close flushes and fsyncs the active generation, closes all file handles and releases the directory lock.
// Every call after the first returns db.ErrClosed.
func (kvs *DB) Close() error {
	kvs.mu.Lock()
	defer kvs.mu.Unlock()

	if !kvs.closed.CompareAndSwap(false, true) {
		return db.ErrClosed
	}

	var firstErr error
	if err := kvs.writer.sync(); err != nil {
		firstErr = err
	}
	if err := kvs.writer.close(); err != nil && firstErr == nil {
		firstErr = err
	}
	kvs.compactReader.close()
	kvs.readers.close()
	if err := kvs.lock.release(); err != nil && firstErr == nil {
		firstErr = err
	}

	Logger.Infof("closed %s", kvs.dir)
	return firstErr
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// pin acquires the current index version.
// A version retired between loading and acquiring it is skipped, the next load returns its successor.
func (kvs *DB) pin() *version {
	for {
		v := kvs.current.Load()
		if v.acquire() {
			return v
		}
	}
}

// appendCommand writes one command to the active generation and makes it readable.
// Must be called with mu held.
func (kvs *DB) appendCommand(cmd command) (LogPointer, error) {
	record := cmd.encode()
	offset, err := kvs.writer.append(record)
	if err != nil {
		return LogPointer{}, err
	}

	if kvs.opts.SyncWrites {
		err = kvs.writer.sync()
	} else {
		err = kvs.writer.flush()
	}
	if err != nil {
		return LogPointer{}, err
	}

	return LogPointer{Gen: kvs.writer.gen, Offset: offset, Len: int64(len(record))}, nil
}
