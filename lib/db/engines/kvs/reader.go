package kvs

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/ValentinKolb/kvs/lib/db"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Index versions
// --------------------------------------------------------------------------

// version is one generation of the index.
// Readers pin the version they resolve a key through, so the generation files its
// pointers address stay on disk until the last reader is done. Compaction replaces
// the current version and retires the old one; the cleanup of a retired version runs
// exactly once, when its reference count drops to zero.
type version struct {
	index   *xsync.MapOf[string, LogPointer]
	refs    atomic.Int64
	cleanup func()
}

func newVersion(index *xsync.MapOf[string, LogPointer]) *version {
	v := &version{index: index}
	v.refs.Store(1) // held by the engine until the version is retired
	return v
}

// acquire pins the version. It fails if the version was retired and fully released.
func (v *version) acquire() bool {
	for {
		n := v.refs.Load()
		if n <= 0 {
			return false
		}
		if v.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (v *version) release() {
	if v.refs.Add(-1) == 0 && v.cleanup != nil {
		v.cleanup()
	}
}

// retire drops the engine's own reference. cleanup runs once no reader holds the version anymore.
func (v *version) retire(cleanup func()) {
	v.cleanup = cleanup
	v.release()
}

// --------------------------------------------------------------------------
// Reader arenas
// --------------------------------------------------------------------------

// genReader is a set of read-only file handles keyed by generation.
// An arena is only ever used by one goroutine at a time, so its handles are never shared.
type genReader struct {
	dir   string
	files map[uint64]*os.File
}

func newGenReader(dir string) *genReader {
	return &genReader{
		dir:   dir,
		files: make(map[uint64]*os.File),
	}
}

// readAt reads exactly the bytes the pointer addresses
func (r *genReader) readAt(p LogPointer) ([]byte, error) {
	file, ok := r.files[p.Gen]
	if !ok {
		var err error
		file, err = os.Open(genPath(r.dir, p.Gen))
		if err != nil {
			return nil, db.WrapError(db.RetCIoError, err, fmt.Sprintf("failed to open generation %d", p.Gen))
		}
		r.files[p.Gen] = file
	}

	buf := make([]byte, p.Len)
	if _, err := file.ReadAt(buf, p.Offset); err != nil {
		if err == io.EOF {
			return nil, errTornRecord
		}
		return nil, db.WrapError(db.RetCIoError, err, fmt.Sprintf("failed to read generation %d at %d", p.Gen, p.Offset))
	}
	return buf, nil
}

// dropBelow closes the handles of generations that were compacted away
func (r *genReader) dropBelow(gen uint64) {
	for g, file := range r.files {
		if g < gen {
			_ = file.Close()
			delete(r.files, g)
		}
	}
}

func (r *genReader) close() {
	r.dropBelow(^uint64(0))
}

// readerCache hands out reader arenas. Idle arenas are kept in a bounded free list,
// surplus arenas are closed when they are returned.
type readerCache struct {
	dir    string
	free   chan *genReader
	closed atomic.Bool
}

func newReaderCache(dir string, size int) *readerCache {
	return &readerCache{
		dir:  dir,
		free: make(chan *genReader, size),
	}
}

func (c *readerCache) get() *genReader {
	select {
	case r := <-c.free:
		return r
	default:
		return newGenReader(c.dir)
	}
}

func (c *readerCache) put(r *genReader) {
	if c.closed.Load() {
		r.close()
		return
	}
	select {
	case c.free <- r:
	default:
		r.close()
	}
	// close may have drained the list between the check above and the send
	if c.closed.Load() {
		c.drain()
	}
}

func (c *readerCache) drain() {
	for {
		select {
		case r := <-c.free:
			r.close()
		default:
			return
		}
	}
}

func (c *readerCache) close() {
	c.closed.Store(true)
	c.drain()
}
