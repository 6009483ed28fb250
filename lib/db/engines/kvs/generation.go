package kvs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ValentinKolb/kvs/lib/db"
)

const genSuffix = ".log"

// genPath returns the path of the generation file with the given number
func genPath(dir string, gen uint64) string {
	return filepath.Join(dir, strconv.FormatUint(gen, 10)+genSuffix)
}

// listGenerations returns the numbers of all generation files in dir, sorted ascending.
// Files that do not match "<number>.log" are ignored.
func listGenerations(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, db.WrapError(db.RetCIoError, err, "failed to list data directory")
	}

	gens := make([]uint64, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, genSuffix) {
			continue
		}
		gen, err := strconv.ParseUint(strings.TrimSuffix(name, genSuffix), 10, 64)
		if err != nil {
			continue
		}
		gens = append(gens, gen)
	}

	sort.Slice(gens, func(i, j int) bool { return gens[i] < gens[j] })
	return gens, nil
}

// removeFile deletes one generation file, tests replace it to simulate failing deletes
var removeFile = os.Remove

// removeGenerationsBelow deletes every generation file numbered below gen in ascending order.
// It stops at the first file that can not be deleted: a remove record must never disappear
// while an older generation still holds the set record it cancels, or recovery would bring the key back.
func removeGenerationsBelow(dir string, gen uint64) error {
	gens, err := listGenerations(dir)
	if err != nil {
		return err
	}
	for _, g := range gens {
		if g >= gen {
			break
		}
		if err := removeFile(genPath(dir, g)); err != nil && !os.IsNotExist(err) {
			return db.WrapError(db.RetCIoError, err, fmt.Sprintf("failed to remove generation %d", g))
		}
		Logger.Debugf("removed generation %d", g)
	}
	return nil
}

// syncDir fsyncs the directory so created and renamed files survive a crash
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return db.WrapError(db.RetCIoError, err, "failed to open data directory")
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return db.WrapError(db.RetCIoError, err, "failed to sync data directory")
	}
	return nil
}

// --------------------------------------------------------------------------
// Generation reclaimer
// --------------------------------------------------------------------------

// reclaimer deletes the generations of retired index versions.
// Versions can be released in any order, but their generations are deleted strictly in
// the order the versions were retired: the generations of a version are only deleted after
// every older version was released and its generations are gone.
type reclaimer struct {
	dir     string
	mu      sync.Mutex
	pending []*retiredVersion
}

// retiredVersion covers the generations below the compaction output that replaced it
type retiredVersion struct {
	below    uint64
	released bool
}

func newReclaimer(dir string) *reclaimer {
	return &reclaimer{dir: dir}
}

// retire retires v. Generations below the given number are deleted once v and every
// version retired before it are released.
func (r *reclaimer) retire(v *version, below uint64) {
	entry := &retiredVersion{below: below}
	r.mu.Lock()
	r.pending = append(r.pending, entry)
	r.mu.Unlock()

	// may run the cleanup right away, so mu must not be held
	v.retire(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		entry.released = true
		r.sweep()
	})
}

// sweep deletes generations for the released versions at the head of the queue.
// A failed delete keeps the version queued, the next release retries it.
// Must be called with mu held.
func (r *reclaimer) sweep() {
	for len(r.pending) > 0 && r.pending[0].released {
		if err := removeGenerationsBelow(r.dir, r.pending[0].below); err != nil {
			Logger.Errorf("failed to reclaim generations below %d: %v", r.pending[0].below, err)
			return
		}
		r.pending = r.pending[1:]
	}
}

// genWriter appends records to one generation file and tracks the write position
type genWriter struct {
	gen  uint64
	path string
	file *os.File
	w    *bufio.Writer
	pos  int64
}

// newGenWriter creates (or opens for appending) the file of the given generation
func newGenWriter(dir string, gen uint64) (*genWriter, error) {
	path := genPath(dir, gen)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, db.WrapError(db.RetCIoError, err, fmt.Sprintf("failed to open generation %d", gen))
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, db.WrapError(db.RetCIoError, err, fmt.Sprintf("failed to stat generation %d", gen))
	}

	return &genWriter{
		gen:  gen,
		path: path,
		file: file,
		w:    bufio.NewWriterSize(file, 64*1024),
		pos:  stat.Size(),
	}, nil
}

// append buffers one encoded record and returns the offset it was written at
func (w *genWriter) append(record []byte) (int64, error) {
	offset := w.pos
	n, err := w.w.Write(record)
	w.pos += int64(n)
	if err != nil {
		return 0, db.WrapError(db.RetCIoError, err, fmt.Sprintf("failed to append to generation %d", w.gen))
	}
	return offset, nil
}

// flush hands all buffered records to the OS so other file handles can read them
func (w *genWriter) flush() error {
	if err := w.w.Flush(); err != nil {
		return db.WrapError(db.RetCIoError, err, fmt.Sprintf("failed to flush generation %d", w.gen))
	}
	return nil
}

// sync flushes and fsyncs the generation file
func (w *genWriter) sync() error {
	if err := w.flush(); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return db.WrapError(db.RetCIoError, err, fmt.Sprintf("failed to sync generation %d", w.gen))
	}
	return nil
}

// close flushes and closes the file
func (w *genWriter) close() error {
	flushErr := w.flush()
	if err := w.file.Close(); err != nil {
		return db.WrapError(db.RetCIoError, err, fmt.Sprintf("failed to close generation %d", w.gen))
	}
	return flushErr
}

// discard closes the file without flushing and deletes it
func (w *genWriter) discard() {
	_ = w.file.Close()
	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		Logger.Errorf("failed to remove unfinished generation %d: %v", w.gen, err)
	}
}
