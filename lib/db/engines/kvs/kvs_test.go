package kvs

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/kvs/lib/db"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func recordLen(key string, value []byte) int64 {
	return int64(headerSize + len(key) + len(value))
}

func openTestDB(t *testing.T, dir string, opts *DBOptions) *DB {
	t.Helper()
	database, err := Open(dir, opts)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return database
}

func mustGet(t *testing.T, database *DB, key string) []byte {
	t.Helper()
	value, ok, err := database.Get(key)
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", key, err)
	}
	if !ok {
		t.Fatalf("Expected key %q to exist", key)
	}
	return value
}

func genSizes(t *testing.T, dir string) map[uint64]int64 {
	t.Helper()
	gens, err := listGenerations(dir)
	if err != nil {
		t.Fatalf("listGenerations failed: %v", err)
	}
	sizes := make(map[uint64]int64, len(gens))
	for _, gen := range gens {
		stat, err := os.Stat(genPath(dir, gen))
		if err != nil {
			t.Fatalf("Stat failed: %v", err)
		}
		sizes[gen] = stat.Size()
	}
	return sizes
}

// --------------------------------------------------------------------------
// Records
// --------------------------------------------------------------------------

func TestCommandCorruption(t *testing.T) {
	record := command{op: opSet, key: "key", value: []byte("value")}.encode()

	cmd, err := decodeCommand(record)
	if err != nil {
		t.Fatalf("decodeCommand failed: %v", err)
	}
	if cmd.op != opSet || cmd.key != "key" || string(cmd.value) != "value" {
		t.Errorf("Unexpected command %+v", cmd)
	}

	damaged := bytes.Clone(record)
	damaged[len(damaged)-1] ^= 0xff
	if _, err := decodeCommand(damaged); !errors.Is(err, errCorruptRecord) {
		t.Errorf("Expected a corrupt record error for a flipped value byte, got %v", err)
	}

	damaged = bytes.Clone(record)
	damaged[4] = 7
	if _, err := decodeCommand(damaged); !errors.Is(err, errCorruptRecord) {
		t.Errorf("Expected a corrupt record error for an unknown op, got %v", err)
	}

	// a stream that ends inside a record
	stream := append(bytes.Clone(record), record[:len(record)-2]...)
	reader := bufio.NewReader(bytes.NewReader(stream))
	if _, n, err := readCommand(reader); err != nil || n != int64(len(record)) {
		t.Fatalf("Expected the first record to be read, got n=%d err=%v", n, err)
	}
	if _, _, err := readCommand(reader); !errors.Is(err, errTornRecord) {
		t.Errorf("Expected a torn record error, got %v", err)
	}

	reader = bufio.NewReader(bytes.NewReader(record))
	_, _, _ = readCommand(reader)
	if _, _, err := readCommand(reader); !errors.Is(err, io.EOF) {
		t.Errorf("Expected io.EOF at the end of the stream, got %v", err)
	}
}

// --------------------------------------------------------------------------
// Index and stale accounting
// --------------------------------------------------------------------------

func TestOverwriteKeepsOneIndexEntry(t *testing.T) {
	database := openTestDB(t, t.TempDir(), &DBOptions{CompactionThreshold: 1 << 30})
	defer database.Close()

	value := []byte("value")
	for i := 0; i < 1000; i++ {
		if err := database.Set("key", value); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	if size := database.current.Load().index.Size(); size != 1 {
		t.Errorf("Expected 1 index entry, got %d", size)
	}
	if expected := 999 * recordLen("key", value); database.stale.Load() != expected {
		t.Errorf("Expected %d stale bytes, got %d", expected, database.stale.Load())
	}
}

func TestStaleAccounting(t *testing.T) {
	dir := t.TempDir()
	database := openTestDB(t, dir, &DBOptions{CompactionThreshold: 1 << 30})

	v1, v2 := []byte("first"), []byte("second-value")
	_ = database.Set("a", v1)
	_ = database.Set("a", v2)
	_ = database.Set("b", v1)
	if err := database.Remove("a"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	expected := recordLen("a", v1) + recordLen("a", v2) + recordLen("a", nil)
	if database.stale.Load() != expected {
		t.Errorf("Expected %d stale bytes, got %d", expected, database.stale.Load())
	}

	// removing a missing key must not write a tombstone
	if err := database.Remove("a"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}
	if database.stale.Load() != expected {
		t.Errorf("Removing a missing key changed the stale bytes to %d", database.stale.Load())
	}

	// recovery computes the same number
	if err := database.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	database = openTestDB(t, dir, &DBOptions{CompactionThreshold: 1 << 30})
	defer database.Close()
	if database.stale.Load() != expected {
		t.Errorf("Expected %d stale bytes after reopen, got %d", expected, database.stale.Load())
	}
}

// --------------------------------------------------------------------------
// Compaction
// --------------------------------------------------------------------------

func TestCompaction(t *testing.T) {
	dir := t.TempDir()
	threshold := int64(4 * 1024)
	database := openTestDB(t, dir, &DBOptions{CompactionThreshold: threshold})

	numKeys := 20
	var written int64
	for i := 0; i < 2000; i++ {
		key := fmt.Sprintf("key-%d", i%numKeys)
		value := []byte(fmt.Sprintf("value-%d", i))
		written += recordLen(key, value)
		if err := database.Set(key, value); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if stale := database.stale.Load(); stale > threshold {
			t.Fatalf("Stale bytes %d exceed the threshold after a write", stale)
		}
	}

	if database.compactions.Load() == 0 {
		t.Fatalf("Expected at least one compaction")
	}

	var onDisk int64
	sizes := genSizes(t, dir)
	for _, size := range sizes {
		onDisk += size
	}
	if onDisk >= written {
		t.Errorf("Expected the log (%d bytes) to be smaller than everything written (%d bytes)", onDisk, written)
	}

	// only the last compaction output and the active generation are left
	safePoint := database.safePoint.Load()
	for gen := range sizes {
		if gen < safePoint {
			t.Errorf("Generation %d below the safe point %d was not deleted", gen, safePoint)
		}
	}
	if len(sizes) > 2 {
		t.Errorf("Expected at most 2 generations, got %d", len(sizes))
	}

	for i := 2000 - numKeys; i < 2000; i++ {
		key := fmt.Sprintf("key-%d", i%numKeys)
		if value := mustGet(t, database, key); string(value) != fmt.Sprintf("value-%d", i) {
			t.Errorf("Expected value-%d for %s, got %s", i, key, value)
		}
	}

	if err := database.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	database = openTestDB(t, dir, &DBOptions{CompactionThreshold: threshold})
	defer database.Close()
	for i := 2000 - numKeys; i < 2000; i++ {
		key := fmt.Sprintf("key-%d", i%numKeys)
		if value := mustGet(t, database, key); string(value) != fmt.Sprintf("value-%d", i) {
			t.Errorf("Expected value-%d for %s after reopen, got %s", i, key, value)
		}
	}
}

func TestCompactionDropsRemovedKeys(t *testing.T) {
	database := openTestDB(t, t.TempDir(), &DBOptions{CompactionThreshold: 1 << 30})
	defer database.Close()

	for i := 0; i < 100; i++ {
		_ = database.Set(fmt.Sprintf("key-%d", i), []byte("value"))
	}
	for i := 0; i < 50; i++ {
		_ = database.Remove(fmt.Sprintf("key-%d", i))
	}

	database.mu.Lock()
	err := database.compact()
	database.mu.Unlock()
	if err != nil {
		t.Fatalf("compact failed: %v", err)
	}

	if database.stale.Load() != 0 {
		t.Errorf("Expected no stale bytes after compaction, got %d", database.stale.Load())
	}
	if size := database.current.Load().index.Size(); size != 50 {
		t.Errorf("Expected 50 keys after compaction, got %d", size)
	}

	expected := 50 * recordLen("key-50", []byte("value"))
	if size := genSizes(t, database.dir)[database.safePoint.Load()]; size != expected {
		t.Errorf("Expected compaction generation of %d bytes, got %d", expected, size)
	}
}

func TestPinnedVersionKeepsGenerations(t *testing.T) {
	dir := t.TempDir()
	database := openTestDB(t, dir, &DBOptions{CompactionThreshold: 1 << 30})
	defer database.Close()

	_ = database.Set("key", []byte("old"))
	_ = database.Set("key", []byte("new"))
	oldGen := database.writer.gen

	// a reader that resolved the key before the compaction
	pinned := database.pin()
	pointer, _ := pinned.index.Load("key")

	database.mu.Lock()
	err := database.compact()
	database.mu.Unlock()
	if err != nil {
		t.Fatalf("compact failed: %v", err)
	}

	if _, err := os.Stat(genPath(dir, oldGen)); err != nil {
		t.Fatalf("Generation %d was deleted while a reader still holds it: %v", oldGen, err)
	}

	reader := newGenReader(dir)
	defer reader.close()
	buf, err := reader.readAt(pointer)
	if err != nil {
		t.Fatalf("Read through the pinned version failed: %v", err)
	}
	if cmd, err := decodeCommand(buf); err != nil || string(cmd.value) != "new" {
		t.Errorf("Expected the pinned version to read %q, got %q (%v)", "new", cmd.value, err)
	}

	pinned.release()
	if _, err := os.Stat(genPath(dir, oldGen)); !os.IsNotExist(err) {
		t.Errorf("Expected generation %d to be deleted after the last release, got %v", oldGen, err)
	}

	if pinned.acquire() {
		t.Errorf("A fully released version must not be acquirable")
	}
	if value := mustGet(t, database, "key"); string(value) != "new" {
		t.Errorf("Expected %q, got %q", "new", value)
	}
}

func TestPinnedVersionSurvivesRepeatedCompactions(t *testing.T) {
	dir := t.TempDir()
	database := openTestDB(t, dir, &DBOptions{CompactionThreshold: 1 << 30})
	defer database.Close()

	_ = database.Set("key", []byte("old"))
	_ = database.Set("key", []byte("new"))

	pinned := database.pin()
	pointer, _ := pinned.index.Load("key")

	compact := func() {
		t.Helper()
		database.mu.Lock()
		err := database.compact()
		database.mu.Unlock()
		if err != nil {
			t.Fatalf("compact failed: %v", err)
		}
	}

	compact()
	firstOutput := database.safePoint.Load()
	_ = database.Set("key", []byte("newer"))

	// the version between both compactions has no reader, its generations still wait for the pinned one
	compact()

	for _, gen := range []uint64{pointer.Gen, firstOutput} {
		if _, err := os.Stat(genPath(dir, gen)); err != nil {
			t.Fatalf("Generation %d was deleted while an older version is still pinned: %v", gen, err)
		}
	}

	reader := newGenReader(dir)
	defer reader.close()
	buf, err := reader.readAt(pointer)
	if err != nil {
		t.Fatalf("Read through the pinned version failed: %v", err)
	}
	if cmd, err := decodeCommand(buf); err != nil || string(cmd.value) != "new" {
		t.Errorf("Expected the pinned version to read %q, got %q (%v)", "new", cmd.value, err)
	}

	pinned.release()
	safePoint := database.safePoint.Load()
	for gen := range genSizes(t, dir) {
		if gen < safePoint {
			t.Errorf("Generation %d below the safe point %d was not deleted after the last release", gen, safePoint)
		}
	}
	if value := mustGet(t, database, "key"); string(value) != "newer" {
		t.Errorf("Expected %q, got %q", "newer", value)
	}
}

func TestReclaimStopsAtFailedRemove(t *testing.T) {
	dir := t.TempDir()
	for gen := uint64(1); gen <= 4; gen++ {
		if err := os.WriteFile(genPath(dir, gen), nil, 0o644); err != nil {
			t.Fatalf("Failed to create generation %d: %v", gen, err)
		}
	}

	failing := genPath(dir, 2)
	removeFile = func(path string) error {
		if path == failing {
			return errors.New("device busy")
		}
		return os.Remove(path)
	}
	t.Cleanup(func() { removeFile = os.Remove })

	r := newReclaimer(dir)
	r.retire(newVersion(xsync.NewMapOf[string, LogPointer]()), 4)

	exists := func(gen uint64) bool {
		_, err := os.Stat(genPath(dir, gen))
		return err == nil
	}

	// generation 3 may hold the remove records for set records in generation 2
	if exists(1) {
		t.Errorf("Expected generation 1 to be deleted")
	}
	if !exists(2) || !exists(3) {
		t.Errorf("Expected the generations from the failed one on to be kept")
	}

	// the next retired version retries the failed one first
	removeFile = os.Remove
	r.retire(newVersion(xsync.NewMapOf[string, LogPointer]()), 5)
	for gen := uint64(1); gen <= 4; gen++ {
		if exists(gen) {
			t.Errorf("Expected generation %d to be deleted after the retry", gen)
		}
	}
	if len(r.pending) != 0 {
		t.Errorf("Expected no pending versions, got %d", len(r.pending))
	}
}

func TestReadsDuringCompaction(t *testing.T) {
	database := openTestDB(t, t.TempDir(), &DBOptions{CompactionThreshold: 2 * 1024})
	defer database.Close()

	numKeys := 32
	for i := 0; i < numKeys; i++ {
		_ = database.Set(fmt.Sprintf("key-%d", i), []byte(fmt.Sprintf("key-%d:0", i)))
	}

	var (
		wg       sync.WaitGroup
		done     atomic.Bool
		failures atomic.Int64
	)
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			for i := r; !done.Load(); i++ {
				key := fmt.Sprintf("key-%d", i%numKeys)
				value, ok, err := database.Get(key)
				if err != nil || !ok || !bytes.HasPrefix(value, []byte(key+":")) {
					failures.Add(1)
				}
			}
		}(r)
	}

	for i := 0; i < 5000; i++ {
		key := fmt.Sprintf("key-%d", i%numKeys)
		if err := database.Set(key, []byte(fmt.Sprintf("%s:%d", key, i))); err != nil {
			t.Errorf("Set failed: %v", err)
		}
	}
	done.Store(true)
	wg.Wait()

	if database.compactions.Load() == 0 {
		t.Errorf("Expected compactions while reading")
	}
	if failures.Load() > 0 {
		t.Errorf("%d reads failed during compaction", failures.Load())
	}
}

// --------------------------------------------------------------------------
// Recovery
// --------------------------------------------------------------------------

func TestRecoverTornTail(t *testing.T) {
	dir := t.TempDir()
	database := openTestDB(t, dir, nil)
	_ = database.Set("a", []byte("1"))
	_ = database.Set("b", []byte("2"))
	gen := database.writer.gen
	_ = database.Close()

	path := genPath(dir, gen)
	stat, _ := os.Stat(path)
	goodSize := stat.Size()

	// a crash in the middle of the next record
	record := command{op: opSet, key: "c", value: []byte("3")}.encode()
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	_, _ = file.Write(record[:len(record)-1])
	_ = file.Close()

	database = openTestDB(t, dir, nil)
	defer database.Close()

	if value := mustGet(t, database, "a"); string(value) != "1" {
		t.Errorf("Expected 1, got %s", value)
	}
	if value := mustGet(t, database, "b"); string(value) != "2" {
		t.Errorf("Expected 2, got %s", value)
	}
	if _, ok, _ := database.Get("c"); ok {
		t.Errorf("The torn record must not be recovered")
	}

	stat, _ = os.Stat(path)
	if stat.Size() != goodSize {
		t.Errorf("Expected the generation to be truncated to %d bytes, got %d", goodSize, stat.Size())
	}

	if err := database.Set("c", []byte("3")); err != nil {
		t.Fatalf("Set after recovery failed: %v", err)
	}
	if value := mustGet(t, database, "c"); string(value) != "3" {
		t.Errorf("Expected 3, got %s", value)
	}
}

func TestRecoverCorruptRecord(t *testing.T) {
	dir := t.TempDir()
	database := openTestDB(t, dir, nil)
	_ = database.Set("a", []byte("1"))
	_ = database.Set("b", []byte("2"))
	gen := database.writer.gen
	_ = database.Close()

	// flip the value byte of the second record
	path := genPath(dir, gen)
	data, _ := os.ReadFile(path)
	data[len(data)-1] ^= 0xff
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := Open(dir, &DBOptions{StrictRecovery: true})
	if err == nil {
		t.Fatalf("Expected strict recovery to fail on a corrupt record")
	}
	if db.CodeOf(err) != db.RetCSerializationError {
		t.Errorf("Expected a SerializationError, got %v", err)
	}

	database = openTestDB(t, dir, nil)
	defer database.Close()
	if value := mustGet(t, database, "a"); string(value) != "1" {
		t.Errorf("Expected 1, got %s", value)
	}
	if _, ok, _ := database.Get("b"); ok {
		t.Errorf("The corrupt record must not be recovered")
	}
}

// TestRecoverInterruptedCompaction simulates a crash after the compaction output was partially
// written: the old generations, a partial copy and the empty new active generation are on disk.
func TestRecoverInterruptedCompaction(t *testing.T) {
	dir := t.TempDir()
	database := openTestDB(t, dir, &DBOptions{CompactionThreshold: 1 << 30})
	for i := 0; i < 10; i++ {
		_ = database.Set(fmt.Sprintf("key-%d", i), []byte(fmt.Sprintf("old-%d", i)))
		_ = database.Set(fmt.Sprintf("key-%d", i), []byte(fmt.Sprintf("value-%d", i)))
	}
	_ = database.Remove("key-0")
	gen := database.writer.gen
	_ = database.Close()

	out, err := newGenWriter(dir, gen+1)
	if err != nil {
		t.Fatalf("newGenWriter failed: %v", err)
	}
	for i := 1; i < 5; i++ {
		_, _ = out.append(command{op: opSet, key: fmt.Sprintf("key-%d", i), value: []byte(fmt.Sprintf("value-%d", i))}.encode())
	}
	torn := command{op: opSet, key: "key-5", value: []byte("value-5")}.encode()
	_, _ = out.append(torn[:len(torn)/2])
	_ = out.close()

	active, _ := newGenWriter(dir, gen+2)
	_ = active.close()

	database = openTestDB(t, dir, nil)
	defer database.Close()

	if _, ok, _ := database.Get("key-0"); ok {
		t.Errorf("Removed key reappeared after recovery")
	}
	for i := 1; i < 10; i++ {
		key := fmt.Sprintf("key-%d", i)
		if value := mustGet(t, database, key); string(value) != fmt.Sprintf("value-%d", i) {
			t.Errorf("Expected value-%d for %s, got %s", i, key, value)
		}
	}
	if database.writer.gen != gen+3 {
		t.Errorf("Expected active generation %d, got %d", gen+3, database.writer.gen)
	}
}

// --------------------------------------------------------------------------
// Info
// --------------------------------------------------------------------------

func TestGetInfo(t *testing.T) {
	database := openTestDB(t, t.TempDir(), nil)
	defer database.Close()

	for i := 0; i < 10; i++ {
		_ = database.Set(fmt.Sprintf("key-%d", i), []byte("value"))
	}

	info := database.GetInfo()
	if info.DbType != db.ImplKvs {
		t.Errorf("Expected type %s, got %s", db.ImplKvs, info.DbType)
	}
	if expected := 10 * recordLen("key-0", []byte("value")); info.SizeBytes != expected {
		t.Errorf("Expected %d bytes, got %d", expected, info.SizeBytes)
	}
}
