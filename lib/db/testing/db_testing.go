package testing

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/kvs/lib/db"
)

// DBFactory opens a KVDB implementation in the given data directory.
// Opening the same directory again (after Close) must recover the stored data.
type DBFactory func(dir string) (db.KVDB, error)

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, open(t, factory, t.TempDir()))
		})

		t.Run("Overwrite", func(t *testing.T) {
			testOverwrite(t, open(t, factory, t.TempDir()))
		})

		t.Run("Remove", func(t *testing.T) {
			testRemove(t, open(t, factory, t.TempDir()))
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, open(t, factory, t.TempDir()))
		})

		t.Run("Reopen", func(t *testing.T) {
			testReopen(t, factory)
		})

		t.Run("ManyKeys", func(t *testing.T) {
			testManyKeys(t, factory)
		})

		t.Run("ConcurrentAccess", func(t *testing.T) {
			testConcurrentAccess(t, open(t, factory, t.TempDir()))
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, open(t, factory, t.TempDir()))
		})

		t.Run("Closed", func(t *testing.T) {
			testClosed(t, open(t, factory, t.TempDir()))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// open creates a database and fails the test if that is not possible
func open(t testing.TB, factory DBFactory, dir string) db.KVDB {
	t.Helper()
	database, err := factory(dir)
	if err != nil {
		t.Fatalf("Failed to open database in %s: %v", dir, err)
	}
	return database
}

func mustSet(t testing.TB, database db.KVDB, key string, value []byte) {
	t.Helper()
	if err := database.Set(key, value); err != nil {
		t.Fatalf("Set(%q) failed: %v", key, err)
	}
}

func expectValue(t testing.TB, database db.KVDB, key string, expected []byte) {
	t.Helper()
	value, ok, err := database.Get(key)
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", key, err)
	}
	if !ok {
		t.Fatalf("Expected key %q to exist", key)
	}
	if !bytes.Equal(value, expected) {
		t.Errorf("Expected value %q for key %q, got %q", expected, key, value)
	}
}

func expectMissing(t testing.TB, database db.KVDB, key string) {
	t.Helper()
	value, ok, err := database.Get(key)
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", key, err)
	}
	if ok {
		t.Errorf("Expected key %q to be missing, got %q", key, value)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	testKey := "test-key"
	testValue := []byte("test-value")

	mustSet(t, database, testKey, testValue)
	expectValue(t, database, testKey, testValue)

	expectMissing(t, database, "nonexistent-key")

	retrievedValue, _, _ := database.Get(testKey)
	retrievedValue[0] = 'X'

	originalValue, _, _ := database.Get(testKey)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	// the caller may reuse its buffer after Set returns
	buf := []byte("buffer-value")
	mustSet(t, database, "buffer-key", buf)
	buf[0] = 'X'
	expectValue(t, database, "buffer-key", []byte("buffer-value"))
}

func testOverwrite(t *testing.T, database db.KVDB) {
	defer database.Close()

	for i := 0; i < 10; i++ {
		mustSet(t, database, "key", []byte(fmt.Sprintf("value-%d", i)))
	}
	expectValue(t, database, "key", []byte("value-9"))

	mustSet(t, database, "key", []byte("short"))
	expectValue(t, database, "key", []byte("short"))
}

func testRemove(t *testing.T, database db.KVDB) {
	defer database.Close()

	mustSet(t, database, "key", []byte("value"))
	mustSet(t, database, "other", []byte("other-value"))

	if err := database.Remove("key"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	expectMissing(t, database, "key")
	expectValue(t, database, "other", []byte("other-value"))

	err := database.Remove("key")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound when removing a removed key, got %v", err)
	}

	err = database.Remove("never-set")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound when removing a missing key, got %v", err)
	}
	if err != nil && err.Error() != "Key not found" {
		t.Errorf("Expected error text %q, got %q", "Key not found", err.Error())
	}

	// a removed key can be set again
	mustSet(t, database, "key", []byte("new-value"))
	expectValue(t, database, "key", []byte("new-value"))
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	t.Run("EmptyValue", func(t *testing.T) {
		mustSet(t, database, "empty-value", []byte{})
		value, ok, err := database.Get("empty-value")
		if err != nil || !ok {
			t.Fatalf("Expected empty value to exist, got ok=%v err=%v", ok, err)
		}
		if len(value) != 0 {
			t.Errorf("Expected empty value, got %q", value)
		}
	})

	t.Run("EmptyKey", func(t *testing.T) {
		mustSet(t, database, "", []byte("empty-key-value"))
		expectValue(t, database, "", []byte("empty-key-value"))
	})

	t.Run("BinaryKeysAndValues", func(t *testing.T) {
		key := string([]byte{0x00, 0xff, 0xfe, 0x01, '\n'})
		value := []byte{0x00, 0x00, 0xff, 0x10, 0x80}
		mustSet(t, database, key, value)
		expectValue(t, database, key, value)
	})

	t.Run("LargeValue", func(t *testing.T) {
		value := bytes.Repeat([]byte("0123456789abcdef"), 64*1024) // 1 MiB
		mustSet(t, database, "large", value)
		expectValue(t, database, "large", value)
	})

	t.Run("SimilarKeys", func(t *testing.T) {
		keys := []string{"a", "aa", "a ", "A", "a\x00"}
		for i, key := range keys {
			mustSet(t, database, key, []byte(fmt.Sprintf("value-%d", i)))
		}
		for i, key := range keys {
			expectValue(t, database, key, []byte(fmt.Sprintf("value-%d", i)))
		}
	})
}

func testReopen(t *testing.T, factory DBFactory) {
	dir := t.TempDir()

	database := open(t, factory, dir)
	mustSet(t, database, "kept", []byte("value"))
	mustSet(t, database, "overwritten", []byte("old"))
	mustSet(t, database, "overwritten", []byte("new"))
	mustSet(t, database, "removed", []byte("value"))
	if err := database.Remove("removed"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := database.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	database = open(t, factory, dir)
	defer database.Close()

	expectValue(t, database, "kept", []byte("value"))
	expectValue(t, database, "overwritten", []byte("new"))
	expectMissing(t, database, "removed")

	// the reopened database keeps accepting writes
	mustSet(t, database, "after-reopen", []byte("value"))
	expectValue(t, database, "after-reopen", []byte("value"))
}

func testManyKeys(t *testing.T, factory DBFactory) {
	dir := t.TempDir()
	numKeys := 2000
	rounds := 5

	database := open(t, factory, dir)
	for round := 0; round < rounds; round++ {
		for i := 0; i < numKeys; i++ {
			key := fmt.Sprintf("key-%d", i)
			mustSet(t, database, key, []byte(fmt.Sprintf("value-%d-%d", i, round)))
		}
	}
	for i := 0; i < numKeys; i += 2 {
		if err := database.Remove(fmt.Sprintf("key-%d", i)); err != nil {
			t.Fatalf("Remove failed: %v", err)
		}
	}

	check := func(database db.KVDB) {
		for i := 0; i < numKeys; i++ {
			key := fmt.Sprintf("key-%d", i)
			if i%2 == 0 {
				expectMissing(t, database, key)
			} else {
				expectValue(t, database, key, []byte(fmt.Sprintf("value-%d-%d", i, rounds-1)))
			}
		}
	}

	check(database)
	if err := database.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	database = open(t, factory, dir)
	defer database.Close()
	check(database)
}

// testConcurrentAccess runs readers against a writer.
// Every value a reader sees must be one that was written for that key.
func testConcurrentAccess(t *testing.T, database db.KVDB) {
	defer database.Close()

	numKeys := 50
	numReaders := 8
	numWrites := 2000

	for i := 0; i < numKeys; i++ {
		mustSet(t, database, fmt.Sprintf("key-%d", i), []byte(fmt.Sprintf("key-%d:0", i)))
	}

	var (
		wg       sync.WaitGroup
		done     atomic.Bool
		failures atomic.Int64
		reads    atomic.Int64
	)

	for r := 0; r < numReaders; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			for i := r; !done.Load(); i++ {
				key := fmt.Sprintf("key-%d", i%numKeys)
				value, ok, err := database.Get(key)
				if err != nil || !ok || !bytes.HasPrefix(value, []byte(key+":")) {
					failures.Add(1)
				}
				reads.Add(1)
			}
		}(r)
	}

	for i := 0; i < numWrites; i++ {
		key := fmt.Sprintf("key-%d", i%numKeys)
		if err := database.Set(key, []byte(fmt.Sprintf("%s:%d", key, i))); err != nil {
			t.Errorf("Set failed: %v", err)
		}
	}
	done.Store(true)
	wg.Wait()

	if failures.Load() > 0 {
		t.Errorf("%d of %d concurrent reads returned a wrong value", failures.Load(), reads.Load())
	}
}

func testInfo(t *testing.T, database db.KVDB) {
	defer database.Close()

	for i := 0; i < 100; i++ {
		mustSet(t, database, fmt.Sprintf("key-%d", i), []byte("value"))
	}

	info := database.GetInfo()
	if info.DbType == "" {
		t.Errorf("Expected a database type in the info")
	}
	if info.SizeBytes < 0 {
		t.Errorf("Expected a non negative size, got %d", info.SizeBytes)
	}
}

func testClosed(t *testing.T, database db.KVDB) {
	mustSet(t, database, "key", []byte("value"))
	if err := database.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := database.Set("key", []byte("value")); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Expected ErrClosed from Set after Close, got %v", err)
	}
	if _, _, err := database.Get("key"); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Expected ErrClosed from Get after Close, got %v", err)
	}
	if err := database.Remove("key"); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Expected ErrClosed from Remove after Close, got %v", err)
	}
}
