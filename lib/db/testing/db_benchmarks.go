package testing

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/kvs/lib/db"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementations
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Set", func(b *testing.B) {
		benchmarkSet(b, open(b, factory, b.TempDir()))
	})

	b.Run("SetExisting", func(b *testing.B) {
		benchmarkSetExisting(b, open(b, factory, b.TempDir()))
	})

	b.Run("SetLargeValue", func(b *testing.B) {
		benchmarkSetLargeValue(b, open(b, factory, b.TempDir()))
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, open(b, factory, b.TempDir()))
	})

	b.Run("Get(not)", func(b *testing.B) {
		benchmarkGetNot(b, open(b, factory, b.TempDir()))
	})

	b.Run("Remove", func(b *testing.B) {
		benchmarkRemove(b, open(b, factory, b.TempDir()))
	})

	b.Run("Reopen", func(b *testing.B) {
		benchmarkReopen(b, factory)
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, open(b, factory, b.TempDir()))
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for Set operation
func benchmarkSet(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			key := fmt.Sprintf("test-key-%d", i)
			value := []byte(fmt.Sprintf("test-value-%d", i))
			_ = database.Set(key, value)
		}
	})
}

// Benchmark for Set operation with existing keys (this is the path that triggers compactions)
func benchmarkSetExisting(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	// Prepare data
	numKeys := 1000
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		_ = database.Set(key, value)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter%numKeys)
			value := []byte(fmt.Sprintf("test-value-%d", counter))
			_ = database.Set(key, value)
			counter++
		}
	})
}

// Benchmark for Set operation with large values
func benchmarkSetLargeValue(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	largeValue := make([]byte, 64*1024) // 64KB
	for i := range largeValue {
		largeValue[i] = byte(i % 256)
	}

	b.SetBytes(int64(len(largeValue)))
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("large-key-%d", counter%100)
			_ = database.Set(key, largeValue)
			counter++
		}
	})
}

// Benchmark for Get operation
func benchmarkGet(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	numKeys := 10000
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		_ = database.Set(key, value)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter%numKeys)
			_, _, _ = database.Get(key)
			counter++
		}
	})
}

// Benchmark for Get operation on missing keys
func benchmarkGetNot(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("missing-key-%d", counter)
			_, _, _ = database.Get(key)
			counter++
		}
	})
}

// Benchmark for Remove operation
func benchmarkRemove(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		_ = database.Set(key, []byte("value"))
	}

	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1) - 1
			_ = database.Remove(fmt.Sprintf("test-key-%d", i))
		}
	})
}

// Benchmark for recovering a database from disk
func benchmarkReopen(b *testing.B, factory DBFactory) {
	dir := b.TempDir()

	database := open(b, factory, dir)
	for i := 0; i < 10000; i++ {
		key := fmt.Sprintf("test-key-%d", i%5000)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		_ = database.Set(key, value)
	}
	_ = database.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database = open(b, factory, dir)
		_ = database.Close()
	}
}

// Benchmark for mixed usage patterns
func benchmarkMixedUsage(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	// Number of pre-populated keys
	numKeys := 10000

	// Prepare initial data
	keys := make([]string, numKeys)
	for i := 0; i < numKeys; i++ {
		keys[i] = fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		_ = database.Set(keys[i], value)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

		for pb.Next() {
			key := keys[rnd.Intn(numKeys)]

			// 80% reads, 15% writes, 5% removes
			switch op := rnd.Intn(100); {
			case op < 80:
				_, _, _ = database.Get(key)
			case op < 95:
				_ = database.Set(key, []byte(fmt.Sprintf("mixed-value-%d", op)))
			default:
				_ = database.Remove(key)
			}
		}
	})
}
