package kvs

import (
	"testing"

	"github.com/ValentinKolb/kvs/lib/db"
	dbtesting "github.com/ValentinKolb/kvs/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "KvsDB", func(dir string) (db.KVDB, error) {
		return Open(dir, nil)
	})

	// a tiny threshold compacts all the time, the suite must pass all the same
	dbtesting.RunKVDBTests(t, "KvsDB(compacting)", func(dir string) (db.KVDB, error) {
		return Open(dir, &DBOptions{CompactionThreshold: 256})
	})
}

func Benchmark(t *testing.B) {
	dbtesting.RunKVDBBenchmarks(t, "KvsDB", func(dir string) (db.KVDB, error) {
		return Open(dir, nil)
	})
}
