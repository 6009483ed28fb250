package leveldb

import (
	"testing"

	"github.com/ValentinKolb/kvs/lib/db"
	dbtesting "github.com/ValentinKolb/kvs/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "LevelDB", func(dir string) (db.KVDB, error) {
		return Open(dir, nil)
	})
}

func Benchmark(t *testing.B) {
	dbtesting.RunKVDBBenchmarks(t, "LevelDB", func(dir string) (db.KVDB, error) {
		return Open(dir, nil)
	})
}

func TestSecondOpenFails(t *testing.T) {
	dir := t.TempDir()
	first, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer first.Close()

	if second, err := Open(dir, nil); err == nil {
		_ = second.Close()
		t.Fatalf("Expected the second Open to fail")
	} else if db.CodeOf(err) != db.RetCIoError {
		t.Errorf("Expected an IoError, got %v", err)
	}
}
