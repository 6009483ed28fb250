//go:build unix

package kvs

import (
	"testing"

	"github.com/ValentinKolb/kvs/lib/db"
)

func TestDirectoryLock(t *testing.T) {
	dir := t.TempDir()

	first := openTestDB(t, dir, nil)

	second, err := Open(dir, nil)
	if err == nil {
		_ = second.Close()
		t.Fatalf("Expected the second Open of a locked directory to fail")
	}
	if db.CodeOf(err) != db.RetCIoError {
		t.Errorf("Expected an IoError, got %v", err)
	}

	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	third := openTestDB(t, dir, nil)
	_ = third.Close()
}
