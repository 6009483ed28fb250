package lstore

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ValentinKolb/kvs/lib/db"
	"github.com/ValentinKolb/kvs/lib/db/engines/kvs"
	"github.com/ValentinKolb/kvs/lib/db/engines/leveldb"
)

func kvsFactory(dir string) (db.KVDB, error) {
	return kvs.Open(dir, nil)
}

func levelDBFactory(dir string) (db.KVDB, error) {
	return leveldb.Open(dir, nil)
}

func TestLocalStore(t *testing.T) {
	tests := []struct {
		name    string
		impl    db.Implementation
		factory func(string) (db.KVDB, error)
	}{
		{"kvs", db.ImplKvs, kvsFactory},
		{"leveldb", db.ImplLevelDB, levelDBFactory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewLocalStore(t.TempDir(), tt.impl, tt.factory)
			if err != nil {
				t.Fatalf("NewLocalStore failed: %v", err)
			}
			defer s.Close()

			if err := s.Set("key", []byte("value")); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			value, ok, err := s.Get("key")
			if err != nil || !ok || string(value) != "value" {
				t.Errorf("Expected value, got %q ok=%v err=%v", value, ok, err)
			}
			if err := s.Remove("key"); err != nil {
				t.Errorf("Remove failed: %v", err)
			}
			if err := s.Remove("key"); !errors.Is(err, db.ErrKeyNotFound) {
				t.Errorf("Expected ErrKeyNotFound, got %v", err)
			}

			info, err := s.GetDBInfo()
			if err != nil {
				t.Fatalf("GetDBInfo failed: %v", err)
			}
			if info.DbType != tt.impl {
				t.Errorf("Expected db type %s, got %s", tt.impl, info.DbType)
			}
		})
	}
}

func TestEngineRecord(t *testing.T) {
	dir := t.TempDir()

	s, err := NewLocalStore(dir, db.ImplKvs, kvsFactory)
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	_ = s.Set("key", []byte("value"))
	_ = s.Close()

	data, err := os.ReadFile(filepath.Join(dir, engineFileName))
	if err != nil {
		t.Fatalf("Expected an engine record: %v", err)
	}
	if strings.TrimSpace(string(data)) != string(db.ImplKvs) {
		t.Errorf("Expected engine record %q, got %q", db.ImplKvs, data)
	}

	// another engine must not open the directory and must not touch it
	opened := false
	_, err = NewLocalStore(dir, db.ImplLevelDB, func(dir string) (db.KVDB, error) {
		opened = true
		return levelDBFactory(dir)
	})
	if !errors.Is(err, ErrEngineMismatch) {
		t.Fatalf("Expected an engine mismatch, got %v", err)
	}
	if db.CodeOf(err) != db.RetCEngineMismatch {
		t.Errorf("Expected code %s, got %s", db.RetCEngineMismatch, db.CodeOf(err))
	}
	if opened {
		t.Errorf("The engine must not be opened on a mismatch")
	}

	// the same engine reopens the directory with its data
	s, err = NewLocalStore(dir, db.ImplKvs, kvsFactory)
	if err != nil {
		t.Fatalf("Reopening with the recorded engine failed: %v", err)
	}
	defer s.Close()
	if value, ok, _ := s.Get("key"); !ok || string(value) != "value" {
		t.Errorf("Expected the stored value after reopening, got %q", value)
	}
}

func TestFactoryError(t *testing.T) {
	dir := t.TempDir()
	_, err := NewLocalStore(dir, db.ImplKvs, func(string) (db.KVDB, error) {
		return nil, db.NewError(db.RetCIoError, "boom")
	})
	if db.CodeOf(err) != db.RetCIoError {
		t.Fatalf("Expected the factory error, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, engineFileName)); !os.IsNotExist(err) {
		t.Errorf("A failed open must not write an engine record")
	}
}
