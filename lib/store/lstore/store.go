package lstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ValentinKolb/kvs/lib/db"
	"github.com/ValentinKolb/kvs/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("store")

// engineFileName is the file in the data directory that records which engine created it
const engineFileName = "engine"

// ErrEngineMismatch matches every error returned when a data directory belongs to another engine
var ErrEngineMismatch = db.NewError(db.RetCEngineMismatch, "engine mismatch")

type storeImpl struct {
	impl db.Implementation
	db   db.KVDB
}

// NewLocalStore creates a new local store instance backed by the engine impl in dataDir.
//
// The first engine that opens a data directory is recorded in it. Opening the directory
// later with another engine fails with a RetCEngineMismatch error before the engine is
// started, so an engine never reads files it does not understand.
func NewLocalStore(dataDir string, impl db.Implementation, factory store.DBFactory) (store.IStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, db.WrapError(db.RetCIoError, err, "failed to create data directory")
	}

	recorded, err := readEngineRecord(dataDir)
	if err != nil {
		return nil, err
	}
	if recorded != "" && recorded != impl {
		return nil, db.NewError(db.RetCEngineMismatch,
			fmt.Sprintf("data directory %s was created by engine %s, not %s", dataDir, recorded, impl))
	}

	database, err := factory(dataDir)
	if err != nil {
		return nil, err
	}

	if recorded == "" {
		if err := writeEngineRecord(dataDir, impl); err != nil {
			_ = database.Close()
			return nil, err
		}
	}

	Logger.Infof("opened local store in %s with engine %s", dataDir, impl)
	return &storeImpl{
		impl: impl,
		db:   database,
	}, nil
}

// readEngineRecord returns the recorded engine or "" if the directory has no record yet
func readEngineRecord(dataDir string) (db.Implementation, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, engineFileName))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", db.WrapError(db.RetCIoError, err, "failed to read engine record")
	}
	return db.Implementation(strings.TrimSpace(string(data))), nil
}

// writeEngineRecord writes the record to a temporary file first so a crash never leaves a partial record
func writeEngineRecord(dataDir string, impl db.Implementation) error {
	path := filepath.Join(dataDir, engineFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(string(impl)+"\n"), 0o644); err != nil {
		return db.WrapError(db.RetCIoError, err, "failed to write engine record")
	}
	if err := os.Rename(tmp, path); err != nil {
		return db.WrapError(db.RetCIoError, err, "failed to write engine record")
	}
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(key string, value []byte) error {
	return s.db.Set(key, value)
}

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	return s.db.Get(key)
}

func (s *storeImpl) Remove(key string) error {
	return s.db.Remove(key)
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}

func (s *storeImpl) Close() error {
	Logger.Infof("closing local store (engine %s)", s.impl)
	return s.db.Close()
}
