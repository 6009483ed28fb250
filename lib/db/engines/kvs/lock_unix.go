//go:build unix

package kvs

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/ValentinKolb/kvs/lib/db"
	"golang.org/x/sys/unix"
)

const lockFileName = "LOCK"

// dirLock is an advisory lock on a data directory, held for the lifetime of a DB
type dirLock struct {
	file *os.File
}

// acquireDirLock takes an exclusive flock on <dir>/LOCK without blocking
func acquireDirLock(dir string) (*dirLock, error) {
	file, err := os.OpenFile(filepath.Join(dir, lockFileName), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, db.WrapError(db.RetCIoError, err, "failed to open lock file")
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, db.NewError(db.RetCIoError, "data directory "+dir+" is locked by another instance")
		}
		return nil, db.WrapError(db.RetCIoError, err, "failed to lock data directory")
	}
	return &dirLock{file: file}, nil
}

func (l *dirLock) release() error {
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		_ = l.file.Close()
		return db.WrapError(db.RetCIoError, err, "failed to unlock data directory")
	}
	if err := l.file.Close(); err != nil {
		return db.WrapError(db.RetCIoError, err, "failed to close lock file")
	}
	return nil
}
