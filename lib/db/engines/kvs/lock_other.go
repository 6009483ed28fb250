//go:build !unix

package kvs

// dirLock is a no-op on platforms without flock
type dirLock struct{}

func acquireDirLock(string) (*dirLock, error) {
	return &dirLock{}, nil
}

func (l *dirLock) release() error {
	return nil
}
