package ledger

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

// ErrLedgerBusy is returned when another process holds the ledger lock.
var ErrLedgerBusy = errors.New("ledger is in use by another process")

// FileLock is an exclusive advisory lock on "{ledger}.lock".
type FileLock struct {
	path string
	lock *flock.Flock
}

// LockPath returns the lock file used for the ledger at path.
func LockPath(path string) string {
	return path + ".lock"
}

// Lock takes the ledger lock without blocking.
func Lock(path string) (*FileLock, error) {
	lockPath := LockPath(path)
	fl := flock.New(lockPath)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire ledger lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLedgerBusy, lockPath)
	}
	return &FileLock{path: lockPath, lock: fl}, nil
}

// Path returns the lock file location.
func (l *FileLock) Path() string { return l.path }

// Unlock releases the lock. The lock file itself is left in place.
func (l *FileLock) Unlock() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
