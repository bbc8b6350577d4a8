//go:build !windows

package mount

import (
	"os"

	"golang.org/x/sys/unix"
)

// fileLock wraps the OS-level exclusive lock on a mount's sentinel
// file. The handle lives inside Mount itself so its lifetime can never
// outlive the structure whose Close releases it (spec.md §9).
type fileLock struct {
	f *os.File
}

// tryAcquireLock opens sentinel (creating it empty if absent, per
// spec.md §6) and attempts a non-blocking exclusive flock. acquired is
// false, with no error, when another process already holds the lock.
func tryAcquireLock(sentinel string) (*fileLock, bool, error) {
	f, err := os.OpenFile(sentinel, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, false, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &fileLock{f: f}, true, nil
}

func (l *fileLock) release() error {
	defer l.f.Close()
	return unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
}
