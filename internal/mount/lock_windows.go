//go:build windows

package mount

import (
	"os"

	"golang.org/x/sys/windows"
)

// fileLock mirrors lock_unix.go's contract using LockFileEx.
type fileLock struct {
	f *os.File
}

func tryAcquireLock(sentinel string) (*fileLock, bool, error) {
	f, err := os.OpenFile(sentinel, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, false, err
	}
	ol := new(windows.Overlapped)
	err = windows.LockFileEx(windows.Handle(f.Fd()), windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY, 0, 1, 0, ol)
	if err != nil {
		f.Close()
		if err == windows.ERROR_LOCK_VIOLATION {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &fileLock{f: f}, true, nil
}

func (l *fileLock) release() error {
	defer l.f.Close()
	ol := new(windows.Overlapped)
	return windows.UnlockFileEx(windows.Handle(l.f.Fd()), 0, 1, 0, ol)
}
