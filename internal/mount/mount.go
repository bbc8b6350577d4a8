// Package mount implements one mounted project root: its exclusive
// lock handle, dirty bit, gitignore matcher, watch set and the
// fs-event classifier shared by the walker and the live watcher
// (spec.md §4.4).
package mount

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// Mode is whether a mount holds the exclusive lock on its bundle.
type Mode int

const (
	ModeReadWrite Mode = iota
	ModeReadOnly
)

// Mount represents one project root, sticky at RW or RO from birth.
type Mount struct {
	Root string // canonical absolute path
	Mode Mode

	mu    sync.Mutex
	dirty bool

	lock *fileLock // nil when Mode == ModeReadOnly

	gitignore *Gitignore

	watchedDirs map[string]bool

	includeGlobs     []string
	excludeGlobs     []string
	maxFileSize      int64
	respectGitignore bool
}

// New canonicalizes root, attempts RW admission (falling back to RO on
// lock contention), and seeds the initial gitignore matcher, per
// spec.md §4.4 steps 1-3.
func New(root string) (*Mount, error) {
	canon, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if resolved, err := filepath.EvalSymlinks(canon); err == nil {
		canon = resolved
	}

	bundleDir := filepath.Join(canon, BundleDirName)
	if err := os.MkdirAll(bundleDir, 0o755); err != nil {
		return nil, err
	}

	m := &Mount{
		Root:             canon,
		watchedDirs:      make(map[string]bool),
		gitignore:        NewGitignore(canon),
		respectGitignore: true,
	}

	sentinel := filepath.Join(bundleDir, "index.json")
	lock, acquired, err := tryAcquireLock(sentinel)
	if err != nil {
		return nil, err
	}
	if acquired {
		m.Mode = ModeReadWrite
		m.lock = lock
	} else {
		m.Mode = ModeReadOnly
	}
	return m, nil
}

// Close releases the exclusive lock, if held. A no-op for RO mounts.
func (m *Mount) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lock != nil {
		return m.lock.release()
	}
	return nil
}

// IsReadWrite reports whether this mount holds the bundle lock.
func (m *Mount) IsReadWrite() bool { return m.Mode == ModeReadWrite }

// MarkDirty sets the dirty bit; called on any upsert or remove
// belonging to this mount.
func (m *Mount) MarkDirty() {
	m.mu.Lock()
	m.dirty = true
	m.mu.Unlock()
}

// ClearDirty clears the dirty bit after a successful flush.
func (m *Mount) ClearDirty() {
	m.mu.Lock()
	m.dirty = false
	m.mu.Unlock()
}

// Dirty reports the current dirty bit.
func (m *Mount) Dirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirty
}

// OnGitignoreSeen appends a newly-discovered .gitignore file (at
// relPath, relative to Root) to the matcher and rebuilds it. Because a
// walk visits parent directories before children, rules are visible in
// time for subsequent siblings (spec.md §4.4).
func (m *Mount) OnGitignoreSeen(relPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gitignore.AddFile(filepath.Join(m.Root, relPath))
}

// AddWatch records dir (relative to Root) as part of the dynamic watch
// set. Returns true if it was newly added.
func (m *Mount) AddWatch(dir string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watchedDirs[dir] {
		return false
	}
	m.watchedDirs[dir] = true
	return true
}

// RemoveWatch drops dir from the watch set.
func (m *Mount) RemoveWatch(dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.watchedDirs, dir)
}

// WatchedDirs returns a snapshot of the current watch set.
func (m *Mount) WatchedDirs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.watchedDirs))
	for d := range m.watchedDirs {
		out = append(out, d)
	}
	return out
}

// IsIgnored reports whether relPath (relative to Root) is ignored by
// this mount's current gitignore matcher.
func (m *Mount) IsIgnored(relPath string, isDir bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gitignore.Match(relPath, isDir, m.respectGitignore)
}

// SetFilters configures the include/exclude glob lists, the maximum
// indexable file size (0 disables the limit) and whether .gitignore
// files are honored, per the config knobs in SPEC_FULL.md §6. Must be
// called, if at all, before the initial walk so every file sees the
// same filters the live watcher later applies.
func (m *Mount) SetFilters(include, exclude []string, maxFileSize int64, respectGitignore bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.includeGlobs = include
	m.excludeGlobs = exclude
	m.maxFileSize = maxFileSize
	m.respectGitignore = respectGitignore
}

// passesFilters reports whether relPath (a file, not a directory)
// survives the configured include/exclude globs and max file size.
func (m *Mount) passesFilters(relPath string) bool {
	m.mu.Lock()
	include, exclude, maxSize := m.includeGlobs, m.excludeGlobs, m.maxFileSize
	m.mu.Unlock()

	if len(include) > 0 && !matchesAny(include, relPath) {
		return false
	}
	if matchesAny(exclude, relPath) {
		return false
	}
	if maxSize > 0 {
		if info, err := os.Stat(filepath.Join(m.Root, filepath.FromSlash(relPath))); err == nil {
			if info.Size() > maxSize {
				return false
			}
		}
	}
	return true
}

func matchesAny(globs []string, relPath string) bool {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, relPath); ok {
			return true
		}
	}
	return false
}
