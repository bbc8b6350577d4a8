// Package mounttable tracks the set of currently mounted project roots
// and resolves paths against them by longest-prefix match, per
// spec.md §4.5.
package mounttable

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/montanetech/codeix-sub000/internal/mount"
)

// Table is the registry of live mounts, keyed by canonical root path.
type Table struct {
	mu     sync.Mutex
	mounts map[string]*mount.Mount
}

// New returns an empty mount table.
func New() *Table {
	return &Table{mounts: make(map[string]*mount.Mount)}
}

// Mount canonicalizes root, opens a new mount.Mount for it (acquiring or
// falling back on the exclusive lock per mount.New), registers it, and
// returns it. Mounting the same root twice returns the existing mount.
func (t *Table) Mount(root string) (*mount.Mount, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for existingRoot, m := range t.mounts {
		if existingRoot == root {
			return m, nil
		}
	}

	m, err := mount.New(root)
	if err != nil {
		return nil, err
	}
	if existing, ok := t.mounts[m.Root]; ok {
		m.Close()
		return existing, nil
	}
	t.mounts[m.Root] = m
	return m, nil
}

// Unmount releases and removes the mount rooted at root, if present.
func (t *Table) Unmount(root string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m, ok := t.mounts[root]; ok {
		m.Close()
		delete(t.mounts, root)
	}
}

// FindMount returns the mount whose root is the longest prefix of path,
// so a nested project's mount always wins over an ancestor's (spec.md
// §8 invariant 3: ancestor/descendant project isolation).
func (t *Table) FindMount(path string) (*mount.Mount, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var best *mount.Mount
	bestLen := -1
	for root, m := range t.mounts {
		if !isWithin(root, path) {
			continue
		}
		if len(root) > bestLen {
			bestLen = len(root)
			best = m
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

// isWithin reports whether path is root itself or lies under root.
func isWithin(root, path string) bool {
	if root == path {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// RelativeProject returns path expressed relative to its owning mount's
// root, using forward slashes, along with that mount's root.
func (t *Table) RelativeProject(path string) (root, relPath string, ok bool) {
	m, found := t.FindMount(path)
	if !found {
		return "", "", false
	}
	rel, err := filepath.Rel(m.Root, path)
	if err != nil {
		return "", "", false
	}
	return m.Root, filepath.ToSlash(rel), true
}

// ProjectRoot resolves a mount-relative path back to its absolute form
// under root.
func ProjectRoot(root, relativePath string) string {
	return filepath.Join(root, filepath.FromSlash(relativePath))
}

// MarkDirty marks the mount owning path as dirty, a no-op if path
// belongs to no known mount.
func (t *Table) MarkDirty(path string) {
	if m, ok := t.FindMount(path); ok {
		m.MarkDirty()
	}
}

// Roots returns the currently mounted roots in stable sorted order.
func (t *Table) Roots() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.mounts))
	for root := range t.mounts {
		out = append(out, root)
	}
	sort.Strings(out)
	return out
}

// Get returns the mount at root, if any.
func (t *Table) Get(root string) (*mount.Mount, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.mounts[root]
	return m, ok
}

// Each calls fn for every mount currently registered, in sorted root
// order, so callers get deterministic iteration for flush sweeps.
func (t *Table) Each(fn func(root string, m *mount.Mount)) {
	t.mu.Lock()
	snapshot := make(map[string]*mount.Mount, len(t.mounts))
	for k, v := range t.mounts {
		snapshot[k] = v
	}
	t.mu.Unlock()

	roots := make([]string, 0, len(snapshot))
	for root := range snapshot {
		roots = append(roots, root)
	}
	sort.Strings(roots)
	for _, root := range roots {
		fn(root, snapshot[root])
	}
}

// CloseAll releases every mount's lock, used on shutdown.
func (t *Table) CloseAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for root, m := range t.mounts {
		m.Close()
		delete(t.mounts, root)
	}
}
