// Package walk performs the initial filesystem sweep of a project root,
// synthesizing the same FsEvent stream the live watcher produces so
// downstream processing never has to distinguish a discovery walk from
// a live change (spec.md §4.4, §4.6).
package walk

import (
	"os"
	"path/filepath"

	"github.com/montanetech/codeix-sub000/internal/mount"
)

// Sink receives synthesized events and newly-registered watch
// directories as the walk proceeds.
type Sink interface {
	OnEvent(ev mount.FsEvent)
	// OnDir is called for every directory that should be watched live,
	// after gitignore pruning, so the caller can register it before
	// descending further.
	OnDir(absPath string)
}

// Walk performs a depth-first sweep of m.Root, feeding gitignore files
// into m as they're discovered, skipping symlinks (no-follow per
// spec.md §4.4), and emitting a FileAdded event for every
// non-ignored, non-dotfile regular file plus an OnDir call for every
// non-ignored directory.
func Walk(m *mount.Mount, sink Sink) error {
	visited := make(map[string]bool)
	return walkDir(m, m.Root, sink, visited)
}

func walkDir(m *mount.Mount, dir string, sink Sink, visited map[string]bool) error {
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		if visited[real] {
			return nil
		}
		visited[real] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	// Gitignore files must be loaded before siblings in the same
	// directory are classified, so load them first.
	for _, entry := range entries {
		if entry.Name() == ".gitignore" {
			relPath, err := filepath.Rel(m.Root, filepath.Join(dir, entry.Name()))
			if err == nil {
				m.OnGitignoreSeen(filepath.ToSlash(relPath))
			}
		}
	}

	for _, entry := range entries {
		absPath := filepath.Join(dir, entry.Name())

		if entry.Type()&os.ModeSymlink != 0 {
			continue
		}

		if entry.IsDir() {
			if entry.Name() == ".git" {
				continue
			}

			// A directory that itself contains .git is a subproject
			// root: its whole subtree belongs to the new project, so
			// the current walk must stop here rather than recurse
			// into it (spec.md §8 invariant: ancestor/descendant
			// project isolation).
			if _, err := os.Stat(filepath.Join(absPath, ".git")); err == nil {
				if ev, ok := m.OnFSEvent(filepath.Join(absPath, ".git"), mount.EventCreateDir); ok {
					sink.OnEvent(ev)
				}
				continue
			}

			ev, ok := m.OnFSEvent(absPath, mount.EventCreateDir)
			if ok && ev.Kind == mount.FsDirIgnored {
				continue
			}
			sink.OnDir(absPath)
			if err := walkDir(m, absPath, sink, visited); err != nil {
				return err
			}
			continue
		}

		ev, ok := m.OnFSEvent(absPath, mount.EventCreateFile)
		if !ok {
			continue
		}
		sink.OnEvent(ev)
	}

	return nil
}
