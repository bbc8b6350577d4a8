package mount

import (
	"os"
	"path/filepath"
	"strings"
)

// EventKind is the raw filesystem event kind common to both the
// synthesizing walker and the live watcher, per spec.md §9: neither
// branch of the classifier knows which producer called it.
type EventKind int

const (
	EventCreateFile EventKind = iota
	EventModifyFile
	EventCreateDir
	EventRemove
	EventOther
)

// FsKind is the closed set of classified outputs spec.md §4.4 names.
type FsKind int

const (
	FsNone FsKind = iota
	FsProjectAdded
	FsProjectRemoved
	FsDirIgnored
	FsFileAdded
	FsFileRemoved
)

// FsEvent is the classifier's typed output.
type FsEvent struct {
	Kind       FsKind
	Root       string // ProjectAdded/ProjectRemoved: the project root
	MountRoot  string // FileAdded/FileRemoved: owning mount's root
	RelPath    string // FileAdded/FileRemoved: mount-relative path
}

// OnFSEvent is the mount's pure classifier function: (absolute path,
// event kind) -> FsEvent, shared verbatim by the walker and the live
// watcher per spec.md §4.4 and the purity invariant in spec.md §8.4.
func (m *Mount) OnFSEvent(absPath string, kind EventKind) (FsEvent, bool) {
	base := filepath.Base(absPath)

	if base == ".git" {
		switch kind {
		case EventCreateDir, EventCreateFile:
			parent := filepath.Dir(absPath)
			return FsEvent{Kind: FsProjectAdded, Root: parent}, true
		case EventRemove:
			parent := filepath.Dir(absPath)
			return FsEvent{Kind: FsProjectRemoved, Root: parent}, true
		}
	}

	relPath, err := filepath.Rel(m.Root, absPath)
	if err != nil {
		return FsEvent{}, false
	}
	relPath = filepath.ToSlash(relPath)

	isDir := kind == EventCreateDir
	if kind != EventCreateDir && kind != EventRemove {
		if info, statErr := os.Lstat(absPath); statErr == nil {
			isDir = info.IsDir()
		}
	}

	if m.IsIgnored(relPath, isDir) {
		if isDir {
			return FsEvent{Kind: FsDirIgnored, RelPath: relPath}, true
		}
		return FsEvent{}, false
	}

	if strings.HasPrefix(base, ".") {
		if base == ".gitignore" {
			return FsEvent{}, false
		}
		return FsEvent{}, false
	}

	switch kind {
	case EventCreateFile, EventModifyFile:
		if !m.passesFilters(relPath) {
			return FsEvent{}, false
		}
		return FsEvent{Kind: FsFileAdded, MountRoot: m.Root, RelPath: relPath}, true
	case EventRemove:
		if isDir {
			return FsEvent{}, false
		}
		return FsEvent{Kind: FsFileRemoved, MountRoot: m.Root, RelPath: relPath}, true
	case EventCreateDir:
		return FsEvent{}, false
	}
	return FsEvent{}, false
}
