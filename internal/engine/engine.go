// Package engine is the facade tying the mount table, the search
// database and the event handler together, shared by the CLI and the
// MCP server (spec.md §2).
package engine

import (
	"os"
	"path/filepath"

	"github.com/montanetech/codeix-sub000/internal/config"
	"github.com/montanetech/codeix-sub000/internal/events"
	"github.com/montanetech/codeix-sub000/internal/manifest"
	"github.com/montanetech/codeix-sub000/internal/mount"
	"github.com/montanetech/codeix-sub000/internal/mounttable"
	"github.com/montanetech/codeix-sub000/internal/searchdb"
	"github.com/montanetech/codeix-sub000/internal/snippet"
)

// Engine bundles the live state one process needs: the mount table,
// the database, the handler, and the root it was started against.
type Engine struct {
	Table   *mounttable.Table
	DB      *searchdb.DB
	Handler *events.Handler
	Root    string
	Config  config.Config
}

// Options controls how an Engine is constructed. Include/Exclude, when
// non-empty, override/extend the loaded config's pattern lists (CLI
// flag overrides per SPEC_FULL.md §2).
type Options struct {
	Root        string
	ConfigPath  string
	DBMode      searchdb.Mode
	CacheMode   events.CacheMode
	WatchEnable bool
	Include     []string
	Exclude     []string
}

// New canonicalizes root, loads its config, and wires an empty mount
// table, database and handler around it. It does not yet walk or
// watch anything; call Start to populate the root project.
func New(opts Options) (*Engine, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	cfg, err := config.Load(root, opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if len(opts.Include) > 0 {
		cfg.Include = opts.Include
	}
	if len(opts.Exclude) > 0 {
		cfg.Exclude = append(cfg.Exclude, opts.Exclude...)
	}

	table := mounttable.New()
	db := searchdb.New(opts.DBMode)
	handler := events.New(table, db, root, opts.WatchEnable)
	handler.Configure(cfg.Include, cfg.Exclude, cfg.Index.MaxFileSize, cfg.Index.RespectGitignore, cfg.Index.WatchDebounceMs)

	return &Engine{Table: table, DB: db, Handler: handler, Root: root, Config: cfg}, nil
}

// Start discovers the root project (walking or loading its bundle
// depending on cacheMode) and, if the handler was built with watching
// enabled, starts a live watcher for each RW mount. The debounce loop
// that consumes those watchers' events runs only in RunLoop.
func (e *Engine) Start(cacheMode events.CacheMode) {
	e.Handler.Discover(e.Root, cacheMode)
}

// RunLoop blocks running the debounce loop; returns when Shutdown is
// called (closing the handler's channel).
func (e *Engine) RunLoop() {
	e.Handler.Run()
}

// Shutdown closes the handler's channel, flushing every dirty RW
// mount, and waits for the loop to exit.
func (e *Engine) Shutdown() {
	e.Handler.Close()
	e.Handler.Wait()
	e.Table.CloseAll()
}

// FlushAll triggers an on-demand flush of every dirty RW mount,
// serving the flush_index() query-surface method (spec.md §6).
func (e *Engine) FlushAll() {
	e.Table.Each(func(root string, m *mount.Mount) {
		if m.IsReadWrite() && m.Dirty() {
			_ = e.Handler.FlushMount(root, m)
		}
	})
}

// ProjectInfo is what list_projects() returns per project.
type ProjectInfo struct {
	Project     string
	Root        string
	Name        string
	Description string
}

// ListProjects returns every mounted project's key plus manifest
// metadata (spec.md §6 list_projects()).
func (e *Engine) ListProjects() []ProjectInfo {
	var out []ProjectInfo
	e.Table.Each(func(root string, m *mount.Mount) {
		info := ProjectInfo{Project: e.Handler.ProjectKey(root), Root: root}
		if mf := manifest.Read(root); mf != nil {
			info.Name = mf.Name
			info.Description = mf.Description
		}
		out = append(out, info)
	})
	return out
}

// Snippet resolves a query result's source excerpt from disk, given
// the project-relative file path; the project key is joined onto Root
// to find the project directory (the empty key is Root itself).
func (e *Engine) Snippet(project, file string, start, end, k int) (string, bool) {
	root := e.rootForProject(project)
	if root == "" {
		return "", false
	}
	return snippet.Read(filepath.Join(root, filepath.FromSlash(file)), start, end, k)
}

func (e *Engine) rootForProject(project string) string {
	if project == "" {
		return e.Root
	}
	return filepath.Join(e.Root, filepath.FromSlash(project))
}

// FileExists reports whether file still exists on disk under project,
// used by query handlers to filter out rows whose backing file has
// been deleted out from under the database (spec.md §4.8).
func (e *Engine) FileExists(project, file string) bool {
	root := e.rootForProject(project)
	if root == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(root, filepath.FromSlash(file)))
	return err == nil
}
