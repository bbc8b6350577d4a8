// Package events implements the debounced event handler and the
// project-discovery algorithm described in spec.md §4.6: it drains the
// classified filesystem event stream, upserts into the search
// database, discovers new projects, and runs the cross-process flush
// protocol (§4.6.1).
package events

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/montanetech/codeix-sub000/internal/bundle"
	"github.com/montanetech/codeix-sub000/internal/diag"
	"github.com/montanetech/codeix-sub000/internal/errx"
	"github.com/montanetech/codeix-sub000/internal/grammar"
	"github.com/montanetech/codeix-sub000/internal/hashing"
	"github.com/montanetech/codeix-sub000/internal/model"
	"github.com/montanetech/codeix-sub000/internal/mount"
	"github.com/montanetech/codeix-sub000/internal/mounttable"
	"github.com/montanetech/codeix-sub000/internal/searchdb"
	"github.com/montanetech/codeix-sub000/internal/walk"
	"github.com/montanetech/codeix-sub000/internal/watch"
)

// FlushTriggerName is the reserved sentinel a second process drops at
// a project root to ask a live server to flush it (spec.md §4.6.1).
const FlushTriggerName = ".codeix.flush"

// DebounceThreshold is the ~500ms window spec.md §4.6 names.
const DebounceThreshold = 500 * time.Millisecond

// FlushPollInterval and FlushTimeout implement the cross-process
// handoff protocol's client side (SPEC_FULL.md §4.6.1): the poll
// interval is a tenth of DebounceThreshold and the timeout ten times
// it, so the protocol never dominates perceived latency on a healthy
// server.
const (
	FlushPollInterval = 50 * time.Millisecond
	FlushTimeout      = 5 * time.Second
)

// CacheMode selects project-discovery's strategy for an already
// RO-mounted root (spec.md §4.6 step 3).
type CacheMode int

const (
	// CacheModeLoad is the serve path: proceed with RO if contended.
	CacheModeLoad CacheMode = iota
	// CacheModeReindex is the build path: RO contention triggers the
	// cross-process flush protocol and waits.
	CacheModeReindex
)

// rawEvent is what the walker and watcher feed into the handler's
// channel; MountRoot lets the handler find the owning mount without a
// lookup, per spec.md §4.6's channel contract.
type rawEvent struct {
	MountRoot string
	AbsPath   string
	Kind      mount.EventKind
}

type pendingEvent struct {
	latest    time.Time
	kind      mount.EventKind
	mountRoot string
}

// Handler is the event loop described in spec.md §4.6.
type Handler struct {
	table   *mounttable.Table
	db      *searchdb.DB
	topRoot string

	ch chan rawEvent

	mu      sync.Mutex
	pending map[string]pendingEvent
	running bool

	watchersMu sync.Mutex
	watchers   map[string]*watch.Watcher

	watchEnabled bool

	includeGlobs     []string
	excludeGlobs     []string
	maxFileSize      int64
	respectGitignore bool
	debounce         time.Duration

	wg   sync.WaitGroup
	done chan struct{}
}

// New builds a handler rooted at topRoot (the project the CLI was
// invoked against); project keys are computed relative to it.
func New(table *mounttable.Table, db *searchdb.DB, topRoot string, watchEnabled bool) *Handler {
	return &Handler{
		table:            table,
		db:               db,
		topRoot:          topRoot,
		ch:               make(chan rawEvent, 256),
		pending:          make(map[string]pendingEvent),
		watchers:         make(map[string]*watch.Watcher),
		watchEnabled:     watchEnabled,
		respectGitignore: true,
		debounce:         DebounceThreshold,
		done:             make(chan struct{}),
	}
}

// Configure applies a project's config knobs to the handler: the
// include/exclude glob lists and max file size every mount this
// handler creates will be filtered by, the respect-gitignore flag, and
// the debounce window, per SPEC_FULL.md §6. Call before Discover.
func (h *Handler) Configure(include, exclude []string, maxFileSize int64, respectGitignore bool, debounceMs int) {
	h.includeGlobs = include
	h.excludeGlobs = exclude
	h.maxFileSize = maxFileSize
	h.respectGitignore = respectGitignore
	if debounceMs > 0 {
		h.debounce = time.Duration(debounceMs) * time.Millisecond
	}
}

// ProjectKey returns the data model's project identifier for root: ""
// for topRoot itself, else root expressed relative to topRoot with
// forward slashes (spec.md §3).
func (h *Handler) ProjectKey(root string) string {
	if root == h.topRoot {
		return ""
	}
	rel, err := filepath.Rel(h.topRoot, root)
	if err != nil {
		return root
	}
	return filepath.ToSlash(rel)
}

// Run starts the debounce loop. It returns when the channel is closed
// (the shutdown signal per spec.md §4.7), after flushing every dirty
// RW mount.
func (h *Handler) Run() {
	h.mu.Lock()
	h.running = true
	h.mu.Unlock()

	timer := time.NewTimer(h.debounce)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-h.ch:
			if !ok {
				h.flushAllDirty()
				close(h.done)
				return
			}
			h.mu.Lock()
			h.pending[ev.AbsPath] = pendingEvent{latest: timeNow(), kind: ev.Kind, mountRoot: ev.MountRoot}
			h.mu.Unlock()
			resetTimer(timer, h.debounce)

		case <-timer.C:
			h.drainMature()
			resetTimer(timer, h.debounce)
		}
	}
}

// Wait blocks until Run has processed the shutdown signal. If Run was
// never started, Wait flushes every dirty RW mount itself and returns.
func (h *Handler) Wait() {
	h.mu.Lock()
	running := h.running
	h.mu.Unlock()
	if !running {
		h.flushAllDirty()
		return
	}
	<-h.done
}

// Close signals shutdown by closing the event channel.
func (h *Handler) Close() { close(h.ch) }

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// timeNow is split out so tests can't accidentally depend on wall
// clock ordering within a single debounce window.
func timeNow() time.Time { return time.Now() }

func (h *Handler) drainMature() {
	h.mu.Lock()
	batch := h.pending
	h.pending = make(map[string]pendingEvent)
	h.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	h.processBatch(batch)
}

// processBatch implements spec.md §4.6's "Batch processing" steps. A
// ".gitignore" in the batch is absorbed into its mount's matcher before
// anything else in the batch is classified, mirroring the walker's
// load-siblings-after-gitignore ordering (internal/walk).
func (h *Handler) processBatch(batch map[string]pendingEvent) {
	touched := make(map[string]bool)

	for absPath, pe := range batch {
		if filepath.Base(absPath) != ".gitignore" || pe.kind == mount.EventRemove {
			continue
		}
		m, ok := h.table.Get(pe.mountRoot)
		if !ok {
			continue
		}
		if rel, err := filepath.Rel(m.Root, absPath); err == nil {
			m.OnGitignoreSeen(filepath.ToSlash(rel))
		}
	}

	for absPath, pe := range batch {
		base := filepath.Base(absPath)
		if base == FlushTriggerName {
			h.handleFlushTrigger(filepath.Dir(absPath))
			continue
		}
		if base == ".gitignore" {
			continue
		}
		if pathContainsBundleDir(absPath) {
			continue
		}

		resolved := absPath
		if pe.kind != mount.EventRemove {
			if real, err := filepath.Abs(absPath); err == nil {
				resolved = real
				if symReal, err := filepath.EvalSymlinks(real); err == nil {
					resolved = symReal
				}
			}
		}

		m, ok := h.table.Get(pe.mountRoot)
		if !ok {
			continue
		}

		fsEvent, ok := m.OnFSEvent(resolved, pe.kind)
		if !ok {
			continue
		}

		h.postProcess(m, fsEvent)
		touched[m.Root] = true
	}

	if len(touched) > 0 {
		h.db.RebuildFTS()
	}
}

func pathContainsBundleDir(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == mount.BundleDirName {
			return true
		}
	}
	return false
}

func (h *Handler) postProcess(m *mount.Mount, ev mount.FsEvent) {
	project := h.ProjectKey(m.Root)
	switch ev.Kind {
	case mount.FsFileAdded:
		h.onFileAdded(m, project, ev.RelPath)
	case mount.FsFileRemoved:
		h.db.RemoveFile(project, ev.RelPath)
		m.MarkDirty()
	case mount.FsProjectAdded:
		h.Discover(ev.Root, CacheModeLoad)
	case mount.FsProjectRemoved:
		h.table.Unmount(ev.Root)
	}
}

// onFileAdded implements change detection: skip reparsing if the
// fingerprint hasn't moved (spec.md §4.6 "Change detection").
func (h *Handler) onFileAdded(m *mount.Mount, project, relPath string) {
	absPath := filepath.Join(m.Root, filepath.FromSlash(relPath))
	content, err := os.ReadFile(absPath)
	if err != nil {
		diag.Warn("events.read", errx.New(errx.KindIO, "events.onFileAdded", err).WithPath(absPath))
		return
	}

	fingerprint := hashing.Fingerprint(content)
	if h.db.FileHash(project, relPath) == fingerprint {
		return
	}

	file := model.File{
		Project:     project,
		Path:        relPath,
		ParentPath:  searchdb.NormalizeParentPath(filepath.Dir(relPath)),
		Fingerprint: fingerprint,
		Lines:       countLines(content),
	}

	var symbols []model.Symbol
	var texts []model.Text
	var refs []model.Ref

	if lang, ok := grammar.LanguageForPath(relPath); ok {
		file.Language = lang
		result, err := grammar.Parse(content, lang, relPath)
		if err != nil {
			diag.Warn("events.parse", errx.New(errx.KindParse, "events.onFileAdded", err).WithPath(absPath))
		} else {
			for i := range result.Symbols {
				result.Symbols[i].Project = project
				result.Symbols[i].File = relPath
			}
			for i := range result.Texts {
				result.Texts[i].Project = project
				result.Texts[i].File = relPath
			}
			for i := range result.Refs {
				result.Refs[i].Project = project
				result.Refs[i].File = relPath
			}
			symbols, texts, refs = result.Symbols, result.Texts, result.Refs
		}
	}

	h.db.UpsertFile(project, file, symbols, texts, refs)
	m.MarkDirty()
}

func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := 1
	for _, b := range content {
		if b == '\n' {
			n++
		}
	}
	return n
}

// Discover implements spec.md §4.6's on_project_discovery algorithm.
func (h *Handler) Discover(root string, cacheMode CacheMode) {
	canon, err := filepath.Abs(root)
	if err != nil {
		diag.Warn("events.discover", err)
		return
	}
	if resolved, err := filepath.EvalSymlinks(canon); err == nil {
		canon = resolved
	}

	if _, already := h.table.Get(canon); already {
		return
	}

	m, err := h.table.Mount(canon)
	if err != nil {
		diag.Warn("events.discover", errx.New(errx.KindIO, "events.discover", err).WithPath(canon))
		return
	}
	m.SetFilters(h.includeGlobs, h.excludeGlobs, h.maxFileSize, h.respectGitignore)

	if !m.IsReadWrite() {
		if cacheMode == CacheModeReindex {
			h.requestFlush(canon)
			return
		}
	}

	bundleDir := filepath.Join(canon, mount.BundleDirName)
	project := h.ProjectKey(canon)

	if cacheMode == CacheModeLoad && bundle.Exists(bundleDir) {
		snap, err := bundle.Read(bundleDir)
		if err == nil {
			for i := range snap.Files {
				snap.Files[i].Project = project
			}
			for i := range snap.Symbols {
				snap.Symbols[i].Project = project
			}
			for i := range snap.Texts {
				snap.Texts[i].Project = project
			}
			for i := range snap.Refs {
				snap.Refs[i].Project = project
			}
			h.db.Load(project, snap.Files, snap.Symbols, snap.Texts, snap.Refs)
			h.registerWatchesOnly(m)
			h.startWatcher(m)
			return
		}
		diag.Warn("events.discover", err)
		if !m.IsReadWrite() {
			return
		}
	}

	h.walkAndIndex(m, cacheMode)
	h.db.RebuildFTS()
	m.MarkDirty()
	h.startWatcher(m)
}

// registerWatchesOnly walks the tree purely to install watch
// directories and recurse into subprojects, without touching the
// database (spec.md §4.6 step 4, the bundle-load branch).
func (h *Handler) registerWatchesOnly(m *mount.Mount) {
	sink := &discoverySink{h: h, m: m, loadOnly: true}
	if err := walk.Walk(m, sink); err != nil {
		diag.Warn("events.walk", err)
	}
}

func (h *Handler) walkAndIndex(m *mount.Mount, cacheMode CacheMode) {
	sink := &discoverySink{h: h, m: m, cacheMode: cacheMode}
	if err := walk.Walk(m, sink); err != nil {
		diag.Warn("events.walk", err)
	}
}

type discoverySink struct {
	h         *Handler
	m         *mount.Mount
	loadOnly  bool
	cacheMode CacheMode
}

func (s *discoverySink) OnDir(absPath string) {
	rel, err := filepath.Rel(s.m.Root, absPath)
	if err != nil {
		return
	}
	s.m.AddWatch(filepath.ToSlash(rel))
}

func (s *discoverySink) OnEvent(ev mount.FsEvent) {
	switch ev.Kind {
	case mount.FsProjectAdded:
		mode := s.cacheMode
		if s.loadOnly {
			mode = CacheModeLoad
		}
		s.h.Discover(ev.Root, mode)
	case mount.FsFileAdded:
		if !s.loadOnly {
			project := s.h.ProjectKey(s.m.Root)
			s.h.onFileAdded(s.m, project, ev.RelPath)
		}
	}
}

func (h *Handler) startWatcher(m *mount.Mount) {
	if !h.watchEnabled || !m.IsReadWrite() {
		return
	}
	h.watchersMu.Lock()
	defer h.watchersMu.Unlock()
	if _, ok := h.watchers[m.Root]; ok {
		return
	}
	w, err := watch.New(m, func(absPath string, kind mount.EventKind) {
		h.Send(m.Root, absPath, kind)
	})
	if err != nil {
		diag.Warn("events.watch", err)
		return
	}
	h.watchers[m.Root] = w
	w.Start()
}

func (h *Handler) flushAllDirty() {
	h.table.Each(func(root string, m *mount.Mount) {
		if m.IsReadWrite() && m.Dirty() {
			if err := h.flushMount(root, m); err != nil {
				diag.Warn("events.flush", err)
			}
		}
	})
}

// FlushMount exports and writes root's bundle immediately, clearing
// its dirty bit on success. Used for on-demand flush_index() calls
// (spec.md §6) as well as internally by the debounce loop's shutdown
// path and the cross-process flush trigger.
func (h *Handler) FlushMount(root string, m *mount.Mount) error {
	return h.flushMount(root, m)
}

func (h *Handler) flushMount(root string, m *mount.Mount) error {
	project := h.ProjectKey(root)
	files, symbols, texts, refs := h.db.ExportForProject(project)

	name := filepath.Base(root)
	snap := bundle.Snapshot{Name: name, Files: files, Symbols: symbols, Texts: texts, Refs: refs}

	bundleDir := filepath.Join(root, mount.BundleDirName)
	if err := bundle.Write(bundleDir, snap); err != nil {
		return err
	}
	m.ClearDirty()
	return nil
}

// handleFlushTrigger is the server side of the cross-process flush
// protocol (spec.md §4.6.1 step 2).
func (h *Handler) handleFlushTrigger(root string) {
	m, ok := h.table.FindMount(root)
	if !ok {
		return
	}
	if err := h.flushMount(m.Root, m); err != nil {
		diag.Warn("events.flushtrigger", err)
	}
	sentinel := filepath.Join(root, FlushTriggerName)
	if err := os.Remove(sentinel); err != nil && !os.IsNotExist(err) {
		diag.Warn("events.flushtrigger", err)
	}
}

// requestFlush is the client side of the cross-process flush protocol:
// it drops the sentinel, polls for its disappearance, and on timeout
// removes it and reports failure (spec.md §4.6.1 step 1).
func (h *Handler) requestFlush(root string) {
	sentinel := filepath.Join(root, FlushTriggerName)
	if err := os.WriteFile(sentinel, nil, 0o644); err != nil {
		diag.Warn("events.requestflush", err)
		return
	}

	deadline := time.Now().Add(FlushTimeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(sentinel); os.IsNotExist(err) {
			return
		}
		time.Sleep(FlushPollInterval)
	}

	os.Remove(sentinel)
	diag.Warn("events.requestflush", errx.New(errx.KindLock, "events.requestflush",
		errTimeout("flush request timed out; a running server likely did not observe the sentinel")).WithPath(root))
}

type timeoutError string

func errTimeout(msg string) error { return timeoutError(msg) }
func (e timeoutError) Error() string { return string(e) }

// Send enqueues a raw event for an externally-produced change; each RW
// mount's live watcher forwards its filesystem events through it.
func (h *Handler) Send(mountRoot, absPath string, kind mount.EventKind) {
	select {
	case h.ch <- rawEvent{MountRoot: mountRoot, AbsPath: absPath, Kind: kind}:
	case <-h.done:
	}
}
