// Package watch provides the live fsnotify-backed half of the
// filesystem event pipeline. It forwards raw (path, kind) pairs; the
// caller classifies them with the same mount classifier the initial
// walk uses (spec.md §4.4). The watcher consults the classifier only
// to decide which newly created directories to add to fsnotify.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/montanetech/codeix-sub000/internal/diag"
	"github.com/montanetech/codeix-sub000/internal/mount"
)

// Watcher wraps a single fsnotify.Watcher serving one mounted root.
type Watcher struct {
	mount   *mount.Mount
	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	onEvent func(absPath string, kind mount.EventKind)
}

// New creates a watcher bound to m, already subscribed to every
// directory m reports as watched after the initial walk. onEvent is
// called with the raw (path, kind) pair for every fsnotify event worth
// forwarding; classification (including paths the classifier itself
// rejects, like a dropped ".gitignore" or the flush sentinel) happens
// once the caller's debounce loop drains its batch, not here.
func New(m *mount.Mount, onEvent func(absPath string, kind mount.EventKind)) (*Watcher, error) {
	raw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		mount:   m,
		watcher: raw,
		ctx:     ctx,
		cancel:  cancel,
		onEvent: onEvent,
	}
	for _, dir := range m.WatchedDirs() {
		abs := filepath.Join(m.Root, filepath.FromSlash(dir))
		if err := raw.Add(abs); err != nil {
			diag.Warn("watch.add", err)
		}
	}
	if err := raw.Add(m.Root); err != nil {
		diag.Warn("watch.add", err)
	}
	return w, nil
}

// Start launches the event-processing goroutine.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop cancels the watcher and waits for the goroutine to exit.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			diag.Warn("watch.event", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	var kind mount.EventKind
	switch {
	case ev.Op&fsnotify.Remove != 0, ev.Op&fsnotify.Rename != 0:
		kind = mount.EventRemove
	case ev.Op&fsnotify.Create != 0:
		info, err := os.Stat(ev.Name)
		if err == nil && info.IsDir() {
			kind = mount.EventCreateDir
		} else {
			kind = mount.EventCreateFile
		}
	case ev.Op&fsnotify.Write != 0:
		kind = mount.EventModifyFile
	default:
		return
	}

	// This classification only decides whether fsnotify needs a new
	// watch added; it must not gate forwarding below, or a sentinel the
	// classifier rejects outright (the flush trigger, a ".gitignore")
	// never reaches the handler that knows what to do with it.
	classified, ok := w.mount.OnFSEvent(ev.Name, kind)

	if kind == mount.EventCreateDir && (!ok || classified.Kind != mount.FsDirIgnored) {
		if err := w.watcher.Add(ev.Name); err != nil {
			diag.Warn("watch.add", err)
		}
	}

	if ok && classified.Kind == mount.FsProjectAdded {
		if err := w.watcher.Add(ev.Name); err != nil {
			diag.Warn("watch.add", err)
		}
	}

	if w.onEvent != nil {
		w.onEvent(ev.Name, kind)
	}
}
