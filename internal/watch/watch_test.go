package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/montanetech/codeix-sub000/internal/mount"
)

type rawEvent struct {
	path string
	kind mount.EventKind
}

func TestWatcherReportsFileAdded(t *testing.T) {
	root := t.TempDir()
	m, err := mount.New(root)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	events := make(chan rawEvent, 16)
	w, err := New(m, func(absPath string, kind mount.EventKind) { events <- rawEvent{absPath, kind} })
	if err != nil {
		t.Fatal(err)
	}
	w.Start()
	defer w.Stop()

	path := filepath.Join(root, "new.go")
	if err := os.WriteFile(path, []byte("package main"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-events:
		if ev.kind != mount.EventCreateFile || ev.path != path {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for file-added event")
	}
}

func TestWatcherForwardsFlushSentinelDespiteClassifierRejection(t *testing.T) {
	root := t.TempDir()
	m, err := mount.New(root)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	// Confirm the sentinel really is rejected by the classifier itself,
	// so this test exercises the gap it would otherwise hide.
	if _, ok := m.OnFSEvent(filepath.Join(root, ".codeix.flush"), mount.EventCreateFile); ok {
		t.Fatalf("expected the classifier to reject a dotfile sentinel")
	}

	events := make(chan rawEvent, 16)
	w, err := New(m, func(absPath string, kind mount.EventKind) { events <- rawEvent{absPath, kind} })
	if err != nil {
		t.Fatal(err)
	}
	w.Start()
	defer w.Stop()

	sentinel := filepath.Join(root, ".codeix.flush")
	if err := os.WriteFile(sentinel, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-events:
		if ev.path != sentinel {
			t.Fatalf("expected the sentinel path forwarded raw, got %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the sentinel to be forwarded")
	}
}
