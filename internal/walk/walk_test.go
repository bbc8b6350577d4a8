package walk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/montanetech/codeix-sub000/internal/mount"
)

type recordingSink struct {
	events []mount.FsEvent
	dirs   []string
}

func (s *recordingSink) OnEvent(ev mount.FsEvent) { s.events = append(s.events, ev) }
func (s *recordingSink) OnDir(dir string)         { s.dirs = append(s.dirs, dir) }

func TestWalkEmitsFileAddedAndSkipsIgnored(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, ".gitignore"), "ignored/\n")
	mustWrite(t, filepath.Join(root, "main.go"), "package main")
	mustMkdir(t, filepath.Join(root, "ignored"))
	mustWrite(t, filepath.Join(root, "ignored", "skip.go"), "package ignored")
	mustMkdir(t, filepath.Join(root, "src"))
	mustWrite(t, filepath.Join(root, "src", "lib.go"), "package src")

	m, err := mount.New(root)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	sink := &recordingSink{}
	if err := Walk(m, sink); err != nil {
		t.Fatal(err)
	}

	var paths []string
	for _, ev := range sink.events {
		if ev.Kind == mount.FsFileAdded {
			paths = append(paths, ev.RelPath)
		}
	}

	wantMain, wantLib, gotIgnored := false, false, false
	for _, p := range paths {
		switch p {
		case "main.go":
			wantMain = true
		case "src/lib.go":
			wantLib = true
		case "ignored/skip.go":
			gotIgnored = true
		}
	}
	if !wantMain || !wantLib {
		t.Fatalf("expected main.go and src/lib.go to be walked, got %v", paths)
	}
	if gotIgnored {
		t.Fatalf("expected ignored/skip.go to be pruned, got %v", paths)
	}
}

func TestWalkDetectsNestedProject(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "vendor", "lib")
	mustMkdir(t, nested)
	mustMkdir(t, filepath.Join(nested, ".git"))
	mustWrite(t, filepath.Join(nested, "main.go"), "package main")

	m, err := mount.New(root)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	sink := &recordingSink{}
	if err := Walk(m, sink); err != nil {
		t.Fatal(err)
	}

	found := false
	for _, ev := range sink.events {
		if ev.Kind == mount.FsProjectAdded && ev.Root == nested {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a ProjectAdded event for %s, got %+v", nested, sink.events)
	}
}

func TestWalkDoesNotDescendIntoNestedProjectSubtree(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "libs", "utils")
	mustMkdir(t, filepath.Join(nested, ".git"))
	mustWrite(t, filepath.Join(nested, "src", "lib.go"), "package utils")

	m, err := mount.New(root)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	sink := &recordingSink{}
	if err := Walk(m, sink); err != nil {
		t.Fatal(err)
	}

	for _, ev := range sink.events {
		if ev.Kind == mount.FsFileAdded {
			t.Fatalf("expected no files under the nested project to be attributed to the outer walk, got %+v", ev)
		}
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
}
