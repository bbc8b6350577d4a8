package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadPackageJSON(t *testing.T) {
	dir := t.TempDir()
	content := `{"name": "widgets", "description": "makes widgets"}`
	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	m := Read(dir)
	if m == nil || m.Name != "widgets" || m.Description != "makes widgets" {
		t.Fatalf("unexpected manifest: %+v", m)
	}
}

func TestReadCargoToml(t *testing.T) {
	dir := t.TempDir()
	content := "[package]\nname = \"crate-x\"\ndescription = \"a crate\"\n"
	if err := os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	m := Read(dir)
	if m == nil || m.Name != "crate-x" {
		t.Fatalf("unexpected manifest: %+v", m)
	}
}

func TestReadGoModFallback(t *testing.T) {
	dir := t.TempDir()
	content := "module github.com/example/thing\n\ngo 1.22\n"
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	m := Read(dir)
	if m == nil || m.Name != "github.com/example/thing" {
		t.Fatalf("unexpected manifest: %+v", m)
	}
}

func TestReadNone(t *testing.T) {
	dir := t.TempDir()
	if m := Read(dir); m != nil {
		t.Fatalf("expected nil manifest, got %+v", m)
	}
}

func TestReadPriority(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"name":"pkg"}`), 0o644)
	os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module should-not-win\n"), 0o644)
	m := Read(dir)
	if m == nil || m.Name != "pkg" {
		t.Fatalf("expected package.json to win, got %+v", m)
	}
}
