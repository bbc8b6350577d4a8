package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	root := t.TempDir()
	cfg, err := Load(root, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Root != root {
		t.Fatalf("expected default root %q, got %q", root, cfg.Root)
	}
	if !cfg.Index.RespectGitignore {
		t.Fatalf("expected default respect-gitignore true")
	}
	if cfg.Index.WatchDebounceMs != 500 {
		t.Fatalf("expected default debounce 500ms, got %d", cfg.Index.WatchDebounceMs)
	}
}

func TestLoadParsesProjectIndexAndPatterns(t *testing.T) {
	root := t.TempDir()
	doc := `project {
    name "demo"
}
index {
    max-file-size 2048
    respect-gitignore #false
    watch-debounce-ms 250
}
include "src/**/*.go"
exclude "vendor/**" "**/*.min.js"
`
	path := filepath.Join(root, ".codeix.kdl")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(root, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Name != "demo" {
		t.Fatalf("expected name demo, got %q", cfg.Name)
	}
	if cfg.Index.MaxFileSize != 2048 {
		t.Fatalf("expected max-file-size 2048, got %d", cfg.Index.MaxFileSize)
	}
	if cfg.Index.RespectGitignore {
		t.Fatalf("expected respect-gitignore false")
	}
	if cfg.Index.WatchDebounceMs != 250 {
		t.Fatalf("expected watch-debounce-ms 250, got %d", cfg.Index.WatchDebounceMs)
	}
	if len(cfg.Include) != 1 || cfg.Include[0] != "src/**/*.go" {
		t.Fatalf("unexpected include list: %v", cfg.Include)
	}
	if len(cfg.Exclude) != 2 {
		t.Fatalf("unexpected exclude list: %v", cfg.Exclude)
	}
}
