package snippet

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.go")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadZeroKReturnsNoSnippet(t *testing.T) {
	path := writeTemp(t, "line1\nline2\n")
	if _, ok := Read(path, 1, 2, 0); ok {
		t.Fatalf("expected k=0 to produce no snippet")
	}
}

func TestReadNegativeOneReturnsAllNonBlank(t *testing.T) {
	path := writeTemp(t, "a\n\nb\nc\n")
	got, ok := Read(path, 1, 4, -1)
	if !ok {
		t.Fatalf("expected a snippet")
	}
	want := "a\nb\nc"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestReadPositiveKTruncatesWithEllipsis(t *testing.T) {
	path := writeTemp(t, "a\nb\nc\nd\n")
	got, ok := Read(path, 1, 4, 2)
	if !ok {
		t.Fatalf("expected a snippet")
	}
	want := "a\nb\n..."
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestReadPositiveKNotTruncatedWhenFewerLines(t *testing.T) {
	path := writeTemp(t, "a\nb\n")
	got, ok := Read(path, 1, 2, 5)
	if !ok {
		t.Fatalf("expected a snippet")
	}
	if got != "a\nb" {
		t.Fatalf("got %q, expected no ellipsis when all lines fit", got)
	}
}

func TestReadUnreadableFileReturnsNoSnippet(t *testing.T) {
	if _, ok := Read(filepath.Join(t.TempDir(), "missing.go"), 1, 5, -1); ok {
		t.Fatalf("expected no snippet for a missing file")
	}
}
