package bundle

import (
	"path/filepath"
	"testing"

	"github.com/montanetech/codeix-sub000/internal/model"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".codeindex")

	snap := Snapshot{
		Name: "demo",
		Files: []model.File{
			{Path: "src/main.go", ParentPath: "src", Language: "go", Fingerprint: "abc", Lines: 10},
			{Path: "README.md", ParentPath: ".", Language: "markdown", Fingerprint: "def", Lines: 4},
		},
		Symbols: []model.Symbol{
			{File: "src/main.go", Name: "main", Kind: model.KindFunction, LineStart: 1, LineEnd: 3, Visibility: model.VisibilityPublic},
		},
		Texts: []model.Text{
			{File: "README.md", Kind: model.TextSample, LineStart: 1, LineEnd: 2, Text: "hello"},
		},
		Refs: []model.Ref{
			{File: "src/main.go", Name: "fmt.Println", Kind: model.RefCall, LineStart: 2, LineEnd: 2, Caller: "main"},
		},
	}

	if err := Write(dir, snap); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !Exists(dir) {
		t.Fatalf("expected Exists to report true after Write")
	}

	got, err := Read(dir)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if got.Name != "demo" {
		t.Fatalf("expected name demo, got %q", got.Name)
	}
	if len(got.Files) != 2 || len(got.Symbols) != 1 || len(got.Texts) != 1 || len(got.Refs) != 1 {
		t.Fatalf("round trip lost rows: %+v", got)
	}
	if got.Files[0].Project != "" {
		t.Fatalf("expected project field to stay empty through round trip, got %q", got.Files[0].Project)
	}
	if got.Symbols[0].Name != "main" {
		t.Fatalf("expected symbol name to round trip, got %q", got.Symbols[0].Name)
	}
}

func TestReadMissingBundleErrors(t *testing.T) {
	if _, err := Read(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected an error reading a nonexistent bundle")
	}
}

func TestExistsFalseForEmptyDir(t *testing.T) {
	if Exists(t.TempDir()) {
		t.Fatalf("expected Exists to report false for a directory with no manifest")
	}
}
