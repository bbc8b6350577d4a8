package searchdb

import (
	"testing"

	"github.com/montanetech/codeix-sub000/internal/model"
)

func sampleFile(path string) model.File {
	return model.File{Path: path, ParentPath: NormalizeParentPath(path), Fingerprint: "abc123", Lines: 10}
}

func TestUpsertFileTwiceIsIdempotent(t *testing.T) {
	db := New(ModeFull)
	file := sampleFile("src/main.go")
	syms := []model.Symbol{{File: "src/main.go", Name: "main", Kind: model.KindFunction, LineStart: 1, LineEnd: 3}}

	db.UpsertFile("", file, syms, nil, nil)
	first := db.GetFileSymbols("", "src/main.go")

	db.UpsertFile("", file, syms, nil, nil)
	second := db.GetFileSymbols("", "src/main.go")

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected exactly one symbol after each upsert, got %d then %d", len(first), len(second))
	}
}

func TestRemoveFileRestoresZeroState(t *testing.T) {
	db := New(ModeFull)
	file := sampleFile("src/lib.go")
	syms := []model.Symbol{{File: "src/lib.go", Name: "helper", Kind: model.KindFunction, LineStart: 1, LineEnd: 2}}
	texts := []model.Text{{File: "src/lib.go", Kind: model.TextComment, Text: "note", LineStart: 1, LineEnd: 1}}
	refs := []model.Ref{{File: "src/lib.go", Name: "fmt", Kind: model.RefImport, LineStart: 1, LineEnd: 1}}

	db.UpsertFile("", file, syms, texts, refs)
	db.RemoveFile("", "src/lib.go")

	if db.HasFile("", "src/lib.go") {
		t.Fatalf("expected file row gone after remove")
	}
	if len(db.GetFileSymbols("", "src/lib.go")) != 0 {
		t.Fatalf("expected no symbols after remove")
	}
	none := ""
	if len(db.GetCallers("fmt", nil, &none)) != 0 {
		t.Fatalf("expected no refs after remove")
	}
}

func TestRebuildFTSIdempotent(t *testing.T) {
	db := New(ModeFull)
	db.UpsertFile("", sampleFile("a.go"), []model.Symbol{{File: "a.go", Name: "greet", Kind: model.KindFunction, LineStart: 1, LineEnd: 1}}, nil, nil)
	db.RebuildFTS()
	first := db.Search("greet", SearchOptions{})
	db.RebuildFTS()
	second := db.Search("greet", SearchOptions{})
	if len(first) != len(second) || len(first) != 1 {
		t.Fatalf("expected rebuild to be idempotent, got %d then %d", len(first), len(second))
	}
}

func TestSearchProjectFilterIsolatesSameNamedSymbols(t *testing.T) {
	db := New(ModeFull)
	db.UpsertFile("", sampleFile("root.go"), []model.Symbol{{File: "root.go", Name: "helper", Kind: model.KindFunction, LineStart: 1, LineEnd: 1}}, nil, nil)
	db.UpsertFile("sub", sampleFile("sub.go"), []model.Symbol{{File: "sub.go", Name: "helper", Kind: model.KindFunction, LineStart: 1, LineEnd: 1}}, nil, nil)
	db.RebuildFTS()

	all := db.Search("helper", SearchOptions{Scope: model.ScopeSymbol})
	if len(all) != 2 {
		t.Fatalf("expected both helpers unfiltered, got %d", len(all))
	}
	seen := map[string]bool{}
	for _, r := range all {
		seen[r.Project] = true
	}
	if !seen[""] || !seen["sub"] {
		t.Fatalf("expected results from both projects, got %+v", seen)
	}

	filtered := db.Search("helper", SearchOptions{Scope: model.ScopeSymbol, Project: "sub"})
	if len(filtered) != 1 || filtered[0].Project != "sub" {
		t.Fatalf("expected exactly one filtered result from sub, got %+v", filtered)
	}
}

func TestExportForProjectStripsProjectField(t *testing.T) {
	db := New(ModeFull)
	db.UpsertFile("proj", sampleFile("x.go"), nil, nil, nil)
	files, _, _, _ := db.ExportForProject("proj")
	if len(files) != 1 {
		t.Fatalf("expected one file, got %d", len(files))
	}
	if files[0].Project != "" {
		t.Fatalf("expected Project field stripped, got %q", files[0].Project)
	}
}

func TestAncestorDescendantProjectsDoNotLeak(t *testing.T) {
	db := New(ModeFull)
	db.UpsertFile("", sampleFile("app.go"), []model.Symbol{{File: "app.go", Name: "app_main", Kind: model.KindFunction}}, nil, nil)
	db.UpsertFile("libs/utils", sampleFile("lib.go"), []model.Symbol{{File: "lib.go", Name: "utility", Kind: model.KindFunction}}, nil, nil)

	rootSymbols := db.GetFileSymbols("", "app.go")
	subSymbols := db.GetFileSymbols("libs/utils", "lib.go")

	if len(rootSymbols) != 1 || rootSymbols[0].Name != "app_main" {
		t.Fatalf("unexpected root symbols: %+v", rootSymbols)
	}
	if len(subSymbols) != 1 || subSymbols[0].Name != "utility" {
		t.Fatalf("unexpected sub symbols: %+v", subSymbols)
	}
	_, rootExportSymbols, _, _ := db.ExportForProject("")
	for _, s := range rootExportSymbols {
		if s.Name == "utility" {
			t.Fatalf("subproject symbol leaked into root export")
		}
	}
}

func TestGetCallersOrderedByFileThenLine(t *testing.T) {
	db := New(ModeFull)
	refs := []model.Ref{
		{File: "b.go", Name: "helper", Kind: model.RefCall, LineStart: 5},
		{File: "a.go", Name: "helper", Kind: model.RefCall, LineStart: 9},
		{File: "a.go", Name: "helper", Kind: model.RefCall, LineStart: 2},
	}
	db.UpsertFile("", sampleFile("a.go"), nil, nil, []model.Ref{refs[1], refs[2]})
	db.UpsertFile("", sampleFile("b.go"), nil, nil, []model.Ref{refs[0]})

	proj := ""
	got := db.GetCallers("helper", nil, &proj)
	if len(got) != 3 {
		t.Fatalf("expected 3 callers, got %d", len(got))
	}
	if got[0].File != "a.go" || got[0].LineStart != 2 {
		t.Fatalf("expected a.go:2 first, got %+v", got[0])
	}
	if got[1].File != "a.go" || got[1].LineStart != 9 {
		t.Fatalf("expected a.go:9 second, got %+v", got[1])
	}
	if got[2].File != "b.go" {
		t.Fatalf("expected b.go last, got %+v", got[2])
	}
}

func TestSearchRefsMatchesSubstringCaseInsensitively(t *testing.T) {
	db := New(ModeFull)
	db.UpsertFile("", sampleFile("a.go"), nil, nil, []model.Ref{
		{File: "a.go", Name: "HandleRequest", Kind: model.RefCall, LineStart: 3},
		{File: "a.go", Name: "other", Kind: model.RefCall, LineStart: 7},
	})

	got := db.SearchRefs("handle", "", 0)
	if len(got) != 1 || got[0].Name != "HandleRequest" {
		t.Fatalf("expected one case-insensitive substring match, got %+v", got)
	}

	if got := db.SearchRefs("handle", "other-project", 0); len(got) != 0 {
		t.Fatalf("expected no matches outside the owning project, got %+v", got)
	}
}
