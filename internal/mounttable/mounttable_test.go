package mounttable

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindMountPicksLongestPrefix(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "vendor", "inner")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	tbl := New()
	outer, err := tbl.Mount(root)
	if err != nil {
		t.Fatal(err)
	}
	inner, err := tbl.Mount(nested)
	if err != nil {
		t.Fatal(err)
	}

	file := filepath.Join(nested, "lib.go")
	found, ok := tbl.FindMount(file)
	if !ok {
		t.Fatalf("expected a mount to be found")
	}
	if found != inner {
		t.Fatalf("expected nested mount to win over outer, got root=%s", found.Root)
	}

	outerFile := filepath.Join(root, "main.go")
	found2, ok2 := tbl.FindMount(outerFile)
	if !ok2 || found2 != outer {
		t.Fatalf("expected outer mount for a sibling file, got %+v ok=%v", found2, ok2)
	}
}

func TestRelativeProjectIsolatesNestedFromAncestor(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "sub")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	tbl := New()
	if _, err := tbl.Mount(root); err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.Mount(nested); err != nil {
		t.Fatal(err)
	}

	nestedFile := filepath.Join(nested, "a.go")
	owningRoot, rel, ok := tbl.RelativeProject(nestedFile)
	if !ok {
		t.Fatalf("expected resolution")
	}
	if owningRoot != nested || rel != "a.go" {
		t.Fatalf("expected nested file to belong only to nested project, got root=%s rel=%s", owningRoot, rel)
	}
}

func TestMountingSameRootTwiceReturnsExisting(t *testing.T) {
	root := t.TempDir()
	tbl := New()
	m1, err := tbl.Mount(root)
	if err != nil {
		t.Fatal(err)
	}
	m2, err := tbl.Mount(root)
	if err != nil {
		t.Fatal(err)
	}
	if m1 != m2 {
		t.Fatalf("expected mounting the same root twice to return the same mount")
	}
}

func TestUnmountRemovesFromTable(t *testing.T) {
	root := t.TempDir()
	tbl := New()
	m, err := tbl.Mount(root)
	if err != nil {
		t.Fatal(err)
	}
	tbl.Unmount(m.Root)
	if _, ok := tbl.FindMount(filepath.Join(root, "x.go")); ok {
		t.Fatalf("expected no mount to be found after Unmount")
	}
}
