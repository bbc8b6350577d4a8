// Package bundle writes and reads the on-disk snapshot of one
// project's database slice: a pretty-printed manifest plus four
// newline-delimited JSON files, per spec.md §4.7 and §6. The writer
// and the reader are strict inverses of each other.
package bundle

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/montanetech/codeix-sub000/internal/errx"
	"github.com/montanetech/codeix-sub000/internal/model"
)

const schemaVersion = 1

// manifestFile is the on-disk shape of index.json.
type manifestFile struct {
	Version   int      `json:"version"`
	Name      string   `json:"name"`
	Root      string   `json:"root"`
	Languages []string `json:"languages"`
}

// Snapshot is everything Write needs for one project: the rows (with
// the project field already meaningful to the caller but stripped on
// write) and the display name resolved by the caller per §4.7.
type Snapshot struct {
	Name    string
	Files   []model.File
	Symbols []model.Symbol
	Texts   []model.Text
	Refs    []model.Ref
}

// Write composes the manifest and writes the four bundle files into
// dir, creating it if necessary. Rows are expected pre-sorted by the
// caller (searchdb's Export methods already sort them); Write does not
// re-sort, matching the "stable, append-friendly layout" contract.
func Write(dir string, snap Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errx.New(errx.KindIO, "bundle.write", err).WithPath(dir)
	}

	languages := languageSet(snap.Files)

	manifest := manifestFile{
		Version:   schemaVersion,
		Name:      snap.Name,
		Root:      ".",
		Languages: languages,
	}
	manifestBytes, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return errx.New(errx.KindInternal, "bundle.write", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "index.json"), manifestBytes, 0o644); err != nil {
		return errx.New(errx.KindIO, "bundle.write", err).WithPath(dir)
	}

	if err := writeJSONL(filepath.Join(dir, "files.jsonl"), len(snap.Files), func(i int) interface{} { return snap.Files[i] }); err != nil {
		return err
	}
	if err := writeJSONL(filepath.Join(dir, "symbols.jsonl"), len(snap.Symbols), func(i int) interface{} { return snap.Symbols[i] }); err != nil {
		return err
	}
	if err := writeJSONL(filepath.Join(dir, "texts.jsonl"), len(snap.Texts), func(i int) interface{} { return snap.Texts[i] }); err != nil {
		return err
	}
	if err := writeJSONL(filepath.Join(dir, "refs.jsonl"), len(snap.Refs), func(i int) interface{} { return snap.Refs[i] }); err != nil {
		return err
	}
	return nil
}

func writeJSONL(path string, n int, at func(int) interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return errx.New(errx.KindIO, "bundle.write", err).WithPath(path)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i := 0; i < n; i++ {
		if err := enc.Encode(at(i)); err != nil {
			return errx.New(errx.KindIO, "bundle.write", err).WithPath(path)
		}
	}
	return w.Flush()
}

func languageSet(files []model.File) []string {
	seen := make(map[string]bool)
	for _, f := range files {
		if f.Language != "" {
			seen[f.Language] = true
		}
	}
	out := make([]string, 0, len(seen))
	for lang := range seen {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// Read parses the bundle at dir back into a Snapshot. The project
// field on every row is left empty; the caller fills it in from the
// mount the bundle was loaded into (§6's "Persisted state invariant").
func Read(dir string) (Snapshot, error) {
	var snap Snapshot

	manifestBytes, err := os.ReadFile(filepath.Join(dir, "index.json"))
	if err != nil {
		return snap, errx.New(errx.KindIO, "bundle.read", err).WithPath(dir)
	}
	var manifest manifestFile
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		return snap, errx.New(errx.KindParse, "bundle.read", err).WithPath(dir)
	}
	snap.Name = manifest.Name

	if err := readJSONL(filepath.Join(dir, "files.jsonl"), func() interface{} { return new(model.File) }, func(v interface{}) {
		snap.Files = append(snap.Files, *v.(*model.File))
	}); err != nil {
		return snap, err
	}
	if err := readJSONL(filepath.Join(dir, "symbols.jsonl"), func() interface{} { return new(model.Symbol) }, func(v interface{}) {
		snap.Symbols = append(snap.Symbols, *v.(*model.Symbol))
	}); err != nil {
		return snap, err
	}
	if err := readJSONL(filepath.Join(dir, "texts.jsonl"), func() interface{} { return new(model.Text) }, func(v interface{}) {
		snap.Texts = append(snap.Texts, *v.(*model.Text))
	}); err != nil {
		return snap, err
	}
	if err := readJSONL(filepath.Join(dir, "refs.jsonl"), func() interface{} { return new(model.Ref) }, func(v interface{}) {
		snap.Refs = append(snap.Refs, *v.(*model.Ref))
	}); err != nil {
		return snap, err
	}
	return snap, nil
}

func readJSONL(path string, alloc func() interface{}, collect func(interface{})) error {
	f, err := os.Open(path)
	if err != nil {
		return errx.New(errx.KindIO, "bundle.read", err).WithPath(path)
	}
	defer f.Close()

	dec := json.NewDecoder(bufio.NewReader(f))
	for dec.More() {
		v := alloc()
		if err := dec.Decode(v); err != nil {
			return errx.New(errx.KindParse, "bundle.read", err).WithPath(path)
		}
		collect(v)
	}
	return nil
}

// Exists reports whether dir already holds a bundle (its manifest is
// present), used by project discovery to choose between load and
// full re-index (spec.md §4.6 step 4).
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "index.json"))
	return err == nil
}
