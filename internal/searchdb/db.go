// Package searchdb is the embedded relational store described in
// spec.md §4.3: an in-memory store over files, symbols, texts and
// references with a single unified ranked-text index on top. One
// shared instance is expected; every exported method takes the
// store's mutex for the duration of the call and nothing is held
// across external I/O.
package searchdb

import (
	"sort"
	"strings"
	"sync"

	"github.com/montanetech/codeix-sub000/internal/model"
)

// Mode selects whether the ranked-text index is built and maintained.
type Mode int

const (
	// ModeFull builds and maintains the ranked-text index.
	ModeFull Mode = iota
	// ModeBuildOnly omits it, halving memory on large one-shot scans.
	ModeBuildOnly
)

type fileKey struct {
	project string
	path    string
}

type symbolRow struct {
	id uint64
	model.Symbol
}

type textRow struct {
	id uint64
	model.Text
}

type refRow struct {
	id uint64
	model.Ref
}

// DB is the search database. Zero value is not usable; use New.
type DB struct {
	mu   sync.Mutex
	mode Mode

	files map[fileKey]model.File

	nextID uint64

	symbolsByID       map[uint64]symbolRow
	symbolIDsByFile   map[fileKey][]uint64
	textsByID         map[uint64]textRow
	textIDsByFile     map[fileKey][]uint64
	refsByID          map[uint64]refRow
	refIDsByFile      map[fileKey][]uint64
	refIDsByName      map[string][]uint64 // "project\x00name"
	refIDsByCaller    map[string][]uint64 // "project\x00caller"

	index *rankedIndex // nil when mode == ModeBuildOnly
}

// New creates an empty database in the given mode.
func New(mode Mode) *DB {
	db := &DB{
		mode:            mode,
		files:           make(map[fileKey]model.File),
		symbolsByID:     make(map[uint64]symbolRow),
		symbolIDsByFile: make(map[fileKey][]uint64),
		textsByID:       make(map[uint64]textRow),
		textIDsByFile:   make(map[fileKey][]uint64),
		refsByID:        make(map[uint64]refRow),
		refIDsByFile:    make(map[fileKey][]uint64),
		refIDsByName:    make(map[string][]uint64),
		refIDsByCaller:  make(map[string][]uint64),
	}
	if mode == ModeFull {
		db.index = newRankedIndex()
	}
	return db
}

func nameKey(project, name string) string   { return project + "\x00" + name }
func callerKey(project, caller string) string { return project + "\x00" + caller }

// Load is an atomic bulk insert for one project, used when restoring
// a project from its bundle (a fresh walk inserts through UpsertFile
// instead). At the end the ranked index is reconciled if enabled.
func (db *DB) Load(project string, files []model.File, symbols []model.Symbol, texts []model.Text, refs []model.Ref) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, f := range files {
		f.Project = project
		db.files[fileKey{project, f.Path}] = f
	}
	for _, s := range symbols {
		s.Project = project
		db.insertSymbolLocked(s)
	}
	for _, t := range texts {
		t.Project = project
		db.insertTextLocked(t)
	}
	for _, r := range refs {
		r.Project = project
		db.insertRefLocked(r)
	}
	if db.index != nil {
		db.rebuildIndexLocked()
	}
}

// UpsertFile atomically replaces all rows keyed by (project, file.Path)
// with file plus the given derived rows. It never touches the ranked
// index; batch callers invoke RebuildFTS once after a batch.
func (db *DB) UpsertFile(project string, file model.File, symbols []model.Symbol, texts []model.Text, refs []model.Ref) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.removeFileLocked(project, file.Path)

	file.Project = project
	db.files[fileKey{project, file.Path}] = file
	for _, s := range symbols {
		s.Project = project
		s.File = file.Path
		db.insertSymbolLocked(s)
	}
	for _, t := range texts {
		t.Project = project
		t.File = file.Path
		db.insertTextLocked(t)
	}
	for _, r := range refs {
		r.Project = project
		r.File = file.Path
		db.insertRefLocked(r)
	}
}

// RemoveFile atomically deletes every row for (project, path) across
// all four tables.
func (db *DB) RemoveFile(project, path string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.removeFileLocked(project, path)
}

func (db *DB) removeFileLocked(project, path string) {
	key := fileKey{project, path}
	delete(db.files, key)

	for _, id := range db.symbolIDsByFile[key] {
		delete(db.symbolsByID, id)
	}
	delete(db.symbolIDsByFile, key)

	for _, id := range db.textIDsByFile[key] {
		delete(db.textsByID, id)
	}
	delete(db.textIDsByFile, key)

	for _, id := range db.refIDsByFile[key] {
		row := db.refsByID[id]
		db.refIDsByName[nameKey(project, row.Name)] = removeID(db.refIDsByName[nameKey(project, row.Name)], id)
		if row.Caller != "" {
			db.refIDsByCaller[callerKey(project, row.Caller)] = removeID(db.refIDsByCaller[callerKey(project, row.Caller)], id)
		}
		delete(db.refsByID, id)
	}
	delete(db.refIDsByFile, key)
}

func removeID(ids []uint64, target uint64) []uint64 {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

func (db *DB) insertSymbolLocked(s model.Symbol) {
	db.nextID++
	id := db.nextID
	db.symbolsByID[id] = symbolRow{id: id, Symbol: s}
	key := fileKey{s.Project, s.File}
	db.symbolIDsByFile[key] = append(db.symbolIDsByFile[key], id)
}

func (db *DB) insertTextLocked(t model.Text) {
	db.nextID++
	id := db.nextID
	db.textsByID[id] = textRow{id: id, Text: t}
	key := fileKey{t.Project, t.File}
	db.textIDsByFile[key] = append(db.textIDsByFile[key], id)
}

func (db *DB) insertRefLocked(r model.Ref) {
	db.nextID++
	id := db.nextID
	db.refsByID[id] = refRow{id: id, Ref: r}
	key := fileKey{r.Project, r.File}
	db.refIDsByFile[key] = append(db.refIDsByFile[key], id)
	db.refIDsByName[nameKey(r.Project, r.Name)] = append(db.refIDsByName[nameKey(r.Project, r.Name)], id)
	if r.Caller != "" {
		db.refIDsByCaller[callerKey(r.Project, r.Caller)] = append(db.refIDsByCaller[callerKey(r.Project, r.Caller)], id)
	}
}

// RebuildFTS rebuilds the ranked index from the four content tables.
// It is idempotent and a no-op in build-only mode.
func (db *DB) RebuildFTS() {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.index == nil {
		return
	}
	db.rebuildIndexLocked()
}

func (db *DB) rebuildIndexLocked() {
	db.index.reset()
	for key, f := range db.files {
		content := coalesce(f.Path, f.Title, f.Description)
		db.index.add(rowHandle{Type: model.ScopeFile, Project: key.project, Path: f.Path}, content)
	}
	for _, row := range db.symbolsByID {
		content := coalesce(row.File, row.Name, row.Tokens)
		db.index.add(rowHandle{Type: model.ScopeSymbol, Project: row.Project, Path: row.File, ID: row.id}, content)
	}
	for _, row := range db.textsByID {
		content := coalesce(row.File, row.Text)
		db.index.add(rowHandle{Type: model.ScopeText, Project: row.Project, Path: row.File, ID: row.id}, content)
	}
	db.index.finalize()
}

func coalesce(parts ...string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += p
	}
	return out
}

// GetFileSymbols returns every symbol belonging to file, ordered by
// LineStart ascending.
func (db *DB) GetFileSymbols(project, file string) []model.Symbol {
	db.mu.Lock()
	defer db.mu.Unlock()
	ids := db.symbolIDsByFile[fileKey{project, file}]
	rows := make([]model.Symbol, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, db.symbolsByID[id].Symbol)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].LineStart < rows[j].LineStart })
	return rows
}

// GetSymbolChildren returns symbols in file whose Parent equals parent,
// ordered by LineStart ascending.
func (db *DB) GetSymbolChildren(project, file, parent string) []model.Symbol {
	var out []model.Symbol
	for _, s := range db.GetFileSymbols(project, file) {
		if s.Parent == parent {
			out = append(out, s)
		}
	}
	return out
}

// GetImports returns the import-kind symbols in file, ordered by
// LineStart ascending.
func (db *DB) GetImports(project, file string) []model.Symbol {
	var out []model.Symbol
	for _, s := range db.GetFileSymbols(project, file) {
		if s.Kind == model.KindImport {
			out = append(out, s)
		}
	}
	return out
}

// GetCallers returns references to name, optionally filtered by kind
// and project, ordered by (file, line_start).
func (db *DB) GetCallers(name string, kind *model.RefKind, project *string) []model.Ref {
	db.mu.Lock()
	defer db.mu.Unlock()
	var ids []uint64
	if project != nil {
		ids = db.refIDsByName[nameKey(*project, name)]
	} else {
		for key, list := range db.refIDsByName {
			if keySuffixMatches(key, name) {
				ids = append(ids, list...)
			}
		}
	}
	rows := make([]model.Ref, 0, len(ids))
	for _, id := range ids {
		r := db.refsByID[id].Ref
		if kind != nil && r.Kind != *kind {
			continue
		}
		rows = append(rows, r)
	}
	sortRefs(rows)
	return rows
}

// GetCallees returns references whose Caller equals caller, optionally
// filtered by kind and project, ordered by (file, line_start).
func (db *DB) GetCallees(caller string, kind *model.RefKind, project *string) []model.Ref {
	db.mu.Lock()
	defer db.mu.Unlock()
	var ids []uint64
	if project != nil {
		ids = db.refIDsByCaller[callerKey(*project, caller)]
	} else {
		for key, list := range db.refIDsByCaller {
			if keySuffixMatches(key, caller) {
				ids = append(ids, list...)
			}
		}
	}
	rows := make([]model.Ref, 0, len(ids))
	for _, id := range ids {
		r := db.refsByID[id].Ref
		if kind != nil && r.Kind != *kind {
			continue
		}
		rows = append(rows, r)
	}
	sortRefs(rows)
	return rows
}

// SearchRefs scans references whose Name contains query as a
// case-insensitive substring, optionally narrowed to project, sorted
// by (file, line_start) and capped by limit (0 means unbounded). The
// ranked-text index only covers files/symbols/texts (spec.md §4.3), so
// reference lookup by substring is a direct scan over refsByID, in the
// same style as GetCallers/GetCallees.
func (db *DB) SearchRefs(query, project string, limit int) []model.Ref {
	db.mu.Lock()
	defer db.mu.Unlock()

	needle := strings.ToLower(query)
	var out []model.Ref
	for _, row := range db.refsByID {
		if project != "" && row.Project != project {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(row.Name), needle) {
			continue
		}
		out = append(out, row.Ref)
	}
	sortRefs(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func keySuffixMatches(key, suffix string) bool {
	idx := indexByte(key, '\x00')
	return idx >= 0 && key[idx+1:] == suffix
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func sortRefs(rows []model.Ref) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].File != rows[j].File {
			return rows[i].File < rows[j].File
		}
		return rows[i].LineStart < rows[j].LineStart
	})
}

// FileHash returns the stored fingerprint for (project, path), or ""
// if no such file row exists.
func (db *DB) FileHash(project, path string) string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.files[fileKey{project, path}].Fingerprint
}

// HasFile reports whether a file row exists for (project, path).
func (db *DB) HasFile(project, path string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, ok := db.files[fileKey{project, path}]
	return ok
}
