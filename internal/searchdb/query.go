package searchdb

import (
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/montanetech/codeix-sub000/internal/model"
)

func sortHandlesByScore(handles []rowHandle, totals map[rowHandle]float64) {
	sort.SliceStable(handles, func(i, j int) bool {
		si, sj := totals[handles[i]], totals[handles[j]]
		if si != sj {
			return si > sj
		}
		if handles[i].Path != handles[j].Path {
			return handles[i].Path < handles[j].Path
		}
		return handles[i].ID < handles[j].ID
	})
}

// Result is one resolved hit from Search: the matched row plus the
// metadata needed to filter and sort it.
type Result struct {
	Scope   model.EntityScope
	Project string
	Path    string
	Kind    string
	File    *model.File
	Symbol  *model.Symbol
	Text    *model.Text
}

// SearchOptions narrows a Search call. Nil/empty fields mean
// "unfiltered".
type SearchOptions struct {
	Scope   model.EntityScope
	Kind    string
	Path    string // glob
	Project string
	Limit   int
	Offset  int
}

// Search runs the ranked-text query, filters by scope/kind/path/
// project, sorts by rank then slices by limit/offset, and resolves
// row-handles back to full rows.
func (db *DB) Search(query string, opts SearchOptions) []Result {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.index == nil {
		return nil
	}
	handles := db.index.score(query)

	var out []Result
	for _, h := range handles {
		if opts.Scope != "" && opts.Scope != model.ScopeAll && h.Type != opts.Scope {
			continue
		}
		if opts.Project != "" && h.Project != opts.Project {
			continue
		}
		if opts.Path != "" {
			if matched, _ := doublestar.Match(opts.Path, h.Path); !matched {
				continue
			}
		}
		res, ok := db.resolveLocked(h)
		if !ok {
			continue
		}
		if opts.Kind != "" && res.Kind != opts.Kind {
			continue
		}
		out = append(out, res)
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

func (db *DB) resolveLocked(h rowHandle) (Result, bool) {
	switch h.Type {
	case model.ScopeFile:
		f, ok := db.files[fileKey{h.Project, h.Path}]
		if !ok {
			return Result{}, false
		}
		return Result{Scope: model.ScopeFile, Project: h.Project, Path: h.Path, Kind: "file", File: &f}, true
	case model.ScopeSymbol:
		row, ok := db.symbolsByID[h.ID]
		if !ok {
			return Result{}, false
		}
		return Result{Scope: model.ScopeSymbol, Project: h.Project, Path: h.Path, Kind: string(row.Kind), Symbol: &row.Symbol}, true
	case model.ScopeText:
		row, ok := db.textsByID[h.ID]
		if !ok {
			return Result{}, false
		}
		return Result{Scope: model.ScopeText, Project: h.Project, Path: h.Path, Kind: string(row.Kind), Text: &row.Text}, true
	}
	return Result{}, false
}

// ExportForProject dumps one project's slice in stable sort order
// suitable for serialization: files by path; symbols/texts/refs by
// (file, line_start). The project field is stripped, per the on-disk
// bundle invariant in spec.md §3.
func (db *DB) ExportForProject(project string) (files []model.File, symbols []model.Symbol, texts []model.Text, refs []model.Ref) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for key, f := range db.files {
		if key.project != project {
			continue
		}
		f.Project = ""
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	for _, row := range db.symbolsByID {
		if row.Project != project {
			continue
		}
		s := row.Symbol
		s.Project = ""
		symbols = append(symbols, s)
	}
	sortSymbolsByFileLine(symbols)

	for _, row := range db.textsByID {
		if row.Project != project {
			continue
		}
		t := row.Text
		t.Project = ""
		texts = append(texts, t)
	}
	sortTextsByFileLine(texts)

	for _, row := range db.refsByID {
		if row.Project != project {
			continue
		}
		r := row.Ref
		r.Project = ""
		refs = append(refs, r)
	}
	sortRefsByFileLine(refs)

	return files, symbols, texts, refs
}

// ExportAll dumps every project's rows, sorted by (project, path) for
// files and (project, file, line_start) for the rest.
func (db *DB) ExportAll() (files []model.File, symbols []model.Symbol, texts []model.Text, refs []model.Ref) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, f := range db.files {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].Project != files[j].Project {
			return files[i].Project < files[j].Project
		}
		return files[i].Path < files[j].Path
	})
	for _, row := range db.symbolsByID {
		symbols = append(symbols, row.Symbol)
	}
	sort.Slice(symbols, func(i, j int) bool { return lessProjectFileLine(symbols[i].Project, symbols[i].File, symbols[i].LineStart, symbols[j].Project, symbols[j].File, symbols[j].LineStart) })
	for _, row := range db.textsByID {
		texts = append(texts, row.Text)
	}
	sort.Slice(texts, func(i, j int) bool { return lessProjectFileLine(texts[i].Project, texts[i].File, texts[i].LineStart, texts[j].Project, texts[j].File, texts[j].LineStart) })
	for _, row := range db.refsByID {
		refs = append(refs, row.Ref)
	}
	sort.Slice(refs, func(i, j int) bool { return lessProjectFileLine(refs[i].Project, refs[i].File, refs[i].LineStart, refs[j].Project, refs[j].File, refs[j].LineStart) })
	return files, symbols, texts, refs
}

func lessProjectFileLine(ap, af string, al int, bp, bf string, bl int) bool {
	if ap != bp {
		return ap < bp
	}
	if af != bf {
		return af < bf
	}
	return al < bl
}

func sortSymbolsByFileLine(rows []model.Symbol) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].File != rows[j].File {
			return rows[i].File < rows[j].File
		}
		return rows[i].LineStart < rows[j].LineStart
	})
}

func sortTextsByFileLine(rows []model.Text) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].File != rows[j].File {
			return rows[i].File < rows[j].File
		}
		return rows[i].LineStart < rows[j].LineStart
	})
}

func sortRefsByFileLine(rows []model.Ref) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].File != rows[j].File {
			return rows[i].File < rows[j].File
		}
		return rows[i].LineStart < rows[j].LineStart
	})
}

// DirOverview is one row of ExploreDirOverview.
type DirOverview struct {
	ParentPath string
	Language   string
	Count      int
}

// ExploreDirOverview groups a project's files by (parent_path,
// language), counting files in each group.
func (db *DB) ExploreDirOverview(project string) []DirOverview {
	db.mu.Lock()
	defer db.mu.Unlock()
	counts := map[[2]string]int{}
	for key, f := range db.files {
		if key.project != project {
			continue
		}
		counts[[2]string{f.ParentPath, f.Language}]++
	}
	out := make([]DirOverview, 0, len(counts))
	for k, c := range counts {
		out = append(out, DirOverview{ParentPath: k[0], Language: k[1], Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ParentPath != out[j].ParentPath {
			return out[i].ParentPath < out[j].ParentPath
		}
		return out[i].Language < out[j].Language
	})
	return out
}

// ExploreDirFiles lists every file directly under parentPath in
// project, sorted by path.
func (db *DB) ExploreDirFiles(project, parentPath string) []model.File {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []model.File
	for key, f := range db.files {
		if key.project != project || f.ParentPath != parentPath {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// ExploreFilesCapped lists up to limit files under project whose path
// matches pathGlob (or all files when pathGlob is empty), sorted by
// path; returns the matched slice plus whether it was capped.
func (db *DB) ExploreFilesCapped(project, pathGlob string, limit int) ([]model.File, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var matched []model.File
	for key, f := range db.files {
		if key.project != project {
			continue
		}
		if pathGlob != "" {
			if ok, _ := doublestar.Match(pathGlob, f.Path); !ok {
				continue
			}
		}
		matched = append(matched, f)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Path < matched[j].Path })
	if limit > 0 && len(matched) > limit {
		return matched[:limit], true
	}
	return matched, false
}

// NormalizeParentPath returns "." for a file directly at a project's
// root, matching the parent_path convention in spec.md §3.
func NormalizeParentPath(relPath string) string {
	dir := filepath.Dir(relPath)
	if dir == "." || dir == "" {
		return "."
	}
	return filepath.ToSlash(dir)
}
