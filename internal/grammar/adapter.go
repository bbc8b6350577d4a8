// Package grammar is the single entry point that turns a file's bytes
// into symbols, free-text blocks and references, per spec.md §4.2. It
// wraps a per-language extractor behind one contract and handles
// Single-File-Component preprocessing for dialects that nest script
// blocks inside markup.
package grammar

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/montanetech/codeix-sub000/internal/model"
)

// MaxRecursionDepth guards tree-walking extractors against pathological
// nesting (spec.md §4.2).
const MaxRecursionDepth = 200

// extractor is the uniform contract every language module implements.
type extractor func(content []byte, path string) (model.ParseResult, error)

var registry = map[string]extractor{
	"go":         extractGo,
	"python":     extractPython,
	"javascript": extractJS,
	"jsx":        extractJS,
	"typescript": extractTS,
	"tsx":        extractTS,
	"markdown":   extractMarkdown,
}

// sfcDialects maps an SFC language tag to its preprocessing function.
var sfcDialects = map[string]func([]byte, string) (model.ParseResult, error){
	"html":   extractHTML,
	"vue":    extractVue,
	"svelte": extractSvelte,
	"astro":  extractAstro,
}

// ErrUnknownLanguage is returned when a language tag has no extractor
// and isn't an SFC dialect. Per spec.md §4.2 this is one of only two
// conditions under which Parse fails.
type ErrUnknownLanguage struct{ Language string }

func (e *ErrUnknownLanguage) Error() string {
	return fmt.Sprintf("grammar: no extractor registered for language %q", e.Language)
}

// Parse is the adapter's single entry point: bytes + language tag +
// path -> symbols, texts, references. It never panics on malformed
// input; a grammar that rejects the bytes outright surfaces as an
// error rather than a panic, and the caller (the event handler) still
// records the file entry with empty derived entries (spec.md §4.2,
// §7).
func Parse(content []byte, language, path string) (model.ParseResult, error) {
	if fn, ok := sfcDialects[language]; ok {
		return fn(content, path)
	}
	fn, ok := registry[language]
	if !ok {
		return model.ParseResult{}, &ErrUnknownLanguage{Language: language}
	}
	return fn(content, path)
}

// Supported reports whether language has a registered extractor or SFC
// preprocessor. Callers that want to avoid invoking Parse on a language
// doomed to fail can check this first; the grammar adapter's own
// failure policy already degrades gracefully either way.
func Supported(language string) bool {
	if _, ok := sfcDialects[language]; ok {
		return true
	}
	_, ok := registry[language]
	return ok
}

// extByLanguage maps a file extension to the language tag Parse
// expects, covering every extractor and SFC dialect registered above.
var extByLanguage = map[string]string{
	".go":     "go",
	".py":     "python",
	".pyi":    "python",
	".js":     "javascript",
	".mjs":    "javascript",
	".cjs":    "javascript",
	".jsx":    "jsx",
	".ts":     "typescript",
	".mts":    "typescript",
	".tsx":    "tsx",
	".md":     "markdown",
	".markdown": "markdown",
	".html":   "html",
	".htm":    "html",
	".vue":    "vue",
	".svelte": "svelte",
	".astro":  "astro",
}

// LanguageForPath returns the language tag Parse expects for path's
// extension, and whether one is known. Unknown extensions are not an
// error: the caller records the file entry with an empty language and
// no derived entries (spec.md §4.1 edge cases).
func LanguageForPath(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := extByLanguage[ext]
	return lang, ok
}

// mergeAdjacentText collapses consecutive doc-comment entries of the
// same kind on adjacent lines with the same parent into one, per
// spec.md §4.2. texts must already be sorted by LineStart.
func mergeAdjacentText(texts []model.Text) []model.Text {
	if len(texts) == 0 {
		return texts
	}
	out := make([]model.Text, 0, len(texts))
	cur := texts[0]
	for _, t := range texts[1:] {
		if t.Kind == cur.Kind && t.Parent == cur.Parent && t.LineStart <= cur.LineEnd+1 &&
			(t.Kind == model.TextComment || t.Kind == model.TextDocstring) {
			cur.Text = cur.Text + "\n" + t.Text
			if t.LineEnd > cur.LineEnd {
				cur.LineEnd = t.LineEnd
			}
			continue
		}
		out = append(out, cur)
		cur = t
	}
	out = append(out, cur)
	return out
}

// offsetLines adds lineOffset to every line range in result, used by
// SFC preprocessing to map an inner script block's local line numbers
// back to the composite file's line numbers.
func offsetLines(result model.ParseResult, lineOffset int) model.ParseResult {
	for i := range result.Symbols {
		result.Symbols[i].LineStart += lineOffset
		result.Symbols[i].LineEnd += lineOffset
	}
	for i := range result.Texts {
		result.Texts[i].LineStart += lineOffset
		result.Texts[i].LineEnd += lineOffset
	}
	for i := range result.Refs {
		result.Refs[i].LineStart += lineOffset
		result.Refs[i].LineEnd += lineOffset
	}
	return result
}
