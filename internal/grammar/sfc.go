package grammar

import (
	"regexp"
	"strings"

	"github.com/montanetech/codeix-sub000/internal/model"
)

// scriptTagRe finds <script ...attrs...>body</script> blocks. A
// byte-level regex scan is deliberately used instead of a full HTML
// parser, per spec.md §9's design note that SFC script extraction is a
// small-purpose tokenizer, not a reason to import an HTML grammar.
var scriptTagRe = regexp.MustCompile(`(?is)<script([^>]*)>(.*?)</script>`)

var langAttrRe = regexp.MustCompile(`lang\s*=\s*["']([a-zA-Z0-9]+)["']`)

// scriptBlock is one extracted <script> element.
type scriptBlock struct {
	lang       string
	body       string
	startLine  int // 1-based line number of the first body line
}

// extractScriptBlocks finds every <script> element in content and
// returns each with its inner language (defaulted per dialect when no
// lang attribute is present) and the line offset of its first body
// line, so callers can shift returned ranges back into the composite
// file's coordinate space.
func extractScriptBlocks(content []byte, defaultLang string) []scriptBlock {
	text := string(content)
	var blocks []scriptBlock
	for _, m := range scriptTagRe.FindAllStringSubmatchIndex(text, -1) {
		attrs := text[m[2]:m[3]]
		body := text[m[4]:m[5]]
		lang := defaultLang
		if am := langAttrRe.FindStringSubmatch(attrs); am != nil {
			lang = normalizeScriptLang(am[1])
		}
		bodyStartByte := m[4]
		// Line number of the first character of body: count newlines
		// up to that byte, then +1 because the body's own first line
		// still needs +1 offset applied by offsetLines (its own line 1
		// maps to this line).
		startLine := strings.Count(text[:bodyStartByte], "\n") + 1
		blocks = append(blocks, scriptBlock{lang: lang, body: body, startLine: startLine})
	}
	return blocks
}

func normalizeScriptLang(lang string) string {
	switch strings.ToLower(lang) {
	case "ts", "typescript":
		return "typescript"
	case "tsx":
		return "tsx"
	case "jsx":
		return "jsx"
	default:
		return "javascript"
	}
}

func parseScriptBlocks(content []byte, defaultLang, path string) model.ParseResult {
	var merged model.ParseResult
	for _, block := range extractScriptBlocks(content, defaultLang) {
		if !Supported(block.lang) {
			continue
		}
		res, err := Parse([]byte(block.body), block.lang, path)
		if err != nil {
			continue
		}
		// startLine is the 1-based line of the body's first line; the
		// inner parse reports its own lines starting at 1, so the
		// offset to add is startLine-1.
		res = offsetLines(res, block.startLine-1)
		merged.Symbols = append(merged.Symbols, res.Symbols...)
		merged.Texts = append(merged.Texts, res.Texts...)
		merged.Refs = append(merged.Refs, res.Refs...)
	}
	return merged
}

// extractHTML handles generic HTML: no frontmatter, script blocks
// default to javascript.
func extractHTML(content []byte, path string) (model.ParseResult, error) {
	return parseScriptBlocks(content, "javascript", path), nil
}

// extractVue handles Vue single-file components: <script> defaults to
// javascript, honoring an explicit lang="ts" attribute.
func extractVue(content []byte, path string) (model.ParseResult, error) {
	return parseScriptBlocks(content, "javascript", path), nil
}

// extractSvelte handles Svelte components: same script-extraction
// contract as Vue, javascript by default.
func extractSvelte(content []byte, path string) (model.ParseResult, error) {
	return parseScriptBlocks(content, "javascript", path), nil
}

// frontmatterRe matches the "---\n...\n---" region Astro components
// use for their component script, always TypeScript.
var frontmatterRe = regexp.MustCompile(`(?s)\A---\r?\n(.*?)\r?\n---`)

// extractAstro handles Astro components: an initial frontmatter region
// delimited by "---" (always parsed as TypeScript) plus any <script>
// blocks in the markup, defaulting to javascript.
func extractAstro(content []byte, path string) (model.ParseResult, error) {
	var merged model.ParseResult
	text := string(content)
	if m := frontmatterRe.FindStringSubmatchIndex(text); m != nil {
		body := text[m[2]:m[3]]
		startLine := strings.Count(text[:m[2]], "\n") + 1
		res, err := Parse([]byte(body), "typescript", path)
		if err == nil {
			res = offsetLines(res, startLine-1)
			merged.Symbols = append(merged.Symbols, res.Symbols...)
			merged.Texts = append(merged.Texts, res.Texts...)
			merged.Refs = append(merged.Refs, res.Refs...)
		}
	}
	rest := parseScriptBlocks(content, "javascript", path)
	merged.Symbols = append(merged.Symbols, rest.Symbols...)
	merged.Texts = append(merged.Texts, rest.Texts...)
	merged.Refs = append(merged.Refs, rest.Refs...)
	return merged, nil
}
