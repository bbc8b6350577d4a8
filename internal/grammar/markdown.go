package grammar

import (
	"strings"

	"github.com/montanetech/codeix-sub000/internal/model"
)

// headingFrame is one entry of the rolling (level, qualified-name)
// stack used to build path-joined qualified names like
// "Guide/Install/Linux" per spec.md §4.2.
type headingFrame struct {
	level int
	name  string
	path  string
}

// extractMarkdown scans content line by line in a single pass: ATX
// headings become section symbols with a rolling parent stack, and
// fenced code blocks become sample text entries tagged with the
// nearest enclosing heading's qualified name. Setext headings are not
// recognized.
func extractMarkdown(content []byte, path string) (model.ParseResult, error) {
	var result model.ParseResult
	var stack []headingFrame

	lines := strings.Split(string(content), "\n")
	var fenceStart = -1
	var fenceLang string
	var fenceBody []string

	for i, raw := range lines {
		lineNo := i + 1
		trimmed := strings.TrimRight(raw, "\r")

		if fenceStart != -1 {
			if isFenceDelimiter(trimmed) {
				parent := ""
				if len(stack) > 0 {
					parent = stack[len(stack)-1].path
				}
				result.Texts = append(result.Texts, model.Text{
					File: path, Kind: model.TextSample,
					Text:      strings.Join(fenceBody, "\n"),
					LineStart: fenceStart, LineEnd: lineNo,
					Parent: parent,
				})
				_ = fenceLang
				fenceStart = -1
				fenceBody = nil
				continue
			}
			fenceBody = append(fenceBody, trimmed)
			continue
		}

		if isFenceDelimiter(trimmed) {
			fenceStart = lineNo
			fenceLang = strings.TrimSpace(strings.TrimLeft(trimmed, "`~"))
			fenceBody = nil
			continue
		}

		if level, title, ok := parseATXHeading(trimmed); ok {
			for len(stack) > 0 && stack[len(stack)-1].level >= level {
				stack = stack[:len(stack)-1]
			}
			qualified := title
			if len(stack) > 0 {
				qualified = stack[len(stack)-1].path + "/" + title
			}
			parent := ""
			if len(stack) > 0 {
				parent = stack[len(stack)-1].path
			}
			stack = append(stack, headingFrame{level: level, name: title, path: qualified})
			result.Symbols = append(result.Symbols, model.Symbol{
				File: path, Name: qualified, Kind: model.KindSection,
				LineStart: lineNo, LineEnd: lineNo, Parent: parent,
			})
		}
	}

	// Fill in a missing closing fence: the partial fenced block is
	// still reported, per the maximum-depth/partial-results policy in
	// spec.md §4.2 and the boundary behaviour in §8.
	if fenceStart != -1 && len(fenceBody) > 0 {
		parent := ""
		if len(stack) > 0 {
			parent = stack[len(stack)-1].path
		}
		result.Texts = append(result.Texts, model.Text{
			File: path, Kind: model.TextSample, Text: strings.Join(fenceBody, "\n"),
			LineStart: fenceStart, LineEnd: len(lines), Parent: parent,
		})
	}

	return result, nil
}

// stripClosingHashes removes a trailing "#"-run only when it is
// preceded by whitespace, so a title that genuinely ends in "#" (like
// "C#") is left untouched.
func stripClosingHashes(rest string) string {
	trimmedEnd := strings.TrimRightFunc(rest, func(r rune) bool { return r == '#' })
	if trimmedEnd == rest {
		return rest
	}
	withSpace := strings.TrimRight(trimmedEnd, " \t")
	if withSpace == trimmedEnd && trimmedEnd != "" {
		// no whitespace between text and the hash run: not a closer
		return rest
	}
	return strings.TrimSpace(withSpace)
}

func isFenceDelimiter(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "```") || strings.HasPrefix(t, "~~~")
}

// parseATXHeading parses a "# Title ##" line, stripping an optional
// closing run of '#' characters and any surrounding whitespace
// (including multi-byte whitespace, handled by strings.TrimSpace's
// unicode-aware trimming).
func parseATXHeading(line string) (level int, title string, ok bool) {
	trimmed := strings.TrimLeft(line, " \t")
	level = 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return 0, "", false
	}
	if level == len(trimmed) || (trimmed[level] != ' ' && trimmed[level] != '\t') {
		return 0, "", false
	}
	rest := strings.TrimSpace(trimmed[level:])
	rest = stripClosingHashes(rest)
	if rest == "" {
		return 0, "", false
	}
	return level, rest, true
}
