package grammar

import (
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/montanetech/codeix-sub000/internal/model"
)

const pythonQuery = `
(function_definition name: (identifier) @function.name) @function
(class_definition name: (identifier) @class.name) @class
(import_statement name: (dotted_name) @import.name) @import
(import_from_statement module_name: (dotted_name) @import.name) @import
(call function: (identifier) @call.name) @call
(expression_statement (string) @docstring)
(comment) @comment
`

func pythonVisibility(name string) model.Visibility {
	switch {
	case strings.HasPrefix(name, "__") && !strings.HasSuffix(name, "__"):
		return model.VisibilityPrivate
	case strings.HasPrefix(name, "_"):
		return model.VisibilityInternal
	default:
		return model.VisibilityPublic
	}
}

func extractPython(content []byte, path string) (model.ParseResult, error) {
	lang := tree_sitter.NewLanguage(tree_sitter_python.Language())
	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(lang); err != nil {
		return model.ParseResult{}, err
	}
	tree := parser.Parse(content, nil)
	if tree == nil || tree.RootNode() == nil {
		return model.ParseResult{}, nil
	}
	defer tree.Close()

	query, qerr := tree_sitter.NewQuery(lang, pythonQuery)
	if qerr != nil || query == nil {
		return model.ParseResult{}, qerr
	}
	defer query.Close()

	qc := tree_sitter.NewQueryCursor()
	defer qc.Close()
	matches := qc.Matches(query, tree.RootNode(), content)
	captureNames := query.CaptureNames()

	var result model.ParseResult
	classStack := newScopeStack()

	for {
		match := matches.Next()
		if match == nil {
			break
		}
		names := map[string]string{}
		for _, c := range match.Captures {
			n := captureNames[c.Index]
			if strings.HasSuffix(n, ".name") {
				names[n] = text(content, c.Node)
			}
		}
		for _, c := range match.Captures {
			node := c.Node
			switch captureNames[c.Index] {
			case "function":
				name := names["function.name"]
				parent := classStack.enclosing(line(node, true))
				dotted := name
				if parent != "" {
					dotted = parent + "." + name
				}
				kind := model.KindFunction
				if parent != "" {
					kind = model.KindMethod
				}
				result.Symbols = append(result.Symbols, model.Symbol{
					File: path, Name: dotted, Kind: kind, Parent: parent,
					LineStart: line(node, true), LineEnd: line(node, false),
					Visibility: pythonVisibility(name),
				})
			case "class":
				name := names["class.name"]
				classStack.push(name, line(node, true), line(node, false))
				result.Symbols = append(result.Symbols, model.Symbol{
					File: path, Name: name, Kind: model.KindClass,
					LineStart: line(node, true), LineEnd: line(node, false),
					Visibility: pythonVisibility(name),
				})
			case "import":
				name := names["import.name"]
				result.Symbols = append(result.Symbols, model.Symbol{
					File: path, Name: name, Kind: model.KindImport,
					LineStart: line(node, true), LineEnd: line(node, false),
				})
				result.Refs = append(result.Refs, model.Ref{
					File: path, Name: name, Kind: model.RefImport,
					LineStart: line(node, true), LineEnd: line(node, false),
				})
			case "call":
				name := names["call.name"]
				if isPythonBuiltin(name) {
					continue
				}
				result.Refs = append(result.Refs, model.Ref{
					File: path, Name: name, Kind: model.RefCall,
					LineStart: line(node, true), LineEnd: line(node, false),
					Caller: classStack.enclosing(line(node, true)),
				})
			case "docstring":
				if !looksLikeModuleOrDefDocstring(node) {
					continue
				}
				result.Texts = append(result.Texts, model.Text{
					File: path, Kind: model.TextDocstring, Text: trimPyString(text(content, node)),
					LineStart: line(node, true), LineEnd: line(node, false),
					Parent: classStack.enclosing(line(node, true)),
				})
			case "comment":
				result.Texts = append(result.Texts, model.Text{
					File: path, Kind: model.TextComment, Text: text(content, node),
					LineStart: line(node, true), LineEnd: line(node, false),
					Parent: classStack.enclosing(line(node, true)),
				})
			}
		}
	}

	sort.Slice(result.Symbols, func(i, j int) bool { return result.Symbols[i].LineStart < result.Symbols[j].LineStart })
	sort.Slice(result.Texts, func(i, j int) bool { return result.Texts[i].LineStart < result.Texts[j].LineStart })
	result.Texts = mergeAdjacentText(result.Texts)
	return result, nil
}

func trimPyString(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return strings.TrimSpace(s[len(q) : len(s)-len(q)])
		}
	}
	return s
}

// looksLikeModuleOrDefDocstring keeps only the first statement of a
// block, which is the convention Python treats as a docstring; bare
// string-literal expression statements elsewhere are just strings.
func looksLikeModuleOrDefDocstring(node tree_sitter.Node) bool {
	parent := node.Parent()
	if parent == nil {
		return false
	}
	block := parent.Parent()
	if block == nil {
		return false
	}
	first := block.NamedChild(0)
	return first != nil && first.Id() == parent.Id()
}

var pythonBuiltins = map[string]bool{
	"print": true, "len": true, "range": true, "str": true, "int": true,
	"float": true, "list": true, "dict": true, "set": true, "tuple": true,
	"isinstance": true, "super": true, "open": true, "enumerate": true,
}

func isPythonBuiltin(name string) bool { return pythonBuiltins[name] }

// scopeStack tracks enclosing class ranges so a reference's or text
// block's line can be resolved to its innermost enclosing class. Only
// classes are pushed, not functions or methods: a call inside a method
// records the class name (not the dotted method name) as its caller,
// and a call outside any class records an empty caller.
type scopeStack struct {
	entries []scopeEntry
}

type scopeEntry struct {
	name        string
	start, end  int
}

func newScopeStack() *scopeStack { return &scopeStack{} }

func (s *scopeStack) push(name string, start, end int) {
	s.entries = append(s.entries, scopeEntry{name: name, start: start, end: end})
}

// enclosing returns the innermost pushed scope whose range contains
// atLine, or "" if none does.
func (s *scopeStack) enclosing(atLine int) string {
	best := ""
	bestSpan := -1
	for _, e := range s.entries {
		if atLine >= e.start && atLine <= e.end {
			span := e.end - e.start
			if bestSpan == -1 || span < bestSpan {
				best = e.name
				bestSpan = span
			}
		}
	}
	return best
}
