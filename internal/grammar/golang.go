package grammar

import (
	"sort"
	"strings"
	"unicode"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"

	"github.com/montanetech/codeix-sub000/internal/model"
)

const goQuery = `
(function_declaration name: (identifier) @function.name) @function
(method_declaration
  receiver: (parameter_list (parameter_declaration type: [(type_identifier) (pointer_type (type_identifier))] @method.receiver))
  name: (field_identifier) @method.name) @method
(type_spec name: (type_identifier) @struct.name type: (struct_type)) @struct
(type_spec name: (type_identifier) @interface.name type: (interface_type)) @interface
(type_spec name: (type_identifier) @typealias.name type: [(type_identifier) (qualified_type) (pointer_type)]) @typealias
(const_spec name: (identifier) @constant.name) @constant
(var_spec name: (identifier) @variable.name) @variable
(import_spec path: (interpreted_string_literal) @import.path) @import
(call_expression function: (identifier) @call.name) @call
(comment) @comment
`

func goVisibility(name string) model.Visibility {
	if name == "" {
		return model.VisibilityPrivate
	}
	if unicode.IsUpper(rune(name[0])) {
		return model.VisibilityPublic
	}
	return model.VisibilityPrivate
}

func extractGo(content []byte, path string) (model.ParseResult, error) {
	lang := tree_sitter.NewLanguage(tree_sitter_go.Language())
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

	query, qerr := tree_sitter.NewQuery(lang, goQuery)
	if qerr != nil || query == nil {
		return model.ParseResult{}, qerr
	}
	defer query.Close()

	qc := tree_sitter.NewQueryCursor()
	defer qc.Close()
	matches := qc.Matches(query, tree.RootNode(), content)
	captureNames := query.CaptureNames()

	var result model.ParseResult
	var currentReceiver string

	for {
		match := matches.Next()
		if match == nil {
			break
		}
		names := map[string]string{}
		for _, c := range match.Captures {
			n := captureNames[c.Index]
			if strings.HasSuffix(n, ".name") || strings.HasSuffix(n, ".receiver") || strings.HasSuffix(n, ".path") {
				names[n] = text(content, c.Node)
			}
		}
		for _, c := range match.Captures {
			node := c.Node
			switch captureNames[c.Index] {
			case "function":
				name := names["function.name"]
				result.Symbols = append(result.Symbols, model.Symbol{
					File: path, Name: name, Kind: model.KindFunction,
					LineStart: line(node, true), LineEnd: line(node, false),
					Visibility: goVisibility(name),
				})
			case "method":
				currentReceiver = strings.TrimPrefix(names["method.receiver"], "*")
				name := names["method.name"]
				dotted := name
				if currentReceiver != "" {
					dotted = currentReceiver + "." + name
				}
				result.Symbols = append(result.Symbols, model.Symbol{
					File: path, Name: dotted, Kind: model.KindMethod, Parent: currentReceiver,
					LineStart: line(node, true), LineEnd: line(node, false),
					Visibility: goVisibility(name),
				})
			case "struct":
				name := names["struct.name"]
				result.Symbols = append(result.Symbols, model.Symbol{
					File: path, Name: name, Kind: model.KindStruct,
					LineStart: line(node, true), LineEnd: line(node, false),
					Visibility: goVisibility(name),
				})
			case "interface":
				name := names["interface.name"]
				result.Symbols = append(result.Symbols, model.Symbol{
					File: path, Name: name, Kind: model.KindInterface,
					LineStart: line(node, true), LineEnd: line(node, false),
					Visibility: goVisibility(name),
				})
			case "typealias":
				name := names["typealias.name"]
				result.Symbols = append(result.Symbols, model.Symbol{
					File: path, Name: name, Kind: model.KindTypeAlias,
					LineStart: line(node, true), LineEnd: line(node, false),
					Visibility: goVisibility(name),
				})
			case "constant":
				name := names["constant.name"]
				result.Symbols = append(result.Symbols, model.Symbol{
					File: path, Name: name, Kind: model.KindConstant,
					LineStart: line(node, true), LineEnd: line(node, false),
					Visibility: goVisibility(name),
				})
			case "variable":
				name := names["variable.name"]
				result.Symbols = append(result.Symbols, model.Symbol{
					File: path, Name: name, Kind: model.KindVariable,
					LineStart: line(node, true), LineEnd: line(node, false),
					Visibility: goVisibility(name),
				})
			case "import":
				importPath := strings.Trim(names["import.path"], `"`)
				result.Symbols = append(result.Symbols, model.Symbol{
					File: path, Name: importPath, Kind: model.KindImport,
					LineStart: line(node, true), LineEnd: line(node, false),
				})
				result.Refs = append(result.Refs, model.Ref{
					File: path, Name: importPath, Kind: model.RefImport,
					LineStart: line(node, true), LineEnd: line(node, false),
				})
			case "call":
				name := names["call.name"]
				if isGoBuiltin(name) {
					continue
				}
				result.Refs = append(result.Refs, model.Ref{
					File: path, Name: name, Kind: model.RefCall,
					LineStart: line(node, true), LineEnd: line(node, false),
					Caller: enclosingGoSymbol(node, content),
				})
			case "comment":
				txt := text(content, node)
				kind := model.TextComment
				if strings.HasPrefix(strings.TrimSpace(txt), "//") && isDocComment(node, content) {
					kind = model.TextDocstring
				}
				result.Texts = append(result.Texts, model.Text{
					File: path, Kind: kind, Text: txt,
					LineStart: line(node, true), LineEnd: line(node, false),
				})
			}
		}
	}

	sort.Slice(result.Symbols, func(i, j int) bool { return result.Symbols[i].LineStart < result.Symbols[j].LineStart })
	sort.Slice(result.Texts, func(i, j int) bool { return result.Texts[i].LineStart < result.Texts[j].LineStart })
	result.Texts = mergeAdjacentText(result.Texts)
	return result, nil
}

var goBuiltins = map[string]bool{
	"len": true, "cap": true, "make": true, "new": true, "append": true,
	"copy": true, "delete": true, "panic": true, "recover": true,
	"print": true, "println": true, "close": true,
}

func isGoBuiltin(name string) bool { return goBuiltins[name] }

// isDocComment reports whether a comment's next sibling node starts on
// the line right after the comment ends, approximating the Go
// convention of a doc comment placed directly above a declaration.
func isDocComment(node tree_sitter.Node, content []byte) bool {
	next := node.NextSibling()
	return next != nil && next.StartPosition().Row == node.EndPosition().Row+1
}

func enclosingGoSymbol(node tree_sitter.Node, content []byte) string {
	n := node.Parent()
	depth := 0
	for n != nil && depth < MaxRecursionDepth {
		switch n.Kind() {
		case "function_declaration":
			if id := n.ChildByFieldName("name"); id != nil {
				return text(content, *id)
			}
		case "method_declaration":
			if id := n.ChildByFieldName("name"); id != nil {
				return text(content, *id)
			}
		}
		n = n.Parent()
		depth++
	}
	return ""
}

func text(content []byte, node tree_sitter.Node) string {
	return string(content[node.StartByte():node.EndByte()])
}

func line(node tree_sitter.Node, start bool) int {
	if start {
		return int(node.StartPosition().Row) + 1
	}
	return int(node.EndPosition().Row) + 1
}
