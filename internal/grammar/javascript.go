package grammar

import (
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/montanetech/codeix-sub000/internal/model"
)

const jsQuery = `
(function_declaration name: (identifier) @function.name) @function
(variable_declarator
    name: (identifier) @function.name
    value: [(arrow_function) (function_expression)]) @function
(class_declaration name: (identifier) @class.name) @class
(method_definition name: (property_identifier) @method.name) @method
(variable_declarator
    name: (identifier) @variable.name
    value: (_) @variable.value) @variable
(import_statement source: (string) @import.source) @import
(call_expression function: (identifier) @call.name) @call
(comment) @comment
`

const tsExtraQuery = `
(interface_declaration name: (type_identifier) @interface.name) @interface
(type_alias_declaration name: (type_identifier) @typealias.name) @typealias
`

func extractJS(content []byte, path string) (model.ParseResult, error) {
	lang := tree_sitter.NewLanguage(tree_sitter_javascript.Language())
	return extractJSLike(lang, jsQuery, content, path)
}

func extractTS(content []byte, path string) (model.ParseResult, error) {
	lang := tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
	return extractJSLike(lang, jsQuery+tsExtraQuery, content, path)
}

func jsVisibility(node tree_sitter.Node, content []byte) model.Visibility {
	// export ... => public; otherwise module-internal. "#"-prefixed
	// class members are private; everything else defaults to internal.
	// The TS "private" keyword is not inspected.
	name := text(content, node)
	if strings.HasPrefix(name, "#") {
		return model.VisibilityPrivate
	}
	n := node.Parent()
	for n != nil {
		if n.Kind() == "export_statement" {
			return model.VisibilityPublic
		}
		n = n.Parent()
	}
	return model.VisibilityInternal
}

func extractJSLike(lang *tree_sitter.Language, query string, content []byte, path string) (model.ParseResult, error) {
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

	q, qerr := tree_sitter.NewQuery(lang, query)
	if qerr != nil || q == nil {
		return model.ParseResult{}, qerr
	}
	defer q.Close()

	qc := tree_sitter.NewQueryCursor()
	defer qc.Close()
	matches := qc.Matches(q, tree.RootNode(), content)
	captureNames := q.CaptureNames()

	var result model.ParseResult
	classStack := newScopeStack()

	for {
		match := matches.Next()
		if match == nil {
			break
		}
		names := map[string]string{}
		var nameNodes = map[string]tree_sitter.Node{}
		for _, c := range match.Captures {
			n := captureNames[c.Index]
			if strings.HasSuffix(n, ".name") || strings.HasSuffix(n, ".source") {
				names[n] = text(content, c.Node)
				nameNodes[n] = c.Node
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
					Visibility: jsVisibility(nameNodes["function.name"], content),
				})
			case "class":
				name := names["class.name"]
				classStack.push(name, line(node, true), line(node, false))
				result.Symbols = append(result.Symbols, model.Symbol{
					File: path, Name: name, Kind: model.KindClass,
					LineStart: line(node, true), LineEnd: line(node, false),
					Visibility: jsVisibility(nameNodes["class.name"], content),
				})
			case "method":
				name := names["method.name"]
				parent := classStack.enclosing(line(node, true))
				dotted := name
				if parent != "" {
					dotted = parent + "." + name
				}
				result.Symbols = append(result.Symbols, model.Symbol{
					File: path, Name: dotted, Kind: model.KindMethod, Parent: parent,
					LineStart: line(node, true), LineEnd: line(node, false),
					Visibility: jsVisibility(nameNodes["method.name"], content),
				})
			case "variable":
				name := names["variable.name"]
				result.Symbols = append(result.Symbols, model.Symbol{
					File: path, Name: name, Kind: model.KindVariable,
					LineStart: line(node, true), LineEnd: line(node, false),
					Visibility: jsVisibility(nameNodes["variable.name"], content),
				})
			case "interface":
				name := names["interface.name"]
				result.Symbols = append(result.Symbols, model.Symbol{
					File: path, Name: name, Kind: model.KindInterface,
					LineStart: line(node, true), LineEnd: line(node, false),
					Visibility: jsVisibility(nameNodes["interface.name"], content),
				})
			case "typealias":
				name := names["typealias.name"]
				result.Symbols = append(result.Symbols, model.Symbol{
					File: path, Name: name, Kind: model.KindTypeAlias,
					LineStart: line(node, true), LineEnd: line(node, false),
					Visibility: jsVisibility(nameNodes["typealias.name"], content),
				})
			case "import":
				src := strings.Trim(names["import.source"], `'"`)
				result.Symbols = append(result.Symbols, model.Symbol{
					File: path, Name: src, Kind: model.KindImport,
					LineStart: line(node, true), LineEnd: line(node, false),
				})
				result.Refs = append(result.Refs, model.Ref{
					File: path, Name: src, Kind: model.RefImport,
					LineStart: line(node, true), LineEnd: line(node, false),
				})
			case "call":
				name := names["call.name"]
				if isJSBuiltin(name) {
					continue
				}
				result.Refs = append(result.Refs, model.Ref{
					File: path, Name: name, Kind: model.RefCall,
					LineStart: line(node, true), LineEnd: line(node, false),
					Caller: classStack.enclosing(line(node, true)),
				})
			case "comment":
				txt := text(content, node)
				kind := model.TextComment
				if strings.HasPrefix(txt, "/**") {
					kind = model.TextDocstring
				}
				result.Texts = append(result.Texts, model.Text{
					File: path, Kind: kind, Text: txt,
					LineStart: line(node, true), LineEnd: line(node, false),
					Parent: classStack.enclosing(line(node, true)),
				})
			}
		}
	}

	result.Symbols = dropVariableDuplicatesOfFunctions(result.Symbols)

	sort.Slice(result.Symbols, func(i, j int) bool { return result.Symbols[i].LineStart < result.Symbols[j].LineStart })
	sort.Slice(result.Texts, func(i, j int) bool { return result.Texts[i].LineStart < result.Texts[j].LineStart })
	result.Texts = mergeAdjacentText(result.Texts)
	return result, nil
}

// dropVariableDuplicatesOfFunctions removes a "variable" symbol that
// shares its span with a "function" symbol already recorded for the
// same declarator: an arrow function or function expression assigned
// to a const matches both capture patterns.
func dropVariableDuplicatesOfFunctions(symbols []model.Symbol) []model.Symbol {
	funcSpans := make(map[[2]int]bool)
	for _, s := range symbols {
		if s.Kind == model.KindFunction {
			funcSpans[[2]int{s.LineStart, s.LineEnd}] = true
		}
	}
	out := symbols[:0]
	for _, s := range symbols {
		if s.Kind == model.KindVariable && funcSpans[[2]int{s.LineStart, s.LineEnd}] {
			continue
		}
		out = append(out, s)
	}
	return out
}

var jsBuiltins = map[string]bool{
	"console": true, "parseInt": true, "parseFloat": true, "isNaN": true,
	"setTimeout": true, "setInterval": true, "Array": true, "Object": true,
	"String": true, "Number": true, "Boolean": true, "Promise": true,
}

func isJSBuiltin(name string) bool { return jsBuiltins[name] }
