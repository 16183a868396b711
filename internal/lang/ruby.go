package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/ruby"

	"github.com/phobologic/docref/internal/model"
)

func init() {
	Languages["ruby"] = &Language{
		Name:       "ruby",
		Extensions: []string{".rb"},
		lang:       ruby.GetLanguage(),
		Imports:    rubyImports,
		Exports:    rubyExports,
	}
}

var rubyRequireMethods = map[string]struct{}{
	"require":          {},
	"require_relative": {},
	"load":             {},
	"autoload":         {},
}

// rubyImports returns the string argument of require-like calls.
func rubyImports(root *sitter.Node, source []byte) []model.Import {
	var imports []model.Import
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "call" {
			return true
		}
		if _, ok := rubyRequireMethods[fieldText(n, "method", source)]; !ok {
			return true
		}
		args := n.ChildByFieldName("arguments")
		if args == nil {
			return false
		}
		for _, arg := range namedChildren(args) {
			if arg.Type() == "string" {
				imports = append(imports, model.Import{Source: Unquote(NodeText(arg, source)), Line: Line(n)})
				break
			}
		}
		return false
	})
	return imports
}

// rubyExports returns top-level classes, modules and methods.
func rubyExports(root *sitter.Node, source []byte) []model.Export {
	var exports []model.Export
	for _, stmt := range namedChildren(root) {
		var kind string
		switch stmt.Type() {
		case "class":
			kind = "class"
		case "module":
			kind = "module"
		case "method":
			kind = "function"
		default:
			continue
		}
		if name := stmt.ChildByFieldName("name"); name != nil {
			exports = append(exports, model.Export{Name: NodeText(name, source), Kind: kind, Line: Line(name)})
		}
	}
	return exports
}
