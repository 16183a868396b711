package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/phobologic/docref/internal/model"
)

func init() {
	Languages["python"] = &Language{
		Name:       "python",
		Extensions: []string{".py"},
		lang:       python.GetLanguage(),
		Imports:    pythonImports,
		Exports:    pythonExports,
	}
}

// pythonImports handles `import a.b`, `import a as b` and `from x import y`,
// at any nesting level (conditional and function-local imports count).
func pythonImports(root *sitter.Node, source []byte) []model.Import {
	var imports []model.Import
	walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "import_statement":
			for _, c := range namedChildren(n) {
				name := c
				if c.Type() == "aliased_import" {
					name = c.ChildByFieldName("name")
				}
				if name != nil && name.Type() == "dotted_name" {
					imports = append(imports, model.Import{Source: NodeText(name, source), Line: Line(n)})
				}
			}
			return false
		case "import_from_statement":
			if mod := fieldText(n, "module_name", source); mod != "" {
				imports = append(imports, model.Import{Source: mod, Line: Line(n)})
			}
			return false
		}
		return true
	})
	return imports
}

// pythonExports returns public top-level classes and functions.
func pythonExports(root *sitter.Node, source []byte) []model.Export {
	var exports []model.Export
	for _, stmt := range namedChildren(root) {
		def := stmt
		if def.Type() == "decorated_definition" {
			def = def.ChildByFieldName("definition")
			if def == nil {
				continue
			}
		}

		var kind string
		switch def.Type() {
		case "function_definition":
			kind = "function"
		case "class_definition":
			kind = "class"
		default:
			continue
		}

		name := def.ChildByFieldName("name")
		if name == nil {
			continue
		}
		text := NodeText(name, source)
		if strings.HasPrefix(text, "_") {
			continue
		}
		exports = append(exports, model.Export{Name: text, Kind: kind, Line: Line(name)})
	}
	return exports
}
