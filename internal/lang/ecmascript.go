package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/phobologic/docref/internal/model"
)

func init() {
	Languages["javascript"] = &Language{
		Name:       "javascript",
		Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		lang:       javascript.GetLanguage(),
		Imports:    esImports,
		Exports:    esExports,
	}
	Languages["typescript"] = &Language{
		Name:       "typescript",
		Extensions: []string{".ts", ".mts", ".cts"},
		lang:       typescript.GetLanguage(),
		Imports:    esImports,
		Exports:    esExports,
	}
	Languages["tsx"] = &Language{
		Name:       "tsx",
		Extensions: []string{".tsx"},
		lang:       tsx.GetLanguage(),
		Imports:    esImports,
		Exports:    esExports,
	}
}

// esImports collects static imports, re-exports with a source, require()
// calls and dynamic import() calls.
func esImports(root *sitter.Node, source []byte) []model.Import {
	var imports []model.Import
	walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "import_statement", "export_statement":
			if src := n.ChildByFieldName("source"); src != nil {
				imports = append(imports, model.Import{Source: Unquote(NodeText(src, source)), Line: Line(n)})
			}
			return n.Type() == "export_statement"
		case "call_expression":
			fn := n.ChildByFieldName("function")
			if fn == nil {
				return true
			}
			if fn.Type() == "import" || (fn.Type() == "identifier" && NodeText(fn, source) == "require") {
				if args := n.ChildByFieldName("arguments"); args != nil {
					for _, arg := range namedChildren(args) {
						if arg.Type() == "string" {
							imports = append(imports, model.Import{Source: Unquote(NodeText(arg, source)), Line: Line(n)})
						}
						break
					}
				}
			}
		}
		return true
	})
	return imports
}

var esDeclarationKinds = map[string]string{
	"function_declaration":           "function",
	"generator_function_declaration": "function",
	"function_signature":             "function",
	"class_declaration":              "class",
	"abstract_class_declaration":     "class",
	"interface_declaration":          "interface",
	"type_alias_declaration":         "type",
	"enum_declaration":               "enum",
}

// esExports returns names introduced by top-level export statements.
func esExports(root *sitter.Node, source []byte) []model.Export {
	var exports []model.Export
	for _, stmt := range namedChildren(root) {
		if stmt.Type() != "export_statement" {
			continue
		}

		if decl := stmt.ChildByFieldName("declaration"); decl != nil {
			if kind, ok := esDeclarationKinds[decl.Type()]; ok {
				if name := decl.ChildByFieldName("name"); name != nil {
					exports = append(exports, model.Export{Name: NodeText(name, source), Kind: kind, Line: Line(name)})
				}
				continue
			}
			if decl.Type() == "lexical_declaration" || decl.Type() == "variable_declaration" {
				for _, d := range namedChildren(decl) {
					if d.Type() != "variable_declarator" {
						continue
					}
					if name := d.ChildByFieldName("name"); name != nil && name.Type() == "identifier" {
						exports = append(exports, model.Export{Name: NodeText(name, source), Kind: "variable", Line: Line(name)})
					}
				}
			}
			continue
		}

		isDefault := false
		for i := 0; i < int(stmt.ChildCount()); i++ {
			child := stmt.Child(i)
			switch child.Type() {
			case "default":
				isDefault = true
			case "export_clause":
				for _, spec := range namedChildren(child) {
					if spec.Type() != "export_specifier" {
						continue
					}
					name := spec.ChildByFieldName("alias")
					if name == nil {
						name = spec.ChildByFieldName("name")
					}
					if name != nil {
						exports = append(exports, model.Export{Name: Unquote(NodeText(name, source)), Kind: "binding", Line: Line(name)})
					}
				}
			}
		}
		if isDefault {
			exports = append(exports, model.Export{Name: "default", Kind: "default", Line: Line(stmt)})
		}
	}
	return exports
}
