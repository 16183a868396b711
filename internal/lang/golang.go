package lang

import (
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/phobologic/docref/internal/model"
)

func init() {
	Languages["go"] = &Language{
		Name:       "go",
		Extensions: []string{".go"},
		lang:       golang.GetLanguage(),
		Imports:    goImports,
		Exports:    goExports,
	}
}

// goImports collects every import_spec path, including grouped imports.
func goImports(root *sitter.Node, source []byte) []model.Import {
	var imports []model.Import
	walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "import_spec":
			if p := fieldText(n, "path", source); p != "" {
				imports = append(imports, model.Import{Source: Unquote(p), Line: Line(n)})
			}
			return false
		case "source_file", "import_declaration", "import_spec_list":
			return true
		}
		return false
	})
	return imports
}

// goExports returns capitalized top-level functions, methods, types, consts and vars.
func goExports(root *sitter.Node, source []byte) []model.Export {
	var exports []model.Export
	add := func(name *sitter.Node, kind string) {
		if name == nil {
			return
		}
		text := NodeText(name, source)
		if isExportedGo(text) {
			exports = append(exports, model.Export{Name: text, Kind: kind, Line: Line(name)})
		}
	}

	for _, decl := range namedChildren(root) {
		switch decl.Type() {
		case "function_declaration":
			add(decl.ChildByFieldName("name"), "function")
		case "method_declaration":
			add(decl.ChildByFieldName("name"), "method")
		case "type_declaration":
			for _, spec := range namedChildren(decl) {
				if spec.Type() == "type_spec" || spec.Type() == "type_alias" {
					add(spec.ChildByFieldName("name"), "type")
				}
			}
		case "const_declaration", "var_declaration":
			kind := "const"
			if decl.Type() == "var_declaration" {
				kind = "var"
			}
			walk(decl, func(n *sitter.Node) bool {
				if n.Type() == "const_spec" || n.Type() == "var_spec" {
					for _, c := range namedChildren(n) {
						if c.Type() == "identifier" {
							add(c, kind)
						}
					}
					return false
				}
				return true
			})
		}
	}
	return exports
}

func isExportedGo(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}
