// Package parse extracts imports, exports and recoverable syntax errors from
// source files using tree-sitter.
package parse

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/docref/internal/lang"
	"github.com/phobologic/docref/internal/model"
)

// Error codes attached to model.ParseError.
const (
	CodeUnsupported = "unsupported-language"
	CodeSyntax      = "syntax-error"
	CodeMissing     = "missing-node"
	CodeFailed      = "parse-failed"
	CodeTooLarge    = "skipped-large-file"
)

// maxReportedErrors caps syntax errors recorded per file.
const maxReportedErrors = 20

// Parser parses source files. It keeps one tree-sitter parser per language
// and caches results by content hash. A Parser is not safe for concurrent use.
type Parser struct {
	parsers map[string]*sitter.Parser
	cache   *lru.Cache[string, model.ParseResult]
}

// New creates a Parser whose cache holds up to cacheSize results.
// A cacheSize of zero disables caching.
func New(cacheSize int) *Parser {
	p := &Parser{parsers: make(map[string]*sitter.Parser)}
	if cacheSize > 0 {
		c, err := lru.New[string, model.ParseResult](cacheSize)
		if err == nil {
			p.cache = c
		}
	}
	return p
}

// Supported reports whether a grammar is registered for the file's extension.
func Supported(path string) bool {
	return lang.ForPath(path) != nil
}

// Parse extracts imports and exports from content. It never fails: problems
// are reported in the result's Errors and whatever could be extracted is kept.
// path is used only to select the language.
func (p *Parser) Parse(content []byte, path string) (result model.ParseResult) {
	l := lang.ForPath(path)
	if l == nil {
		return model.ParseResult{Errors: []model.ParseError{{
			Message: fmt.Sprintf("no grammar for %s", path),
			Code:    CodeUnsupported,
		}}}
	}

	key := cacheKey(l.Name, content)
	if p.cache != nil {
		if cached, ok := p.cache.Get(key); ok {
			return cached
		}
	}

	defer func() {
		if r := recover(); r != nil {
			result = model.ParseResult{Errors: []model.ParseError{{
				Message: fmt.Sprintf("parser panic: %v", r),
				Code:    CodeFailed,
			}}}
		}
	}()

	result = p.parse(l, content)
	if p.cache != nil {
		p.cache.Add(key, result)
	}
	return result
}

func (p *Parser) parse(l *lang.Language, content []byte) model.ParseResult {
	if len(content) == 0 {
		return model.ParseResult{}
	}

	parser, ok := p.parsers[l.Name]
	if !ok {
		parser = l.NewParser()
		p.parsers[l.Name] = parser
	}

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return model.ParseResult{Errors: []model.ParseError{{
			Message: err.Error(),
			Code:    CodeFailed,
		}}}
	}
	defer tree.Close()

	root := tree.RootNode()
	result := model.ParseResult{
		Imports: l.Imports(root, content),
		Exports: l.Exports(root, content),
	}
	if root.HasError() {
		result.Errors = collectErrors(root)
	}
	return result
}

// collectErrors walks the tree for ERROR and MISSING nodes.
func collectErrors(root *sitter.Node) []model.ParseError {
	var errs []model.ParseError
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if len(errs) >= maxReportedErrors || !n.HasError() && !n.IsMissing() {
			return
		}
		switch {
		case n.IsMissing():
			line := int(n.StartPoint().Row) + 1
			errs = append(errs, model.ParseError{
				Message: fmt.Sprintf("missing %s at line %d", n.Type(), line),
				Code:    CodeMissing,
				Line:    line,
			})
			return
		case n.IsError():
			line := int(n.StartPoint().Row) + 1
			errs = append(errs, model.ParseError{
				Message: fmt.Sprintf("syntax error at line %d", line),
				Code:    CodeSyntax,
				Line:    line,
			})
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			visit(n.Child(i))
		}
	}
	visit(root)
	return errs
}

func cacheKey(language string, content []byte) string {
	sum := sha256.Sum256(content)
	return language + ":" + hex.EncodeToString(sum[:])
}
