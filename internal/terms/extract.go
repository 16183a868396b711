package terms

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/docref/internal/frontmatter"
	"github.com/phobologic/docref/internal/model"
)

// maxContext bounds the stored context of a reference.
const maxContext = 160

// refPattern matches [[Name]] and [[Name|label]].
var refPattern = regexp.MustCompile(`\[\[([^\[\]|]+)(?:\|[^\[\]]*)?\]\]`)

// Extraction holds what Extract found in one document body.
type Extraction struct {
	Definitions []model.TermDefinition
	References  []model.TermReference
	// Problems are malformed term blocks; the rest of the document is still
	// extracted.
	Problems []error
}

// Extract finds term definitions and references in a markdown body. file is
// the document path recorded on every result and firstLine is the 1-based
// line number of the first body line within the document.
//
// Definitions are fenced code blocks with the info string "term" holding a
// YAML mapping. References are [[Name]] or [[Name|label]] outside other code
// fences; the definition text of a term block is scanned for references too.
func Extract(file, body string, firstLine int) Extraction {
	if firstLine < 1 {
		firstLine = 1
	}
	var ex Extraction

	var (
		fence     string // active fence marker, "" outside fences
		termBlock bool
		blockLine int
		block     []string
	)

	lines := strings.Split(body, "\n")
	for i, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		lineNo := firstLine + i
		trimmed := strings.TrimSpace(line)

		if fence == "" {
			if marker, info, ok := openFence(trimmed); ok {
				fence = marker
				termBlock = strings.EqualFold(info, "term")
				blockLine = lineNo
				block = block[:0]
				continue
			}
			ex.scanRefs(file, line, lineNo)
			continue
		}

		if closesFence(trimmed, fence) {
			if termBlock {
				ex.addBlock(file, blockLine, strings.Join(block, "\n"))
			}
			fence, termBlock = "", false
			continue
		}
		if termBlock {
			block = append(block, line)
			ex.scanRefs(file, line, lineNo)
		}
	}

	if fence != "" && termBlock {
		ex.Problems = append(ex.Problems, fmt.Errorf("%s:%d: unterminated term block", file, blockLine))
	}
	return ex
}

func openFence(trimmed string) (marker, info string, ok bool) {
	for _, ch := range []string{"`", "~"} {
		if !strings.HasPrefix(trimmed, ch+ch+ch) {
			continue
		}
		n := len(trimmed) - len(strings.TrimLeft(trimmed, ch))
		return trimmed[:n], strings.TrimSpace(trimmed[n:]), true
	}
	return "", "", false
}

func closesFence(trimmed, marker string) bool {
	return strings.HasPrefix(trimmed, marker) && strings.Trim(trimmed, marker[:1]) == ""
}

func (ex *Extraction) scanRefs(file, line string, lineNo int) {
	matches := refPattern.FindAllStringSubmatch(line, -1)
	if len(matches) == 0 {
		return
	}
	context := strings.TrimSpace(line)
	if len(context) > maxContext {
		cut := maxContext
		for cut > 0 && !utf8.RuneStart(context[cut]) {
			cut--
		}
		context = context[:cut]
	}
	for _, m := range matches {
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		ex.References = append(ex.References, model.TermReference{
			Term:    name,
			File:    file,
			Line:    lineNo,
			Context: context,
		})
	}
}

func (ex *Extraction) addBlock(file string, line int, content string) {
	var fields map[string]any
	if err := yaml.Unmarshal([]byte(content), &fields); err != nil {
		ex.Problems = append(ex.Problems, fmt.Errorf("%s:%d: malformed term block: %w", file, line, err))
		return
	}
	doc := &frontmatter.Document{Fields: fields}
	name := strings.TrimSpace(doc.String("term"))
	if name == "" {
		ex.Problems = append(ex.Problems, fmt.Errorf("%s:%d: term block has no term name", file, line))
		return
	}

	ex.Definitions = append(ex.Definitions, model.TermDefinition{
		Term:       name,
		File:       file,
		Line:       line,
		Scope:      model.Scope(strings.ToLower(strings.TrimSpace(doc.String("scope")))),
		Aliases:    doc.Strings("aliases"),
		Parent:     strings.TrimSpace(doc.String("parent")),
		Related:    doc.Strings("related"),
		Definition: strings.TrimSpace(doc.String("definition")),
	})
}
