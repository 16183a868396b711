// Package frontmatter splits markdown documents into YAML frontmatter and body.
package frontmatter

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// ErrUnterminated is returned when a document opens a frontmatter block but
// never closes it.
var ErrUnterminated = errors.New("no closing frontmatter delimiter")

// Document is a parsed markdown document.
type Document struct {
	// Fields holds the decoded frontmatter. Values are scalars, []any or
	// map[string]any as produced by yaml.v3.
	Fields map[string]any

	// Body is everything after the closing delimiter.
	Body string

	// BodyLine is the 1-based line number of the first body line in the
	// original text.
	BodyLine int
}

// Extract parses YAML frontmatter from markdown content. Content without a
// leading "---" line has empty fields and the whole text as body.
func Extract(content string) (*Document, error) {
	doc := &Document{Fields: map[string]any{}, Body: content, BodyLine: 1}

	if !strings.HasPrefix(content, delimiter+"\n") && !strings.HasPrefix(content, delimiter+"\r\n") {
		return doc, nil
	}

	start := len(delimiter)
	if content[start] == '\r' {
		start++
	}
	start++ // newline

	rest := content[start:]
	var closeIdx int
	switch {
	case strings.HasPrefix(rest, delimiter):
		closeIdx = 0
	default:
		idx := strings.Index(rest, "\n"+delimiter)
		if idx == -1 {
			return nil, ErrUnterminated
		}
		closeIdx = idx + 1
	}

	yamlContent := rest[:closeIdx]
	after := rest[closeIdx+len(delimiter):]
	// Drop the remainder of the closing delimiter line.
	if nl := strings.IndexByte(after, '\n'); nl >= 0 {
		after = after[nl+1:]
	} else {
		after = ""
	}

	var fields map[string]any
	if err := yaml.Unmarshal([]byte(yamlContent), &fields); err != nil {
		return nil, fmt.Errorf("parse YAML frontmatter: %w", err)
	}
	if fields != nil {
		doc.Fields = fields
	}

	doc.Body = after
	doc.BodyLine = 1 + strings.Count(content[:len(content)-len(after)], "\n")
	return doc, nil
}

// String returns a scalar field as a string, or "" when absent.
func (d *Document) String(key string) string {
	return scalar(d.Fields[key])
}

// Has reports whether key is present in the frontmatter.
func (d *Document) Has(key string) bool {
	_, ok := d.Fields[key]
	return ok
}

// Strings returns a field as a list of strings. A scalar value becomes a
// one-element list; empty entries are dropped.
func (d *Document) Strings(key string) []string {
	return List(d.Fields[key])
}

// Map returns a nested object field, or nil when absent or not an object.
func (d *Document) Map(key string) map[string]any {
	m, _ := d.Fields[key].(map[string]any)
	return m
}

// List converts a decoded YAML value into a list of strings.
func List(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := scalar(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		if s := scalar(val); s != "" {
			return []string{s}
		}
		return nil
	}
}

// Keys returns the frontmatter keys in sorted order.
func (d *Document) Keys() []string {
	keys := make([]string, 0, len(d.Fields))
	for k := range d.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func scalar(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case map[string]any, []any:
		return ""
	default:
		return fmt.Sprint(val)
	}
}
