// Package model defines core data structures for docref.
package model

import (
	"fmt"
	"strings"
	"time"
)

// CodeKind classifies a code file referenced from documentation.
type CodeKind string

const (
	Source CodeKind = "source"
	Test   CodeKind = "test"
	Config CodeKind = "config"
)

// Scope controls where a term may be referenced from.
type Scope string

const (
	GlobalScope   Scope = "global"
	DocumentScope Scope = "document"
)

// Feature is a feature document and its edges in the reference graph.
type Feature struct {
	ID                 string   `json:"id"`
	File               string   `json:"file"`
	CodeUses           []string `json:"code_uses"`
	CodeUsedBy         []string `json:"code_used_by"`
	RelatedFeatures    []string `json:"related_features"`
	DependsOn          []string `json:"depends_on"`
	UsedByFeatures     []string `json:"used_by_features"`
	DependedOnBy       []string `json:"depended_on_by"`
	InterfacesProvided []string `json:"interfaces_provided"`
	InterfacesUsed     []string `json:"interfaces_used"`
	TermsDefined       []string `json:"terms_defined"`
	TermsUsed          []string `json:"terms_used"`
	TestedBy           []string `json:"tested_by"`
}

// CodeFile is a source, test or config file referenced by at least one feature.
// Path is always root-relative and slash-separated.
type CodeFile struct {
	Path         string       `json:"path"`
	Kind         CodeKind     `json:"kind"`
	Exists       bool         `json:"exists"`
	DocumentedIn []string     `json:"documented_in"`
	Imports      []string     `json:"imports"`
	ImportedBy   []string     `json:"imported_by"`
	Exports      []string     `json:"exports"`
	ParseErrors  []ParseError `json:"parse_errors,omitempty"`
}

// Interface is an interface document (a normalized feature pair) or a
// shared-type document (a sorted sequence of pairs).
type Interface struct {
	ID          string   `json:"id"`
	File        string   `json:"file"`
	FromFeature string   `json:"from_feature"`
	ToFeature   string   `json:"to_feature"`
	Kind        string   `json:"kind"`
	Status      string   `json:"status,omitempty"`
	SharedTypes []string `json:"shared_types"`
	Interfaces  []string `json:"interfaces,omitempty"`
}

// TermDefinition is the single canonical definition of a glossary term.
type TermDefinition struct {
	Term       string   `json:"term"`
	File       string   `json:"file"`
	Line       int      `json:"line"`
	Scope      Scope    `json:"scope"`
	Aliases    []string `json:"aliases,omitempty"`
	Parent     string   `json:"parent,omitempty"`
	Related    []string `json:"related,omitempty"`
	Definition string   `json:"definition"`
}

// TermReference is one usage of a term (or one of its aliases) in a document.
type TermReference struct {
	Term    string `json:"term"`
	File    string `json:"file"`
	Line    int    `json:"line"`
	Context string `json:"context"`
}

// TermLocation is the persisted position of a term definition.
type TermLocation struct {
	File  string `json:"file"`
	Line  int    `json:"line"`
	Scope Scope  `json:"scope"`
}

// TermEntry is a term as persisted in the reference index.
type TermEntry struct {
	Definition TermLocation    `json:"definition"`
	Aliases    []string        `json:"aliases,omitempty"`
	Parent     string          `json:"parent,omitempty"`
	Related    []string        `json:"related,omitempty"`
	References []TermReference `json:"references"`
	UsageCount int             `json:"usage_count"`
}

// Index is the complete reference graph, ready for serialization.
type Index struct {
	Version    string                `json:"version"`
	Generated  time.Time             `json:"generated"`
	Features   map[string]*Feature   `json:"features"`
	Code       map[string]*CodeFile  `json:"code"`
	Interfaces map[string]*Interface `json:"interfaces"`
	Terms      map[string]*TermEntry `json:"terms"`
}

// NewIndex returns an empty index with all maps allocated.
func NewIndex(version string) *Index {
	return &Index{
		Version:    version,
		Features:   make(map[string]*Feature),
		Code:       make(map[string]*CodeFile),
		Interfaces: make(map[string]*Interface),
		Terms:      make(map[string]*TermEntry),
	}
}

// Feature returns the feature with the given id, or nil.
func (x *Index) Feature(id string) *Feature {
	return x.Features[id]
}

// Term looks up a term by name or alias, case-insensitively, and returns its
// canonical name and entry.
func (x *Index) Term(name string) (string, *TermEntry) {
	if e, ok := x.Terms[name]; ok {
		return name, e
	}
	want := strings.ToLower(strings.Join(strings.Fields(name), " "))
	for term, e := range x.Terms {
		if strings.ToLower(term) == want {
			return term, e
		}
		for _, alias := range e.Aliases {
			if strings.ToLower(strings.Join(strings.Fields(alias), " ")) == want {
				return term, e
			}
		}
	}
	return "", nil
}

// Import is a single import statement found in a source file.
type Import struct {
	Source string `json:"source"`
	Line   int    `json:"line"`
}

// Export is an exported top-level symbol.
type Export struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Line int    `json:"line"`
}

// ParseError is a recoverable problem found while parsing a source file.
type ParseError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// ParseResult is what the source parser extracts from one file.
type ParseResult struct {
	Imports []Import
	Exports []Export
	Errors  []ParseError
}

// Severity distinguishes validation errors from warnings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is a single validation finding.
type Issue struct {
	Severity   Severity `json:"severity"`
	Code       string   `json:"code"`
	File       string   `json:"file,omitempty"`
	Line       int      `json:"line,omitempty"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Location formats the issue position as file[:line].
func (i Issue) Location() string {
	if i.Line > 0 {
		return fmt.Sprintf("%s:%d", i.File, i.Line)
	}
	return i.File
}

// Issues accumulates errors and warnings for a validation run.
type Issues struct {
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Add files the issue under errors or warnings by its severity.
func (is *Issues) Add(issue Issue) {
	if issue.Severity == SeverityError {
		is.Errors = append(is.Errors, issue)
		return
	}
	is.Warnings = append(is.Warnings, issue)
}

// Errorf records an error-level issue.
func (is *Issues) Errorf(code, file string, line int, format string, args ...any) *Issue {
	is.Errors = append(is.Errors, Issue{
		Severity: SeverityError,
		Code:     code,
		File:     file,
		Line:     line,
		Message:  fmt.Sprintf(format, args...),
	})
	return &is.Errors[len(is.Errors)-1]
}

// Warnf records a warning-level issue.
func (is *Issues) Warnf(code, file string, line int, format string, args ...any) *Issue {
	is.Warnings = append(is.Warnings, Issue{
		Severity: SeverityWarning,
		Code:     code,
		File:     file,
		Line:     line,
		Message:  fmt.Sprintf(format, args...),
	})
	return &is.Warnings[len(is.Warnings)-1]
}

// Success reports whether no error-level issue was recorded.
func (is *Issues) Success() bool {
	return len(is.Errors) == 0
}
