// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/phobologic/docref/internal/graph"
	"github.com/phobologic/docref/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Doc accumulates top-level TOON sections in order.
type Doc struct {
	parts []string
}

// New returns an empty document.
func New() *Doc {
	return &Doc{}
}

// Field appends a "key: value" line. Floats are written with four decimals
// and times in RFC 3339.
func (d *Doc) Field(key string, value any) *Doc {
	d.parts = append(d.parts, fmt.Sprintf("%s: %s", key, format(value)))
	return d
}

// List appends an inline primitive array, "key[N]: a,b,c".
func (d *Doc) List(key string, values []string) *Doc {
	encoded := make([]string, len(values))
	for i, v := range values {
		encoded[i] = encodeValue(v)
	}
	line := fmt.Sprintf("%s[%d]:", key, len(values))
	if len(values) > 0 {
		line += " " + strings.Join(encoded, ",")
	}
	d.parts = append(d.parts, line)
	return d
}

// Table appends a tabular array with one row per entry.
func (d *Doc) Table(name string, columns []string, rows [][]string) *Doc {
	d.parts = append(d.parts, formatTabular(name, columns, rows))
	return d
}

// Issues appends the errors and warnings tables.
func (d *Doc) Issues(is model.Issues) *Doc {
	columns := []string{"code", "location", "message", "suggestion"}
	d.Table("errors", columns, issueRows(is.Errors))
	d.Table("warnings", columns, issueRows(is.Warnings))
	return d
}

// Graph appends the nodes and edges tables of a ranked graph.
func (d *Doc) Graph(g *graph.Graph) *Doc {
	var nodeRows [][]string
	for i := range g.Nodes {
		n := &g.Nodes[i]
		nodeRows = append(nodeRows, []string{
			string(n.Kind),
			n.ID,
			fmt.Sprintf("%.4f", n.Rank),
			strconv.Itoa(n.In),
			strconv.Itoa(n.Out),
		})
	}
	d.Table("nodes", []string{"kind", "id", "rank", "in", "out"}, nodeRows)

	var edgeRows [][]string
	for i := range g.Edges {
		e := &g.Edges[i]
		edgeRows = append(edgeRows, []string{e.Source, e.Target, strings.Join(e.Kinds, " ")})
	}
	d.Table("edges", []string{"source", "target", "kinds"}, edgeRows)
	return d
}

// String renders the document.
func (d *Doc) String() string {
	return strings.Join(d.parts, "\n")
}

func issueRows(issues []model.Issue) [][]string {
	var rows [][]string
	for i := range issues {
		is := &issues[i]
		rows = append(rows, []string{is.Code, is.Location(), is.Message, is.Suggestion})
	}
	return rows
}

func format(value any) string {
	switch v := value.(type) {
	case string:
		return encodeValue(v)
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return fmt.Sprintf("%.4f", v)
	case time.Time:
		return encodeValue(v.UTC().Format(time.RFC3339))
	case time.Duration:
		return encodeValue(v.String())
	case fmt.Stringer:
		return encodeValue(v.String())
	default:
		return encodeValue(fmt.Sprint(v))
	}
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
