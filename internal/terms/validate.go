package terms

import (
	"fmt"
	"sort"
	"strings"

	"github.com/phobologic/docref/internal/model"
)

// Issue codes reported by Validate.
const (
	CodeUndefined      = "undefined-term"
	CodeScopeViolation = "scope-violation"
	CodeUnused         = "unused-term"
	CodeIsolated       = "isolated-term"
	CodeCircular       = "circular-reference"
	CodeDuplicate      = "duplicate-term"
)

// CodeConflict marks a second definition of an already-defined name, which
// AddDefinition rejects with a *ConflictError.
const CodeConflict = "term-conflict"

// Stats summarizes one validation run.
type Stats struct {
	TotalDefinitions    int `json:"total_definitions"`
	GlobalDefinitions   int `json:"global_definitions"`
	DocumentDefinitions int `json:"document_definitions"`
	TotalReferences     int `json:"total_references"`
	UniqueReferences    int `json:"unique_references"`
	UndefinedTerms      int `json:"undefined_terms"`
	UnusedTerms         int `json:"unused_terms"`
	IsolatedTerms       int `json:"isolated_terms"`
}

// Report is the outcome of Registry.Validate.
type Report struct {
	Success bool `json:"success"`
	model.Issues
	Stats Stats `json:"stats"`
}

// Usage groups the references that resolve to a definition by the
// definition's term name. Unresolved references are dropped.
func (r *Registry) Usage() map[string][]model.TermReference {
	usage := make(map[string][]model.TermReference)
	for _, ref := range r.references {
		if def := r.Find(ref.Term); def != nil {
			usage[def.Term] = append(usage[def.Term], ref)
		}
	}
	return usage
}

// Validate checks definitional integrity across every definition and
// reference recorded so far.
func (r *Registry) Validate() Report {
	var rep Report
	keys := r.sortedKeys()

	for _, k := range keys {
		rep.Stats.TotalDefinitions++
		if r.definitions[k].Scope == model.DocumentScope {
			rep.Stats.DocumentDefinitions++
		} else {
			rep.Stats.GlobalDefinitions++
		}
	}

	usage := make(map[string]int)
	unique := make(map[string]struct{})
	undefined := make(map[string]struct{})
	for _, ref := range r.references {
		rep.Stats.TotalReferences++
		unique[Key(ref.Term)] = struct{}{}

		def := r.Find(ref.Term)
		if def == nil {
			undefined[Key(ref.Term)] = struct{}{}
			issue := rep.Errorf(CodeUndefined, ref.File, ref.Line, "term %q is not defined", ref.Term)
			issue.Suggestion = "add a term block defining it or fix the spelling"
			continue
		}
		usage[Key(def.Term)]++
		if def.Scope == model.DocumentScope && ref.File != def.File {
			issue := rep.Errorf(CodeScopeViolation, ref.File, ref.Line,
				"term %q is document-scoped to %s but referenced from %s", def.Term, def.File, ref.File)
			issue.Suggestion = fmt.Sprintf("make %q global or move the reference into %s", def.Term, def.File)
		}
	}
	rep.Stats.UniqueReferences = len(unique)
	rep.Stats.UndefinedTerms = len(undefined)

	for _, k := range keys {
		def := r.definitions[k]
		if usage[k] == 0 {
			rep.Stats.UnusedTerms++
			rep.Warnf(CodeUnused, def.File, def.Line, "term %q is defined but never referenced", def.Term)
		}
		if def.Parent == "" && len(def.Related) == 0 {
			rep.Stats.IsolatedTerms++
			issue := rep.Warnf(CodeIsolated, def.File, def.Line,
				"term %q has no parent or related terms (%d references)", def.Term, usage[k])
			issue.Suggestion = "link it to a parent or related term"
		}
	}

	for _, cycle := range r.cycles() {
		first := r.definitions[cycle[0]]
		names := make([]string, len(cycle))
		for i, k := range cycle {
			names[i] = r.definitions[k].Term
		}
		rep.Warnf(CodeCircular, first.File, first.Line, "circular reference: %s", strings.Join(names, " -> "))
	}

	r.duplicates(keys, &rep)

	rep.Success = rep.Issues.Success()
	return rep
}

// edges returns the resolved parent and related targets of a definition,
// deduplicated, in declaration order.
func (r *Registry) edges(key string) []string {
	def := r.definitions[key]
	targets := make([]string, 0, len(def.Related)+1)
	if def.Parent != "" {
		targets = append(targets, def.Parent)
	}
	targets = append(targets, def.Related...)

	seen := make(map[string]struct{}, len(targets))
	var out []string
	for _, name := range targets {
		canonical, ok := r.names[Key(name)]
		if !ok {
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	return out
}

// cycles finds every cycle reachable through parent and related links. Each
// cycle is a path of canonical keys starting and ending at the first
// repeated node.
func (r *Registry) cycles() [][]string {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(r.definitions))
	var stack []string
	var found [][]string
	seen := make(map[string]struct{})

	var visit func(k string)
	visit = func(k string) {
		state[k] = visiting
		stack = append(stack, k)
		for _, next := range r.edges(k) {
			switch state[next] {
			case unvisited:
				visit(next)
			case visiting:
				start := len(stack) - 1
				for stack[start] != next {
					start--
				}
				cycle := append(append([]string(nil), stack[start:]...), next)
				id := cycleID(cycle)
				if _, dup := seen[id]; !dup {
					seen[id] = struct{}{}
					found = append(found, cycle)
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[k] = done
	}

	for _, k := range r.sortedKeys() {
		if state[k] == unvisited {
			visit(k)
		}
	}
	return found
}

// cycleID identifies a cycle independent of where it was entered.
func cycleID(cycle []string) string {
	nodes := cycle[:len(cycle)-1]
	lo := 0
	for i := range nodes {
		if nodes[i] < nodes[lo] {
			lo = i
		}
	}
	rotated := append(append([]string(nil), nodes[lo:]...), nodes[:lo]...)
	return strings.Join(rotated, "\x00")
}

func (r *Registry) duplicates(keys []string, rep *Report) {
	type pair struct {
		a, b  string
		score float64
	}
	var hits []pair
	for i := 0; i < len(keys); i++ {
		a := r.definitions[keys[i]]
		if strings.TrimSpace(a.Definition) == "" {
			continue
		}
		for j := i + 1; j < len(keys); j++ {
			b := r.definitions[keys[j]]
			if strings.TrimSpace(b.Definition) == "" {
				continue
			}
			score := r.similarity(a.Definition, b.Definition)
			if score < r.threshold || r.mutuallyRelated(keys[i], keys[j]) {
				continue
			}
			hits = append(hits, pair{keys[i], keys[j], score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	for _, h := range hits {
		a, b := r.definitions[h.a], r.definitions[h.b]
		issue := rep.Warnf(CodeDuplicate, b.File, b.Line,
			"term %q is %.0f%% similar to %q (%s:%d)", b.Term, h.score*100, a.Term, a.File, a.Line)
		issue.Suggestion = "merge the definitions or list each term in the other's related terms"
	}
}

func (r *Registry) mutuallyRelated(a, b string) bool {
	return r.lists(a, b) && r.lists(b, a)
}

func (r *Registry) lists(from, to string) bool {
	for _, name := range r.definitions[from].Related {
		if r.names[Key(name)] == to {
			return true
		}
	}
	return false
}
