// Package terms stores glossary term definitions and references and validates
// their definitional integrity.
package terms

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/phobologic/docref/internal/model"
)

// ErrDuplicateTerm is wrapped by every *ConflictError.
var ErrDuplicateTerm = errors.New("duplicate term definition")

// ErrInvalidDefinition is returned for definitions that cannot be registered.
var ErrInvalidDefinition = errors.New("invalid term definition")

// ConflictError reports a second definition for an already-defined name.
type ConflictError struct {
	Name      string
	Existing  model.TermDefinition
	Duplicate model.TermDefinition
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("term %q defined at %s:%d conflicts with %q at %s:%d",
		e.Name, e.Duplicate.File, e.Duplicate.Line,
		e.Existing.Term, e.Existing.File, e.Existing.Line)
}

func (e *ConflictError) Unwrap() error { return ErrDuplicateTerm }

// Registry owns the definitions and references of one validation batch.
// It is not safe for concurrent use.
type Registry struct {
	definitions map[string]*model.TermDefinition // canonical key -> definition
	names       map[string]string                // key of a name or alias -> canonical key
	references  []model.TermReference
	similarity  SimilarityFunc
	threshold   float64
}

// Option configures a Registry.
type Option func(*Registry)

// WithSimilarity replaces the duplicate-detection scoring function and threshold.
func WithSimilarity(fn SimilarityFunc, threshold float64) Option {
	return func(r *Registry) {
		if fn != nil {
			r.similarity = fn
		}
		if threshold > 0 {
			r.threshold = threshold
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		definitions: make(map[string]*model.TermDefinition),
		names:       make(map[string]string),
		similarity:  TokenOverlap,
		threshold:   DefaultSimilarityThreshold,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Key normalizes a term name for lookup: case-insensitive with collapsed
// whitespace.
func Key(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// AddDefinition registers def. Any second definition of a name, or an alias
// that collides with an existing name or alias, is a *ConflictError.
func (r *Registry) AddDefinition(def model.TermDefinition) error {
	key := Key(def.Term)
	if key == "" {
		return fmt.Errorf("%w: empty term name at %s:%d", ErrInvalidDefinition, def.File, def.Line)
	}
	switch def.Scope {
	case "":
		def.Scope = model.GlobalScope
	case model.GlobalScope, model.DocumentScope:
	default:
		return fmt.Errorf("%w: term %q at %s:%d has unknown scope %q", ErrInvalidDefinition, def.Term, def.File, def.Line, def.Scope)
	}

	if err := r.conflict(key, def.Term, def); err != nil {
		return err
	}
	var aliasKeys []string
	for _, alias := range def.Aliases {
		ak := Key(alias)
		if ak == "" || ak == key {
			continue
		}
		if err := r.conflict(ak, alias, def); err != nil {
			return err
		}
		aliasKeys = append(aliasKeys, ak)
	}

	stored := def
	r.definitions[key] = &stored
	r.names[key] = key
	for _, ak := range aliasKeys {
		r.names[ak] = key
	}
	return nil
}

func (r *Registry) conflict(key, name string, def model.TermDefinition) error {
	canonical, ok := r.names[key]
	if !ok {
		return nil
	}
	return &ConflictError{Name: name, Existing: *r.definitions[canonical], Duplicate: def}
}

// AddReference records a usage. It never fails.
func (r *Registry) AddReference(ref model.TermReference) {
	r.references = append(r.references, ref)
}

// Find resolves a name or alias to its definition, or nil.
func (r *Registry) Find(name string) *model.TermDefinition {
	canonical, ok := r.names[Key(name)]
	if !ok {
		return nil
	}
	return r.definitions[canonical]
}

// Definitions returns all definitions sorted by canonical name.
func (r *Registry) Definitions() []model.TermDefinition {
	keys := r.sortedKeys()
	out := make([]model.TermDefinition, 0, len(keys))
	for _, k := range keys {
		out = append(out, *r.definitions[k])
	}
	return out
}

// References returns all recorded references in insertion order.
func (r *Registry) References() []model.TermReference {
	return append([]model.TermReference(nil), r.references...)
}

func (r *Registry) sortedKeys() []string {
	keys := make([]string, 0, len(r.definitions))
	for k := range r.definitions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
