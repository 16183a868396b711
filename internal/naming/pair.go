// Package naming parses and validates the identifier encoding of interface
// and shared-type documents.
package naming

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const (
	// PairSeparator joins the two feature codes of an interface id.
	PairSeparator = "--"
	// SharedSeparator joins the pair ids of a shared-type id.
	SharedSeparator = "_"
)

// ErrInvalidID is wrapped by every parse failure.
var ErrInvalidID = errors.New("invalid identifier")

var codePattern = regexp.MustCompile(`^\d{2}$`)

// Pair is a parsed interface id.
type Pair struct {
	A, B string
}

// String renders the pair as written, without normalizing it.
func (p Pair) String() string { return p.A + PairSeparator + p.B }

// Sorted reports whether the codes are in ascending order.
func (p Pair) Sorted() bool { return p.A < p.B }

// Normalized returns the pair with its codes in ascending order.
func (p Pair) Normalized() Pair {
	if p.B < p.A {
		return Pair{A: p.B, B: p.A}
	}
	return p
}

// ParsePair parses an "NN--NN" id without reordering it.
func ParsePair(id string) (Pair, error) {
	parts := strings.Split(strings.TrimSpace(id), PairSeparator)
	if len(parts) != 2 {
		return Pair{}, fmt.Errorf("%w: %q is not of the form NN--NN", ErrInvalidID, id)
	}
	for _, code := range parts {
		if !codePattern.MatchString(code) {
			return Pair{}, fmt.Errorf("%w: %q: feature code %q must be two digits", ErrInvalidID, id, code)
		}
	}
	if parts[0] == parts[1] {
		return Pair{}, fmt.Errorf("%w: %q pairs a feature with itself", ErrInvalidID, id)
	}
	return Pair{A: parts[0], B: parts[1]}, nil
}

// NormalizePair parses id and returns it with the codes in ascending order.
// It is idempotent and independent of the input order.
func NormalizePair(id string) (string, error) {
	p, err := ParsePair(id)
	if err != nil {
		return "", err
	}
	return p.Normalized().String(), nil
}

// SplitShared splits a shared-type id into its raw pair ids.
func SplitShared(id string) []string {
	return strings.Split(strings.TrimSpace(id), SharedSeparator)
}

// NormalizeShared normalizes every pair of a shared-type id and returns them
// sorted and deduplicated, joined by SharedSeparator.
func NormalizeShared(id string) (string, error) {
	seen := make(map[string]struct{})
	var pairs []string
	for _, raw := range SplitShared(id) {
		norm, err := NormalizePair(raw)
		if err != nil {
			return "", err
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		pairs = append(pairs, norm)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, SharedSeparator), nil
}

// IsShared reports whether id looks like a shared-type id.
func IsShared(id string) bool {
	return strings.Contains(id, SharedSeparator)
}
