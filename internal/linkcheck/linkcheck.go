// Package linkcheck validates provide/use symmetry between features and the
// sibling coverage of namespaced interfaces.
package linkcheck

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/phobologic/docref/internal/model"
)

// Issue codes reported by Validate.
const (
	CodeMissingProvider    = "missing-provider"
	CodeUnusedInterface    = "unused-interface"
	CodeIncompleteCoverage = "incomplete-coverage"
)

// Filters restrict which part of the graph is reported. The checks always
// see the whole graph.
type Filters struct {
	// Feature limits results to interfaces the feature provides or uses.
	Feature string
	// Namespace limits results to ids equal to or nested under it.
	Namespace string
}

// Link is an interface id with the features on its one populated side.
type Link struct {
	Interface string   `json:"interface"`
	Features  []string `json:"features"`
}

// Bidirectional holds the provide/use symmetry findings. The two lists never
// share an interface id.
type Bidirectional struct {
	// MissingProviders are used interfaces no feature provides.
	MissingProviders []Link `json:"missing_providers"`
	// UnusedInterfaces are provided interfaces no feature uses.
	UnusedInterfaces []Link `json:"unused_interfaces"`
}

// Coverage is a feature that provides only part of a namespace.
type Coverage struct {
	Feature   string   `json:"feature"`
	Namespace string   `json:"namespace"`
	Provided  []string `json:"provided"`
	Missing   []string `json:"missing"`
}

// Summary counts the findings.
type Summary struct {
	FeaturesChecked    int `json:"features_checked"`
	InterfacesChecked  int `json:"interfaces_checked"`
	MissingProviders   int `json:"missing_providers"`
	UnusedInterfaces   int `json:"unused_interfaces"`
	IncompleteCoverage int `json:"incomplete_coverage"`
}

// Report is the outcome of Validate. The embedded Issues carries every
// finding for rendering.
type Report struct {
	Success            bool          `json:"success"`
	Bidirectional      Bidirectional `json:"bidirectional"`
	IncompleteCoverage []Coverage    `json:"incomplete_coverage"`
	Summary            Summary       `json:"summary"`
	model.Issues
}

// Namespace returns the parent namespace of an interface id, or "" for ids
// without one.
func Namespace(id string) string {
	if !strings.Contains(id, "/") {
		return ""
	}
	return path.Dir(id)
}

func (f Filters) feature(id string) bool {
	return f.Feature == "" || f.Feature == id
}

func (f Filters) id(id string) bool {
	return f.Namespace == "" || id == f.Namespace || strings.HasPrefix(id, strings.TrimSuffix(f.Namespace, "/")+"/")
}

// Validate checks the interface links of idx.
func Validate(idx *model.Index, filters Filters) *Report {
	rep := &Report{
		Bidirectional: Bidirectional{
			MissingProviders: []Link{},
			UnusedInterfaces: []Link{},
		},
		IncompleteCoverage: []Coverage{},
	}

	providers := make(map[string][]string)
	users := make(map[string][]string)
	featureIDs := make([]string, 0, len(idx.Features))
	for id := range idx.Features {
		featureIDs = append(featureIDs, id)
	}
	sort.Strings(featureIDs)
	for _, fid := range featureIDs {
		f := idx.Features[fid]
		for _, iid := range f.InterfacesProvided {
			providers[iid] = append(providers[iid], fid)
		}
		for _, iid := range f.InterfacesUsed {
			users[iid] = append(users[iid], fid)
		}
	}

	// selected reports whether an interface id passes the filters.
	selected := func(iid string) bool {
		if !filters.id(iid) {
			return false
		}
		if filters.Feature == "" {
			return true
		}
		return contains(providers[iid], filters.Feature) || contains(users[iid], filters.Feature)
	}

	checked := make(map[string]struct{})
	for _, iid := range sortedKeys(users) {
		if !selected(iid) {
			continue
		}
		checked[iid] = struct{}{}
		if _, ok := providers[iid]; ok {
			continue
		}
		first := idx.Features[users[iid][0]]
		rep.Bidirectional.MissingProviders = append(rep.Bidirectional.MissingProviders, Link{Interface: iid, Features: users[iid]})
		rep.Add(model.Issue{
			Severity:   model.SeverityError,
			Code:       CodeMissingProvider,
			File:       first.File,
			Message:    fmt.Sprintf("interface %s is used by %s but no feature provides it", iid, strings.Join(users[iid], ", ")),
			Suggestion: fmt.Sprintf("add %s to a feature's provided interfaces or remove the use", iid),
		})
	}
	for _, iid := range sortedKeys(providers) {
		if !selected(iid) {
			continue
		}
		checked[iid] = struct{}{}
		if _, ok := users[iid]; ok {
			continue
		}
		first := idx.Features[providers[iid][0]]
		rep.Bidirectional.UnusedInterfaces = append(rep.Bidirectional.UnusedInterfaces, Link{Interface: iid, Features: providers[iid]})
		rep.Add(model.Issue{
			Severity: model.SeverityWarning,
			Code:     CodeUnusedInterface,
			File:     first.File,
			Message:  fmt.Sprintf("interface %s is provided by %s but no feature uses it", iid, strings.Join(providers[iid], ", ")),
		})
	}

	rep.coverage(idx, featureIDs, providers, users, filters)

	for _, fid := range featureIDs {
		if filters.feature(fid) {
			rep.Summary.FeaturesChecked++
		}
	}
	rep.Summary.InterfacesChecked = len(checked)
	rep.Summary.MissingProviders = len(rep.Bidirectional.MissingProviders)
	rep.Summary.UnusedInterfaces = len(rep.Bidirectional.UnusedInterfaces)
	rep.Summary.IncompleteCoverage = len(rep.IncompleteCoverage)
	rep.Success = rep.Issues.Success()
	return rep
}

// coverage warns when a feature provides a strict subset of a namespace's
// interfaces.
func (rep *Report) coverage(idx *model.Index, featureIDs []string, providers, users map[string][]string, filters Filters) {
	members := make(map[string]map[string]struct{})
	for _, m := range []map[string][]string{providers, users} {
		for iid := range m {
			ns := Namespace(iid)
			if ns == "" {
				continue
			}
			if members[ns] == nil {
				members[ns] = make(map[string]struct{})
			}
			members[ns][iid] = struct{}{}
		}
	}

	for _, fid := range featureIDs {
		if !filters.feature(fid) {
			continue
		}
		f := idx.Features[fid]

		byNS := make(map[string][]string)
		for _, iid := range f.InterfacesProvided {
			if ns := Namespace(iid); ns != "" {
				byNS[ns] = append(byNS[ns], iid)
			}
		}

		for _, ns := range sortedKeys(byNS) {
			if !filters.id(ns) {
				continue
			}
			provided := uniqueSorted(byNS[ns])
			have := make(map[string]struct{}, len(provided))
			for _, iid := range provided {
				have[iid] = struct{}{}
			}
			var missing []string
			for iid := range members[ns] {
				if _, ok := have[iid]; !ok {
					missing = append(missing, iid)
				}
			}
			if len(missing) == 0 {
				continue
			}
			sort.Strings(missing)

			rep.IncompleteCoverage = append(rep.IncompleteCoverage, Coverage{
				Feature:   fid,
				Namespace: ns,
				Provided:  provided,
				Missing:   missing,
			})
			rep.Add(model.Issue{
				Severity: model.SeverityWarning,
				Code:     CodeIncompleteCoverage,
				File:     f.File,
				Message: fmt.Sprintf("feature %s provides %d of %d interfaces in %s; missing %s",
					fid, len(provided), len(provided)+len(missing), ns, strings.Join(missing, ", ")),
				Suggestion: "document the missing siblings or split them into a separate feature",
			})
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func uniqueSorted(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, s := range list {
		if _, dup := seen[s]; !dup {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
