package index

import (
	"path"
	"sort"
	"strings"
)

// resolver maps import specifiers to indexed code files.
type resolver struct {
	files  map[string]struct{}
	byStem map[string][]string // path without extension -> paths
	byDir  map[string][]string // directory -> paths
	stems  []string            // sorted keys of byStem
	dirs   []string            // sorted keys of byDir
}

func newResolver(paths []string) *resolver {
	r := &resolver{
		files:  make(map[string]struct{}, len(paths)),
		byStem: make(map[string][]string),
		byDir:  make(map[string][]string),
	}
	for _, p := range paths {
		r.files[p] = struct{}{}
		s := strings.TrimSuffix(p, path.Ext(p))
		r.byStem[s] = append(r.byStem[s], p)
		d := path.Dir(p)
		r.byDir[d] = append(r.byDir[d], p)
	}
	r.stems = sortedKeys(r.byStem)
	r.dirs = sortedKeys(r.byDir)
	for _, v := range r.byStem {
		sort.Strings(v)
	}
	for _, v := range r.byDir {
		sort.Strings(v)
	}
	return r
}

// resolve returns the indexed files an import in from refers to. Go imports
// name a package and resolve to every file in its directory.
func (r *resolver) resolve(from, spec string) []string {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil
	}
	ext := path.Ext(from)

	switch {
	case strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../"):
		return r.byBase(path.Join(path.Dir(from), spec))
	case ext == ".py" && strings.HasPrefix(spec, "."):
		return r.byBase(pythonRelative(from, spec))
	case ext == ".go":
		return r.goPackage(spec)
	case ext == ".py":
		return r.bySuffix(strings.ReplaceAll(spec, ".", "/"))
	default:
		return r.bySuffix(strings.TrimPrefix(spec, "/"))
	}
}

func (r *resolver) byBase(base string) []string {
	if _, ok := r.files[base]; ok {
		return []string{base}
	}
	base = strings.TrimSuffix(base, path.Ext(base))
	for _, candidate := range []string{base, base + "/index", base + "/__init__"} {
		if hits := r.byStem[candidate]; len(hits) > 0 {
			return hits[:1]
		}
	}
	return nil
}

func (r *resolver) bySuffix(s string) []string {
	s = path.Clean(s)
	if _, ok := r.files[s]; ok {
		return []string{s}
	}
	s = strings.TrimSuffix(s, path.Ext(s))
	for _, stem := range r.stems {
		if stem == s || strings.HasSuffix(stem, "/"+s) {
			return r.byStem[stem][:1]
		}
	}
	return nil
}

func (r *resolver) goPackage(spec string) []string {
	var out []string
	for _, dir := range r.dirs {
		if dir == "." || dir != spec && !strings.HasSuffix(spec, "/"+dir) {
			continue
		}
		for _, p := range r.byDir[dir] {
			if path.Ext(p) == ".go" {
				out = append(out, p)
			}
		}
	}
	return out
}

// pythonRelative turns ".models" or "..util.io" into a slash path relative to
// from's package.
func pythonRelative(from, spec string) string {
	rest := strings.TrimLeft(spec, ".")
	dots := len(spec) - len(rest)
	dir := path.Dir(from)
	for i := 1; i < dots; i++ {
		dir = path.Dir(dir)
	}
	return path.Join(dir, strings.ReplaceAll(rest, ".", "/"))
}
