// Package orphan finds source files that no document references and no other
// source file imports.
//
// Reachability is a heuristic: an import counts when its specifier's base name
// matches the candidate's base name, so unconventional import syntax can hide
// an orphan. A file reported as orphaned is never referenced by a recognized
// path or import pattern.
package orphan

import (
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/phobologic/docref/internal/config"
	"github.com/phobologic/docref/internal/discover"
	"github.com/phobologic/docref/internal/frontmatter"
	"github.com/phobologic/docref/internal/parse"
)

// Result is the outcome of Detect.
type Result struct {
	TotalFiles      int      `json:"total_files"`
	ReferencedFiles int      `json:"referenced_files"`
	OrphanFiles     []string `json:"orphan_files"`
}

// Options tunes a detection run.
type Options struct {
	Config *config.Config
	// Parser is shared with other passes so parse results are cached once.
	Parser *parse.Parser
	Logger *slog.Logger
}

// inlinePath matches backticked code paths such as `src/auth/login.ts` or
// `cmd/main.go:42`.
var inlinePath = regexp.MustCompile("`((?:\\./)?[\\w.\\-]+(?:/[\\w.\\-]+)*\\.\\w+)(?::\\d+)?`")

// Detect reports the source-like files under root that are orphaned.
func Detect(root string, opts Options) (*Result, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	parser := opts.Parser
	if parser == nil {
		parser = parse.New(cfg.Sources.CacheSize)
	}

	refs, err := referenced(root, cfg, logger)
	if err != nil {
		return nil, err
	}

	files, err := discover.Files(root, discover.Options{
		Exclude:     cfg.Sources.Exclude,
		SkipPaths:   []string{cfg.Docs.Dir, path.Dir(cfg.Index.Path)},
		ConfigFiles: cfg.Sources.ConfigFiles,
	})
	if err != nil {
		return nil, err
	}

	importers := importIndex(root, files, parser, cfg.Sources.MaxFileSize, logger)

	res := &Result{TotalFiles: len(files), OrphanFiles: []string{}}
	for _, f := range files {
		if refs.covers(f.Path) {
			res.ReferencedFiles++
			continue
		}
		if f.Class == discover.ClassConfig {
			continue
		}
		if importers.imports(f.Path) {
			continue
		}
		res.OrphanFiles = append(res.OrphanFiles, f.Path)
	}
	sort.Strings(res.OrphanFiles)
	return res, nil
}

// refSet holds the paths documents reference. Directory references cover
// every file beneath them.
type refSet struct {
	files map[string]struct{}
	dirs  []string
}

func (r *refSet) add(root, p string) {
	p = strings.TrimSpace(filepath.ToSlash(p))
	if p == "" || strings.HasPrefix(p, "/") {
		return
	}
	p = path.Clean(strings.TrimPrefix(p, "./"))
	if p == "." || strings.HasPrefix(p, "../") {
		return
	}
	if fi, err := os.Stat(filepath.Join(root, filepath.FromSlash(p))); err == nil && fi.IsDir() {
		r.dirs = append(r.dirs, p+"/")
		return
	}
	r.files[p] = struct{}{}
}

func (r *refSet) covers(p string) bool {
	if _, ok := r.files[p]; ok {
		return true
	}
	for _, d := range r.dirs {
		if strings.HasPrefix(p, d) {
			return true
		}
	}
	return false
}

func referenced(root string, cfg *config.Config, logger *slog.Logger) (*refSet, error) {
	features, err := discover.Documents(root, cfg.FeaturesDir(), true)
	if err != nil {
		return nil, err
	}
	interfaces, err := discover.Documents(root, cfg.InterfacesDir(), false)
	if err != nil {
		return nil, err
	}

	refs := &refSet{files: make(map[string]struct{})}
	for _, file := range append(features, interfaces...) {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(file)))
		if err != nil {
			logger.Warn("Failed to read document", slog.String("path", file), slog.String("error", err.Error()))
			continue
		}
		body := string(data)
		if doc, err := frontmatter.Extract(body); err == nil {
			body = doc.Body
			for _, key := range []string{"code_references", "entry_point", "test_files"} {
				for _, p := range doc.Strings(key) {
					refs.add(root, p)
				}
			}
		} else {
			logger.Debug("Scanning document without frontmatter", slog.String("path", file), slog.String("error", err.Error()))
		}
		for _, m := range inlinePath.FindAllStringSubmatch(body, -1) {
			refs.add(root, m[1])
		}
	}
	return refs, nil
}
