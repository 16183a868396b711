// Package workspace ties the docref passes to one project root so the CLI and
// the MCP server run them the same way.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/phobologic/docref/internal/config"
	"github.com/phobologic/docref/internal/discover"
	"github.com/phobologic/docref/internal/graph"
	"github.com/phobologic/docref/internal/index"
	"github.com/phobologic/docref/internal/linkcheck"
	"github.com/phobologic/docref/internal/model"
	"github.com/phobologic/docref/internal/naming"
	"github.com/phobologic/docref/internal/orphan"
	"github.com/phobologic/docref/internal/parse"
	"github.com/phobologic/docref/internal/ranking"
	"github.com/phobologic/docref/internal/terms"
)

// Workspace is a project root with its resolved configuration. Its parser,
// and therefore the parse cache, is shared by every pass.
type Workspace struct {
	Root   string
	Config *config.Config
	Logger *slog.Logger

	// ConfigFiles are the absolute paths of the files Config was loaded
	// from. A change to any of them invalidates the snapshot.
	ConfigFiles []string

	parser *parse.Parser
	now    func() time.Time
}

// Open resolves root to an absolute directory.
func Open(root string, cfg *config.Config, logger *slog.Logger) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", abs, index.ErrNotDirectory)
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Workspace{
		Root:   abs,
		Config: cfg,
		Logger: logger,
		ConfigFiles: []string{
			filepath.Join(abs, config.ProjectConfigFile),
			filepath.Join(abs, config.EnvFile),
		},
		parser: parse.New(cfg.Sources.CacheSize),
		now:    time.Now,
	}, nil
}

// SnapshotPath is the absolute path of the persisted index.
func (w *Workspace) SnapshotPath() string {
	return index.SnapshotPath(w.Root, w.Config)
}

// Build rebuilds the reference index and writes the snapshot.
func (w *Workspace) Build() (*index.Result, error) {
	res, err := w.build()
	if err != nil {
		return nil, err
	}
	if err := index.Write(res.Index, w.SnapshotPath()); err != nil {
		return nil, err
	}
	w.Logger.Info("Wrote reference index",
		slog.String("path", w.SnapshotPath()),
		slog.Int("features", res.Stats.Features),
		slog.Int("code_files", res.Stats.CodeFiles))
	return res, nil
}

func (w *Workspace) build() (*index.Result, error) {
	return index.Build(w.Root, w.Config, index.Options{
		Logger: w.Logger,
		Parser: w.parser,
		Now:    w.now,
	})
}

// Index returns the persisted index when it is newer than every document,
// every code file it references and every config file, and rebuilds it
// otherwise.
func (w *Workspace) Index() (*model.Index, error) {
	idx, err := index.Load(w.SnapshotPath())
	switch {
	case err == nil:
		if w.fresh(idx) {
			w.Logger.Debug("Using cached reference index", slog.String("path", w.SnapshotPath()))
			return idx, nil
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		w.Logger.Warn("Ignoring unreadable reference index", slog.String("path", w.SnapshotPath()), slog.String("error", err.Error()))
	}

	res, err := w.Build()
	if err != nil {
		return nil, err
	}
	return res.Index, nil
}

func (w *Workspace) fresh(idx *model.Index) bool {
	info, err := os.Stat(w.SnapshotPath())
	if err != nil {
		return false
	}
	mtime := info.ModTime()

	docs, err := discover.Documents(w.Root, w.Config.Docs.Dir, true)
	if err != nil {
		return false
	}
	paths := docs
	for p, c := range idx.Code {
		if c.Exists {
			paths = append(paths, p)
			continue
		}
		// A referenced file created since the build needs parsing.
		if _, err := os.Stat(filepath.Join(w.Root, filepath.FromSlash(p))); err == nil {
			return false
		}
	}

	for _, p := range paths {
		fi, err := os.Stat(filepath.Join(w.Root, filepath.FromSlash(p)))
		if err != nil {
			return false
		}
		if !fi.ModTime().Before(mtime) {
			return false
		}
	}
	for _, p := range w.ConfigFiles {
		fi, err := os.Stat(p)
		if err != nil {
			continue
		}
		if !fi.ModTime().Before(mtime) {
			return false
		}
	}
	// A document removed since the snapshot leaves a stale feature behind.
	for _, f := range idx.Features {
		if _, err := os.Stat(filepath.Join(w.Root, filepath.FromSlash(f.File))); err != nil {
			return false
		}
	}
	return true
}

// Terms validates every term definition and reference under the docs
// directory. A duplicate definition aborts with its *terms.ConflictError.
func (w *Workspace) Terms() (*terms.Report, error) {
	res, err := w.build()
	if err != nil {
		return nil, err
	}
	for _, p := range res.Problems {
		var conflict *terms.ConflictError
		if errors.As(p, &conflict) {
			return nil, fmt.Errorf("term registry: %w", conflict)
		}
	}
	rep := res.Terms.Validate()
	return &rep, nil
}

// Naming checks interface and shared-type document names.
func (w *Workspace) Naming() (*naming.Report, error) {
	return naming.Validate(w.Root, w.Config, w.Logger)
}

// Orphans reports source files nothing documents or imports.
func (w *Workspace) Orphans() (*orphan.Result, error) {
	return orphan.Detect(w.Root, orphan.Options{
		Config: w.Config,
		Parser: w.parser,
		Logger: w.Logger,
	})
}

// Links validates interface links over the current index.
func (w *Workspace) Links(filters linkcheck.Filters) (*linkcheck.Report, error) {
	idx, err := w.Index()
	if err != nil {
		return nil, err
	}
	return linkcheck.Validate(idx, filters), nil
}

// RankOptions narrows a ranking.
type RankOptions struct {
	// Limit keeps the top N nodes; 0 keeps all.
	Limit int
	// Kind keeps only feature or code nodes.
	Kind graph.NodeKind
	// Filter keeps nodes whose id contains it, plus their neighbors.
	Filter string
}

// Rank returns the PageRank-ordered reference graph.
func (w *Workspace) Rank(opts RankOptions) (*graph.Graph, error) {
	idx, err := w.Index()
	if err != nil {
		return nil, err
	}
	g := graph.Build(idx)
	graph.Rank(g)
	if opts.Filter != "" {
		g = ranking.FilterByID(g, opts.Filter)
	}
	return ranking.Select(g, opts.Limit, opts.Kind), nil
}

// Report is the combined outcome of every validator.
type Report struct {
	Success  bool              `json:"success"`
	Index    index.Stats       `json:"index"`
	Problems []string          `json:"problems"`
	Terms    *terms.Report     `json:"terms"`
	Naming   *naming.Report    `json:"naming"`
	Links    *linkcheck.Report `json:"links"`
	Orphans  *orphan.Result    `json:"orphans"`
	model.Issues
}

// Check rebuilds the index and runs every validator against it. Document
// problems and orphans are reported as warnings.
func (w *Workspace) Check() (*Report, error) {
	res, err := w.Build()
	if err != nil {
		return nil, err
	}

	rep := &Report{Index: res.Stats, Problems: []string{}}
	for _, p := range res.Problems {
		rep.Problems = append(rep.Problems, p.Error())
		var conflict *terms.ConflictError
		if errors.As(p, &conflict) {
			rep.Errorf(terms.CodeConflict, p.Path, conflict.Duplicate.Line, "%s", conflict.Error())
			continue
		}
		rep.Warnf("document", p.Path, 0, "%s", p.Err.Error())
	}

	termsRep := res.Terms.Validate()
	rep.Terms = &termsRep
	rep.merge(termsRep.Issues)

	if rep.Naming, err = w.Naming(); err != nil {
		return nil, err
	}
	rep.merge(rep.Naming.Issues)

	rep.Links = linkcheck.Validate(res.Index, linkcheck.Filters{})
	rep.merge(rep.Links.Issues)

	if rep.Orphans, err = w.Orphans(); err != nil {
		return nil, err
	}
	for _, p := range rep.Orphans.OrphanFiles {
		rep.Warnf("orphan-file", p, 0, "%s is not referenced by any document or imported by another file", p)
	}

	rep.Success = rep.Issues.Success()
	return rep, nil
}

func (rep *Report) merge(is model.Issues) {
	rep.Errors = append(rep.Errors, is.Errors...)
	rep.Warnings = append(rep.Warnings, is.Warnings...)
}
