// Package index builds the reference graph over a documentation tree and
// persists it as a JSON snapshot.
package index

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/phobologic/docref/internal/config"
	"github.com/phobologic/docref/internal/discover"
	"github.com/phobologic/docref/internal/frontmatter"
	"github.com/phobologic/docref/internal/model"
	"github.com/phobologic/docref/internal/naming"
	"github.com/phobologic/docref/internal/parse"
	"github.com/phobologic/docref/internal/terms"
)

// SchemaVersion is written to every snapshot.
const SchemaVersion = "1.0"

// ErrNotDirectory is returned when the project root is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// Problem is a document-level failure recorded during a build. The document
// is skipped, or partially indexed, and the build continues.
type Problem struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

func (p Problem) Error() string { return p.Path + ": " + p.Err.Error() }

func (p Problem) Unwrap() error { return p.Err }

// Stats summarizes a build.
type Stats struct {
	Features       int           `json:"features"`
	CodeFiles      int           `json:"code_files"`
	Interfaces     int           `json:"interfaces"`
	Terms          int           `json:"terms"`
	TermReferences int           `json:"term_references"`
	Edges          int           `json:"edges"`
	Parsed         int           `json:"parsed"`
	Skipped        int           `json:"skipped"`
	Duration       time.Duration `json:"duration"`
}

// Result is the outcome of Build.
type Result struct {
	Index    *model.Index
	Stats    Stats
	Problems []Problem
	// Terms holds every definition and reference found, ready for validation.
	Terms *terms.Registry
}

// Options tunes a build.
type Options struct {
	Logger *slog.Logger
	// Parser is shared with other passes so parse results are cached once.
	Parser *parse.Parser
	// Now stamps the snapshot; defaults to time.Now.
	Now func() time.Time
}

type builder struct {
	root   string
	cfg    *config.Config
	logger *slog.Logger
	parser *parse.Parser

	idx      *model.Index
	registry *terms.Registry
	res      *Result

	// featureByFile maps a feature document path to its id.
	featureByFile map[string]string
}

// Build scans the documentation under root and returns the reference graph.
// Document-level failures are recorded in Result.Problems; only an unusable
// root or collection path is returned as an error.
func Build(root string, cfg *config.Config, opts Options) (*Result, error) {
	start := time.Now()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Parser == nil {
		opts.Parser = parse.New(cfg.Sources.CacheSize)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", root, ErrNotDirectory)
	}

	b := &builder{
		root:          root,
		cfg:           cfg,
		logger:        opts.Logger,
		parser:        opts.Parser,
		idx:           model.NewIndex(SchemaVersion),
		registry:      terms.NewRegistry(terms.WithSimilarity(nil, cfg.Terms.SimilarityThreshold)),
		featureByFile: make(map[string]string),
	}
	b.res = &Result{Index: b.idx, Terms: b.registry}
	b.idx.Generated = opts.Now().UTC()

	features, err := discover.Documents(root, cfg.FeaturesDir(), true)
	if err != nil {
		return nil, fmt.Errorf("feature documents: %w", err)
	}
	interfaces, err := discover.Documents(root, cfg.InterfacesDir(), false)
	if err != nil {
		return nil, fmt.Errorf("interface documents: %w", err)
	}
	shared, err := discover.Documents(root, cfg.SharedDir(), false)
	if err != nil {
		return nil, fmt.Errorf("shared-type documents: %w", err)
	}
	all, err := discover.Documents(root, cfg.Docs.Dir, true)
	if err != nil {
		return nil, fmt.Errorf("documents: %w", err)
	}

	for _, f := range features {
		b.feature(f)
	}
	b.materializeCode()
	codes := b.featureCodes()
	for _, f := range interfaces {
		b.interfaceDoc(f, codes)
	}
	for _, f := range shared {
		b.sharedDoc(f)
	}
	for _, f := range all {
		b.termsIn(f)
	}
	b.attachTerms()
	b.enrich()
	b.reverse()
	b.finish()

	b.res.Stats.Duration = time.Since(start)
	b.logger.Debug("Built reference index",
		slog.Int("features", b.res.Stats.Features),
		slog.Int("code_files", b.res.Stats.CodeFiles),
		slog.Int("problems", len(b.res.Problems)),
		slog.Duration("duration", b.res.Stats.Duration))
	return b.res, nil
}

func (b *builder) problem(file string, err error) {
	b.logger.Warn("Skipping document problem", slog.String("path", file), slog.String("error", err.Error()))
	b.res.Problems = append(b.res.Problems, Problem{Path: file, Err: err})
	b.res.Stats.Skipped++
}

func (b *builder) read(file string) (*frontmatter.Document, error) {
	data, err := os.ReadFile(filepath.Join(b.root, filepath.FromSlash(file)))
	if err != nil {
		return nil, err
	}
	doc, err := frontmatter.Extract(string(data))
	if err != nil {
		return nil, fmt.Errorf("frontmatter: %w", err)
	}
	return doc, nil
}

func stem(file string) string {
	return strings.TrimSuffix(path.Base(file), path.Ext(file))
}

// cleanPath normalizes a referenced code path to a root-relative,
// slash-separated form. Paths that are absolute or escape the root are
// rejected.
func cleanPath(p string) (string, bool) {
	p = strings.TrimSpace(filepath.ToSlash(p))
	if p == "" || strings.HasPrefix(p, "/") || filepath.IsAbs(p) {
		return "", false
	}
	p = path.Clean(strings.TrimPrefix(p, "./"))
	if p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return "", false
	}
	return p, true
}

func (b *builder) paths(file, field string, raw []string) []string {
	var out []string
	for _, p := range raw {
		clean, ok := cleanPath(p)
		if !ok {
			b.problem(file, fmt.Errorf("%s entry %q is not a path inside the project", field, p))
			continue
		}
		out = append(out, clean)
	}
	return out
}

func (b *builder) feature(file string) {
	doc, err := b.read(file)
	if err != nil {
		b.problem(file, err)
		return
	}

	id := doc.String("feature")
	if id == "" {
		id = stem(file)
	}
	if existing, dup := b.idx.Features[id]; dup {
		b.problem(file, fmt.Errorf("duplicate feature id %q, already defined in %s", id, existing.File))
		return
	}

	f := &model.Feature{
		ID:              id,
		File:            file,
		CodeUses:        b.paths(file, "code_references", doc.Strings("code_references")),
		RelatedFeatures: doc.Strings("related_features"),
		DependsOn:       doc.Strings("depends_on"),
		TestedBy:        b.paths(file, "test_files", doc.Strings("test_files")),
	}
	if entry := doc.String("entry_point"); entry != "" {
		f.CodeUses = append(f.CodeUses, b.paths(file, "entry_point", []string{entry})...)
	}

	if nested := doc.Map("interfaces"); nested != nil {
		f.InterfacesProvided = normalizeIDs(frontmatter.List(nested["provides"]))
		f.InterfacesUsed = normalizeIDs(frontmatter.List(nested["uses"]))
	} else {
		f.InterfacesUsed = normalizeIDs(doc.Strings("interfaces"))
	}

	b.idx.Features[id] = f
	b.featureByFile[file] = id
	b.logger.Debug("Indexed feature", slog.String("id", id), slog.String("path", file))
}

// normalizeIDs rewrites pair ids into normalized form and leaves other
// identifiers, such as namespaced ids, unchanged.
func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if norm, err := naming.NormalizePair(id); err == nil {
			id = norm
		}
		out = append(out, id)
	}
	return out
}

func (b *builder) code(p string, kind model.CodeKind) *model.CodeFile {
	cf, ok := b.idx.Code[p]
	if !ok {
		cf = &model.CodeFile{Path: p, Kind: kind}
		fi, err := os.Stat(filepath.Join(b.root, filepath.FromSlash(p)))
		cf.Exists = err == nil && fi.Mode().IsRegular()
		b.idx.Code[p] = cf
	}
	return cf
}

func (b *builder) materializeCode() {
	for _, id := range sortedKeys(b.idx.Features) {
		f := b.idx.Features[id]
		for _, p := range f.CodeUses {
			b.code(p, discover.CodeKind(p, b.cfg.Sources.ConfigFiles))
		}
		for _, p := range f.TestedBy {
			b.code(p, model.Test).Kind = model.Test
		}
	}
}

var codePrefix = regexp.MustCompile(`^(\d{2})(?:\D|$)`)

// featureCodes maps two-digit feature codes to feature ids, using the id or
// the document file name. The first feature in id order wins.
func (b *builder) featureCodes() map[string]string {
	codes := make(map[string]string)
	for _, id := range sortedKeys(b.idx.Features) {
		for _, s := range []string{id, stem(b.idx.Features[id].File)} {
			if m := codePrefix.FindStringSubmatch(s); m != nil {
				if _, taken := codes[m[1]]; !taken {
					codes[m[1]] = id
				}
				break
			}
		}
	}
	return codes
}

func (b *builder) interfaceDoc(file string, codes map[string]string) {
	doc, err := b.read(file)
	if err != nil {
		b.problem(file, err)
		return
	}

	id := stem(file)
	pair, perr := naming.ParsePair(id)
	if perr == nil {
		id = pair.Normalized().String()
	}
	if existing, dup := b.idx.Interfaces[id]; dup {
		b.problem(file, fmt.Errorf("interface %s already documented by %s", id, existing.File))
		return
	}

	iface := &model.Interface{
		ID:          id,
		File:        file,
		FromFeature: doc.String("from"),
		ToFeature:   doc.String("to"),
		Kind:        doc.String("kind"),
		Status:      doc.String("status"),
		SharedTypes: doc.Strings("shared_types"),
	}
	if iface.Kind == "" {
		iface.Kind = "interface"
	}
	if perr == nil {
		if iface.FromFeature == "" {
			iface.FromFeature = codes[pair.A]
		}
		if iface.ToFeature == "" {
			iface.ToFeature = codes[pair.B]
		}
	}

	if f := b.idx.Features[iface.FromFeature]; f != nil {
		f.InterfacesProvided = append(f.InterfacesProvided, id)
	}
	if f := b.idx.Features[iface.ToFeature]; f != nil {
		f.InterfacesUsed = append(f.InterfacesUsed, id)
	}
	b.idx.Interfaces[id] = iface
}

func (b *builder) sharedDoc(file string) {
	doc, err := b.read(file)
	if err != nil {
		b.problem(file, err)
		return
	}

	id, err := naming.NormalizeShared(stem(file))
	if err != nil {
		b.logger.Debug("Ignoring shared document without a shared-type id", slog.String("path", file))
		return
	}
	if existing, dup := b.idx.Interfaces[id]; dup {
		b.problem(file, fmt.Errorf("shared type %s already documented by %s", id, existing.File))
		return
	}
	b.idx.Interfaces[id] = &model.Interface{
		ID:         id,
		File:       file,
		Kind:       "shared",
		Status:     doc.String("status"),
		Interfaces: normalizeIDs(doc.Strings("interfaces")),
	}
}

func (b *builder) termsIn(file string) {
	data, err := os.ReadFile(filepath.Join(b.root, filepath.FromSlash(file)))
	if err != nil {
		b.problem(file, err)
		return
	}
	body, line := string(data), 1
	if doc, err := frontmatter.Extract(body); err == nil {
		body, line = doc.Body, doc.BodyLine
	}

	ex := terms.Extract(file, body, line)
	for _, perr := range ex.Problems {
		b.problem(file, perr)
	}
	for _, def := range ex.Definitions {
		if err := b.registry.AddDefinition(def); err != nil {
			b.problem(file, err)
		}
	}
	for _, ref := range ex.References {
		b.registry.AddReference(ref)
	}
}

func (b *builder) attachTerms() {
	usage := b.registry.Usage()
	for _, def := range b.registry.Definitions() {
		refs := usage[def.Term]
		if refs == nil {
			refs = []model.TermReference{}
		}
		b.idx.Terms[def.Term] = &model.TermEntry{
			Definition: model.TermLocation{File: def.File, Line: def.Line, Scope: def.Scope},
			Aliases:    def.Aliases,
			Parent:     def.Parent,
			Related:    def.Related,
			References: refs,
			UsageCount: len(refs),
		}
		if id, ok := b.featureByFile[def.File]; ok {
			f := b.idx.Features[id]
			f.TermsDefined = append(f.TermsDefined, def.Term)
		}
	}

	for _, ref := range b.registry.References() {
		id, ok := b.featureByFile[ref.File]
		if !ok {
			continue
		}
		name := ref.Term
		if def := b.registry.Find(ref.Term); def != nil {
			name = def.Term
		}
		f := b.idx.Features[id]
		f.TermsUsed = append(f.TermsUsed, name)
	}
}

// enrich parses every existing code file for imports and exports.
func (b *builder) enrich() {
	var paths []string
	for _, p := range sortedKeys(b.idx.Code) {
		if b.idx.Code[p].Exists {
			paths = append(paths, p)
		}
	}
	parsed := b.parser.Files(b.root, paths, b.cfg.Sources.MaxFileSize, b.logger)
	for _, r := range parsed {
		if !parse.Skipped(r) {
			b.res.Stats.Parsed++
		}
	}

	resolver := newResolver(sortedKeys(b.idx.Code))
	for _, p := range sortedKeys(parsed) {
		result := parsed[p]
		cf := b.idx.Code[p]
		for _, imp := range result.Imports {
			targets := resolver.resolve(p, imp.Source)
			if len(targets) == 0 {
				cf.Imports = append(cf.Imports, imp.Source)
				continue
			}
			for _, target := range targets {
				if target != p {
					cf.Imports = append(cf.Imports, target)
				}
			}
		}
		for _, exp := range result.Exports {
			cf.Exports = append(cf.Exports, exp.Name)
		}
		cf.ParseErrors = result.Errors
		if len(result.Errors) > 0 {
			b.logger.Debug("Recovered from parse errors", slog.String("path", p), slog.Int("errors", len(result.Errors)))
		}
	}
}

// reverse fills every reverse edge from its forward edge. Targets that do not
// exist never get a reverse edge.
func (b *builder) reverse() {
	for _, id := range sortedKeys(b.idx.Features) {
		f := b.idx.Features[id]
		for _, p := range f.CodeUses {
			if cf := b.idx.Code[p]; cf != nil {
				cf.DocumentedIn = append(cf.DocumentedIn, id)
			}
		}
		for _, p := range f.TestedBy {
			if cf := b.idx.Code[p]; cf != nil {
				cf.DocumentedIn = append(cf.DocumentedIn, id)
			}
		}
		for _, target := range f.RelatedFeatures {
			if t := b.idx.Features[target]; t != nil {
				t.UsedByFeatures = append(t.UsedByFeatures, id)
			}
		}
		for _, target := range f.DependsOn {
			if t := b.idx.Features[target]; t != nil {
				t.DependedOnBy = append(t.DependedOnBy, id)
			}
		}
	}

	for _, p := range sortedKeys(b.idx.Code) {
		for _, target := range b.idx.Code[p].Imports {
			if t := b.idx.Code[target]; t != nil && target != p {
				t.ImportedBy = append(t.ImportedBy, p)
			}
		}
	}

	for _, id := range sortedKeys(b.idx.Features) {
		f := b.idx.Features[id]
		own := make(map[string]struct{}, len(f.CodeUses))
		for _, p := range f.CodeUses {
			own[p] = struct{}{}
		}
		for _, p := range f.CodeUses {
			cf := b.idx.Code[p]
			if cf == nil {
				continue
			}
			for _, importer := range cf.ImportedBy {
				if _, mine := own[importer]; !mine {
					f.CodeUsedBy = append(f.CodeUsedBy, importer)
				}
			}
		}
	}
}

// finish sorts and deduplicates every edge list and computes stats.
func (b *builder) finish() {
	s := &b.res.Stats
	for _, f := range b.idx.Features {
		for _, list := range []*[]string{
			&f.CodeUses, &f.CodeUsedBy, &f.RelatedFeatures, &f.DependsOn,
			&f.UsedByFeatures, &f.DependedOnBy, &f.InterfacesProvided,
			&f.InterfacesUsed, &f.TermsDefined, &f.TermsUsed, &f.TestedBy,
		} {
			*list = uniqueSorted(*list)
		}
		s.Edges += len(f.CodeUses) + len(f.RelatedFeatures) + len(f.DependsOn) +
			len(f.InterfacesProvided) + len(f.InterfacesUsed) + len(f.TestedBy)
	}
	for _, cf := range b.idx.Code {
		cf.DocumentedIn = uniqueSorted(cf.DocumentedIn)
		cf.Imports = uniqueSorted(cf.Imports)
		cf.ImportedBy = uniqueSorted(cf.ImportedBy)
		cf.Exports = uniqueSorted(cf.Exports)
		s.Edges += len(cf.ImportedBy)
	}
	for _, iface := range b.idx.Interfaces {
		iface.SharedTypes = uniqueSorted(iface.SharedTypes)
	}
	for _, t := range b.idx.Terms {
		s.TermReferences += t.UsageCount
	}

	s.Features = len(b.idx.Features)
	s.CodeFiles = len(b.idx.Code)
	s.Interfaces = len(b.idx.Interfaces)
	s.Terms = len(b.idx.Terms)
}

func uniqueSorted(list []string) []string {
	out := make([]string, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, s := range list {
		if _, dup := seen[s]; dup || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
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
