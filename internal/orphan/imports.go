package orphan

import (
	"bufio"
	"bytes"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/phobologic/docref/internal/discover"
	"github.com/phobologic/docref/internal/parse"
)

var (
	// importLine matches lines that look like an import in most languages.
	importLine = regexp.MustCompile(`^\s*(?:import|from|require|require_relative|use|using|include|#include|load|source|export)\b|\brequire\s*\(|\bimport\s*\(`)
	quoted     = regexp.MustCompile(`["'<]([^"'<>]+)["'>]`)
	bareSpec   = regexp.MustCompile(`^\s*(?:import|from|use|using)\s+(?:static\s+)?([\w.:/\\-]+)`)
)

// importers maps an import base name to the files that import it.
type importers map[string]map[string]struct{}

func (im importers) add(name, from string) {
	if name == "" {
		return
	}
	if im[name] == nil {
		im[name] = make(map[string]struct{})
	}
	im[name][from] = struct{}{}
}

// imports reports whether some file other than p imports one of p's names.
func (im importers) imports(p string) bool {
	for _, name := range candidateNames(p) {
		for from := range im[name] {
			if from != p {
				return true
			}
		}
	}
	return false
}

// candidateNames are the names an import of p may use: the base name without
// extension, plus the directory name for package-style and index files.
func candidateNames(p string) []string {
	base := path.Base(p)
	ext := path.Ext(base)
	name := strings.TrimSuffix(base, ext)
	names := []string{name}

	dir := path.Base(path.Dir(p))
	switch {
	case dir == "." || dir == "/":
	case ext == ".go", name == "index", name == "__init__", name == "mod", name == "main":
		names = append(names, dir)
	}
	return names
}

// specNames derives the base names an import specifier may refer to.
func specNames(spec string) []string {
	spec = strings.TrimSpace(spec)
	spec = strings.NewReplacer("\\", "/", "::", "/").Replace(spec)
	seg := path.Base(strings.TrimRight(spec, "/"))
	if seg == "." || seg == "/" || seg == "" {
		return nil
	}
	names := []string{strings.TrimSuffix(seg, path.Ext(seg))}
	if i := strings.LastIndex(seg, "."); i >= 0 && i < len(seg)-1 {
		names = append(names, seg[i+1:])
	}
	return names
}

// importIndex collects the import specifiers of every non-config file, using
// the source parser where a grammar exists and a line regex otherwise. Files
// too large to parse fall back to the line regex.
func importIndex(root string, files []discover.FileEntry, parser *parse.Parser, maxSize int64, logger *slog.Logger) importers {
	im := make(importers)

	var parsed []string
	for _, f := range files {
		if f.Class == discover.ClassConfig {
			continue
		}
		if parse.Supported(f.Path) {
			parsed = append(parsed, f.Path)
			continue
		}
		im.scan(root, f.Path, logger)
	}

	results := parser.Files(root, parsed, maxSize, logger)
	for _, p := range parsed {
		result, ok := results[p]
		if !ok || parse.Skipped(result) {
			im.scan(root, p, logger)
			continue
		}
		for _, imp := range result.Imports {
			for _, name := range specNames(imp.Source) {
				im.add(name, p)
			}
		}
	}
	return im
}

// scan records the imports of p found by the line regex.
func (im importers) scan(root, p string, logger *slog.Logger) {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(p)))
	if err != nil {
		logger.Warn("Failed to read source file", slog.String("path", p), slog.String("error", err.Error()))
		return
	}
	for _, spec := range scanImports(data) {
		for _, name := range specNames(spec) {
			im.add(name, p)
		}
	}
}

// scanImports is the textual fallback for files without a grammar.
func scanImports(data []byte) []string {
	var specs []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if !importLine.MatchString(line) {
			continue
		}
		if ms := quoted.FindAllStringSubmatch(line, -1); len(ms) > 0 {
			for _, m := range ms {
				specs = append(specs, m[1])
			}
			continue
		}
		if m := bareSpec.FindStringSubmatch(line); m != nil {
			specs = append(specs, strings.TrimSuffix(m[1], ";"))
		}
	}
	return specs
}
