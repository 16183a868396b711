// Package discover finds source-like files and documentation collections in a
// project tree.
package discover

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/docref/internal/lang"
	"github.com/phobologic/docref/internal/model"
)

// Class is the coarse classification of an enumerated file.
type Class string

const (
	ClassSource Class = "source"
	ClassConfig Class = "config"
	ClassOther  Class = "other"
)

// FileEntry represents a discovered file.
type FileEntry struct {
	Path     string // Relative to root, slash-separated
	Language string // Grammar name, "" when no grammar is registered
	Class    Class
}

// Options controls enumeration.
type Options struct {
	// Exclude holds doublestar patterns matched against root-relative paths.
	Exclude []string
	// SkipPaths are root-relative directories pruned from the walk, such as
	// the documentation tree.
	SkipPaths []string
	// ConfigFiles are extra file names classified as config.
	ConfigFiles []string
}

var skipDirs = map[string]struct{}{
	"__pycache__":   {},
	"node_modules":  {},
	"vendor":        {},
	"venv":          {},
	"env":           {},
	"build":         {},
	"dist":          {},
	"out":           {},
	"target":        {},
	"coverage":      {},
	"docs":          {},
	"doc":           {},
	"egg-info":      {},
	".tox":          {},
	".mypy_cache":   {},
	".pytest_cache": {},
}

// sourceExts are programming-language extensions without a registered grammar.
var sourceExts = map[string]struct{}{
	".java": {}, ".kt": {}, ".scala": {}, ".rs": {}, ".c": {}, ".h": {},
	".cc": {}, ".cpp": {}, ".hpp": {}, ".cs": {}, ".php": {}, ".swift": {},
	".vue": {}, ".svelte": {}, ".ex": {}, ".exs": {}, ".lua": {}, ".dart": {},
}

var otherExts = map[string]struct{}{
	".sh": {}, ".bash": {}, ".sql": {}, ".css": {}, ".scss": {}, ".html": {},
}

var configExts = map[string]struct{}{
	".json": {}, ".yaml": {}, ".yml": {}, ".toml": {}, ".ini": {}, ".cfg": {},
	".conf": {}, ".env": {}, ".properties": {}, ".xml": {},
}

var configNames = map[string]struct{}{
	"makefile":         {},
	"dockerfile":       {},
	"go.mod":           {},
	"go.sum":           {},
	"package.json":     {},
	"tsconfig.json":    {},
	"requirements.txt": {},
	"gemfile":          {},
	"rakefile":         {},
	"procfile":         {},
}

// IsConfig reports whether p names a configuration file. extra holds
// additional exact file names.
func IsConfig(p string, extra []string) bool {
	base := path.Base(p)
	lower := strings.ToLower(base)
	if _, ok := configNames[lower]; ok {
		return true
	}
	for _, name := range extra {
		if strings.EqualFold(name, base) {
			return true
		}
	}
	if _, ok := configExts[strings.ToLower(path.Ext(base))]; ok {
		return true
	}
	// vite.config.ts, jest.config.js, .eslintrc.cjs and friends
	return strings.Contains(lower, ".config.") || strings.HasPrefix(lower, ".") && strings.Contains(lower, "rc")
}

// IsTestFile reports whether p looks like a test file.
func IsTestFile(p string) bool {
	base := strings.ToLower(path.Base(p))
	if strings.Contains(base, ".test.") || strings.Contains(base, ".spec.") ||
		strings.HasSuffix(strings.TrimSuffix(base, path.Ext(base)), "_test") ||
		strings.HasSuffix(strings.TrimSuffix(base, path.Ext(base)), "_spec") ||
		strings.HasPrefix(base, "test_") {
		return true
	}
	for _, seg := range strings.Split(path.Dir(p), "/") {
		switch seg {
		case "tests", "test", "__tests__", "spec":
			return true
		}
	}
	return false
}

// CodeKind infers the kind of a documented code path.
func CodeKind(p string, extraConfig []string) model.CodeKind {
	switch {
	case IsTestFile(p):
		return model.Test
	case IsConfig(p, extraConfig):
		return model.Config
	default:
		return model.Source
	}
}

// Classify returns the enumeration class and grammar name for p, or ok=false
// when the file is not source-like at all.
func Classify(p string, extraConfig []string) (class Class, language string, ok bool) {
	ext := strings.ToLower(path.Ext(p))
	language = lang.ForExtension(ext)
	switch {
	case IsConfig(p, extraConfig):
		return ClassConfig, language, true
	case language != "":
		return ClassSource, language, true
	}
	if _, isSource := sourceExts[ext]; isSource {
		return ClassSource, "", true
	}
	if _, isOther := otherExts[ext]; isOther {
		return ClassOther, "", true
	}
	return "", "", false
}

// Files discovers source-like files under root.
func Files(root string, opts Options) ([]FileEntry, error) {
	gitFiles := gitLsFiles(root)
	var gi *ignore.GitIgnore
	if gitFiles == nil {
		gi = loadGitignore(root)
	}

	skipPaths := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skipPaths[path.Clean(filepath.ToSlash(p))] = struct{}{}
	}

	var results []FileEntry

	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}

		name := d.Name()
		relOS, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel := filepath.ToSlash(relOS)

		if d.IsDir() {
			if p == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if _, skip := skipPaths[rel]; skip {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") && !IsConfig(name, opts.ConfigFiles) {
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		if gitFiles != nil {
			if _, ok := gitFiles[rel]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		if excluded(rel, opts.Exclude) {
			return nil
		}

		class, language, ok := Classify(rel, opts.ConfigFiles)
		if !ok {
			return nil
		}

		results = append(results, FileEntry{Path: rel, Language: language, Class: class})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, nil
}

// Documents returns the markdown documents in dir (root-relative,
// slash-separated), sorted. A missing directory yields no documents.
func Documents(root, dir string, recursive bool) ([]string, error) {
	dir = path.Clean(filepath.ToSlash(dir))
	if !fs.ValidPath(dir) {
		return nil, fmt.Errorf("invalid document collection path %q", dir)
	}

	info, err := os.Stat(filepath.Join(root, filepath.FromSlash(dir)))
	if err != nil || !info.IsDir() {
		return nil, nil
	}

	prefix := dir + "/"
	if dir == "." {
		prefix = ""
	}
	pattern := prefix + "*.md"
	if recursive {
		pattern = prefix + "**/*.md"
	}
	matches, err := doublestar.Glob(os.DirFS(root), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}

func excluded(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func gitLsFiles(root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
