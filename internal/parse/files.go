package parse

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/docref/internal/model"
)

// fork returns a Parser that shares p's result cache but owns its own
// tree-sitter parsers.
func (p *Parser) fork() *Parser {
	return &Parser{parsers: make(map[string]*sitter.Parser), cache: p.cache}
}

// Files parses the given root-relative, slash-separated paths concurrently
// and returns the results keyed by path. Files without a grammar or that
// cannot be read are left out. Files larger than maxSize bytes (when
// maxSize > 0) are not parsed; their result carries a CodeTooLarge error.
func (p *Parser) Files(root string, paths []string, maxSize int64, logger *slog.Logger) map[string]model.ParseResult {
	if logger == nil {
		logger = slog.Default()
	}

	var files []string
	skipped := make(map[string]model.ParseResult)
	for _, rel := range paths {
		if !Supported(rel) {
			continue
		}
		if maxSize > 0 {
			fi, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
			if err == nil && fi.Size() > maxSize {
				logger.Warn("Skipping large file", slog.String("path", rel), slog.Int64("size", fi.Size()))
				skipped[rel] = model.ParseResult{Errors: []model.ParseError{{
					Message: fmt.Sprintf("file is %d bytes, larger than the %d byte limit", fi.Size(), maxSize),
					Code:    CodeTooLarge,
				}}}
				continue
			}
		}
		files = append(files, rel)
	}
	if len(files) == 0 {
		return skipped
	}

	type result struct {
		path   string
		parsed model.ParseResult
	}

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	work := make(chan string, len(files))
	results := make(chan result, len(files))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Each goroutine gets its own tree-sitter parsers
			worker := p.fork()

			for rel := range work {
				source, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
				if err != nil {
					logger.Warn("Failed to read source file", slog.String("path", rel), slog.String("error", err.Error()))
					continue
				}
				results <- result{path: rel, parsed: worker.Parse(source, rel)}
			}
		}()
	}

	for _, rel := range files {
		work <- rel
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make(map[string]model.ParseResult, len(files)+len(skipped))
	for rel, r := range skipped {
		out[rel] = r
	}
	for r := range results {
		out[r.path] = r.parsed
	}
	return out
}

// Skipped reports whether r stands in for a file that was too large to parse.
func Skipped(r model.ParseResult) bool {
	for _, e := range r.Errors {
		if e.Code == CodeTooLarge {
			return true
		}
	}
	return false
}
