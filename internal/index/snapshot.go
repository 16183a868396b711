package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/phobologic/docref/internal/config"
	"github.com/phobologic/docref/internal/model"
)

// SnapshotPath returns the absolute snapshot location for root.
func SnapshotPath(root string, cfg *config.Config) string {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return filepath.Join(root, filepath.FromSlash(cfg.Index.Path))
}

// Write serializes idx to path, replacing any previous snapshot. The file is
// written to a temporary sibling and renamed into place.
func Write(idx *model.Index, path string) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".reference-index-*.json")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp index: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace index: %w", err)
	}
	return nil
}

// Load reads a snapshot written by Write. A missing file is reported with an
// error wrapping fs.ErrNotExist.
func Load(path string) (*model.Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	idx := model.NewIndex("")
	if err := json.Unmarshal(data, idx); err != nil {
		return nil, fmt.Errorf("parse index %s: %w", path, err)
	}
	if idx.Features == nil {
		idx.Features = map[string]*model.Feature{}
	}
	if idx.Code == nil {
		idx.Code = map[string]*model.CodeFile{}
	}
	if idx.Interfaces == nil {
		idx.Interfaces = map[string]*model.Interface{}
	}
	if idx.Terms == nil {
		idx.Terms = map[string]*model.TermEntry{}
	}
	return idx, nil
}
