package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mcpchecker/wfeval/pkg/util"
)

// FileStore keeps one JSON file per layer.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(layer int) string {
	return filepath.Join(s.dir, fmt.Sprintf("layer_%d_checkpoint.json", layer))
}

func (s *FileStore) Load(layer int) (*Entry, error) {
	data, err := os.ReadFile(s.path(layer))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint for layer %d: %w", layer, err)
	}

	entry := &Entry{}
	if err := json.Unmarshal(data, entry); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint for layer %d: %w", layer, err)
	}
	entry.normalize()

	return entry, nil
}

func (s *FileStore) Save(entry *Entry) error {
	entry.UpdatedAt = time.Now().UTC()
	if err := util.WriteJSONAtomic(s.path(entry.Layer), entry); err != nil {
		return fmt.Errorf("failed to save checkpoint for layer %d: %w", entry.Layer, err)
	}

	return nil
}

func (s *FileStore) Clear(layer int) error {
	err := os.Remove(s.path(layer))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear checkpoint for layer %d: %w", layer, err)
	}

	return nil
}

func (s *FileStore) ClearAll() error {
	matches, err := filepath.Glob(filepath.Join(s.dir, "layer_*_checkpoint.json"))
	if err != nil {
		return fmt.Errorf("failed to clear checkpoints: %w", err)
	}

	var errs []error
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to clear checkpoints: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
