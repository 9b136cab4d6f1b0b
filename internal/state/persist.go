package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileAdapter persists store snapshots as JSON on disk.
type FileAdapter struct {
	Path string
}

// NewFileAdapter returns an adapter writing to path.
func NewFileAdapter(path string) *FileAdapter {
	return &FileAdapter{Path: path}
}

// Load reads the last saved snapshot. A missing file yields an empty store.
func (a *FileAdapter) Load() (*Snapshot, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("corrupt state file %s: %w", a.Path, err)
	}
	return &snapshot, nil
}

// Save writes the snapshot atomically: temp file then rename.
func (a *FileAdapter) Save(snapshot *Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	dir := filepath.Dir(a.Path)
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), a.Path)
}
