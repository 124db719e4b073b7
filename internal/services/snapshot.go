package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// SnapshotStore persists named JSON documents under a directory. Writes go
// through a temp file and rename so readers never observe a partial
// snapshot.
type SnapshotStore struct {
	dir    string
	logger *zap.Logger
}

// NewSnapshotStore creates a store rooted at dir, creating it if needed.
func NewSnapshotStore(dir string, logger *zap.Logger) (*SnapshotStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory %s: %w", dir, err)
	}
	return &SnapshotStore{dir: dir, logger: logger}, nil
}

// Save writes v as the snapshot for name, replacing any previous content.
func (s *SnapshotStore) Save(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot %s: %w", name, err)
	}

	final := s.path(name)
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating snapshot temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing snapshot %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing snapshot %s: %w", name, err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("committing snapshot %s: %w", name, err)
	}
	s.logger.Debug("snapshot saved", zap.String("name", name), zap.Int("bytes", len(data)))
	return nil
}

// Load reads the snapshot for name into out. A missing snapshot returns
// os.ErrNotExist wrapped.
func (s *SnapshotStore) Load(name string, out any) error {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return fmt.Errorf("reading snapshot %s: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding snapshot %s: %w", name, err)
	}
	return nil
}

// Exists reports whether a snapshot is present.
func (s *SnapshotStore) Exists(name string) bool {
	_, err := os.Stat(s.path(name))
	return err == nil
}

// Delete removes a snapshot. Deleting a missing snapshot is not an error.
func (s *SnapshotStore) Delete(name string) error {
	err := os.Remove(s.path(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting snapshot %s: %w", name, err)
	}
	return nil
}

// List returns the names of all stored snapshots, sorted.
func (s *SnapshotStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

func (s *SnapshotStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}
