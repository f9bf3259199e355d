package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const datasetsRootKey = "datasetsRoot"

// Store is a small file-backed key-value settings store. The worker reads
// the datasets root from it once per tick, so runtime changes take effect
// on the next tick without a restart.
type Store struct {
	mu      sync.RWMutex
	path    string
	dataDir string
	values  map[string]string
}

func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	store := &Store{
		path:    filepath.Join(baseDir, "settings.json"),
		dataDir: baseDir,
	}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = map[string]string{}

	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("open settings file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&s.values); err != nil {
		if errors.Is(err, io.EOF) {
			return s.saveLocked()
		}
		return fmt.Errorf("decode settings file: %w", err)
	}

	if s.values == nil {
		s.values = map[string]string{}
	}
	return nil
}

// DatasetsRoot returns the configured datasets root, falling back to the
// conventional datasets directory under the data dir when unset.
func (s *Store) DatasetsRoot() string {
	s.mu.RLock()
	root := s.values[datasetsRootKey]
	s.mu.RUnlock()

	if root == "" {
		return filepath.Join(s.dataDir, "datasets")
	}
	return root
}

func (s *Store) SetDatasetsRoot(root string) error {
	return s.Set(datasetsRootKey, root)
}

func (s *Store) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "settings-*.json")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s.values); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode settings: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp settings: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace settings file: %w", err)
	}

	return nil
}
