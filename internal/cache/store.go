package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned by a Store when no entry exists for a key.
var ErrNotFound = errors.New("cache entry not found")

// Store persists serialized cache entries per renderer and key hash.
type Store interface {
	Get(renderer, keyHash string) ([]byte, error)
	Put(renderer, keyHash string, data []byte) error
}

// Inventory is a Store whose entries can be listed and removed.
type Inventory interface {
	Store
	List() ([]EntryInfo, error)
	Delete(renderer, keyHash string) error
}

// EntryInfo describes one persisted entry.
type EntryInfo struct {
	Renderer string
	KeyHash  string
	Size     int64
	Modified time.Time
}

// FileStore keeps one JSON file per entry under <dir>/<renderer>/<hash>.json.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates a file store rooted at dir
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the root directory of the store
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(renderer, keyHash string) string {
	return filepath.Join(s.dir, renderer, keyHash+".json")
}

// Get reads the entry file for a key
func (s *FileStore) Get(renderer, keyHash string) ([]byte, error) {
	data, err := os.ReadFile(s.path(renderer, keyHash))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	return data, nil
}

// Put atomically writes the entry file for a key (temp file → rename)
func (s *FileStore) Put(renderer, keyHash string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirPath := filepath.Join(s.dir, renderer)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	// Write to a temp file in the same directory so the rename stays atomic
	file, err := os.CreateTemp(dirPath, keyHash+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := file.Name()

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	// Sync to disk
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	file.Close()

	if err := os.Rename(tempPath, s.path(renderer, keyHash)); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// List returns all entries currently on disk
func (s *FileStore) List() ([]EntryInfo, error) {
	var entries []EntryInfo

	rendererDirs, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list cache directory: %w", err)
	}

	for _, rendererDir := range rendererDirs {
		if !rendererDir.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(s.dir, rendererDir.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to list cache directory: %w", err)
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			info, err := f.Info()
			if err != nil {
				continue
			}
			entries = append(entries, EntryInfo{
				Renderer: rendererDir.Name(),
				KeyHash:  strings.TrimSuffix(f.Name(), ".json"),
				Size:     info.Size(),
				Modified: info.ModTime(),
			})
		}
	}

	return entries, nil
}

// Delete removes the entry file for a key
func (s *FileStore) Delete(renderer, keyHash string) error {
	err := os.Remove(s.path(renderer, keyHash))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove cache file: %w", err)
	}
	return nil
}
