package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jrsteele09/go-session-client/storage"
)

const defaultFileName = "session.json"

var _ storage.Store = (*FileStore)(nil)

// FileStore persists the whole key space as one JSON object on disk. Every write
// rewrites the file through a temporary file and a rename.
type FileStore struct {
	path  string
	items map[string]string
	lock  sync.RWMutex
}

// New opens (or creates on first write) the store file inside folder.
func New(folder string) (*FileStore, error) {
	return Open(filepath.Join(folder, defaultFileName))
}

// Open loads the store at path. A missing file is an empty store.
func Open(path string) (*FileStore, error) {
	s := &FileStore{
		path:  path,
		items: make(map[string]string),
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filestore.Open read: %w", err)
	}
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.items); err != nil {
		return nil, fmt.Errorf("filestore.Open decode %s: %w", path, err)
	}
	return s, nil
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(_ context.Context, key string) (string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	v, ok := s.items[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	prev, existed := s.items[key]
	s.items[key] = value
	if err := s.flush(); err != nil {
		if existed {
			s.items[key] = prev
		} else {
			delete(s.items, key)
		}
		return err
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	prev, existed := s.items[key]
	if !existed {
		return nil
	}
	delete(s.items, key)
	if err := s.flush(); err != nil {
		s.items[key] = prev
		return err
	}
	return nil
}

func (s *FileStore) Keys(_ context.Context) ([]string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// flush must be called with the write lock held.
func (s *FileStore) flush() error {
	raw, err := json.MarshalIndent(s.items, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("filestore mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("filestore temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore write: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filestore close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("filestore rename: %w", err)
	}
	return nil
}
