package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/jrsteele09/go-session-client/storage"
)

var _ storage.Store = (*MemStore)(nil)

// MemStore keeps everything in a map. Contents are lost when the process exits.
type MemStore struct {
	items map[string]string
	lock  sync.RWMutex
}

func New() *MemStore {
	return &MemStore{
		items: make(map[string]string),
	}
}

func (s *MemStore) Get(_ context.Context, key string) (string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	v, ok := s.items[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (s *MemStore) Set(_ context.Context, key, value string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.items[key] = value
	return nil
}

func (s *MemStore) Delete(_ context.Context, key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.items, key)
	return nil
}

func (s *MemStore) Keys(_ context.Context) ([]string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
