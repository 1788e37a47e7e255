package datastore

import (
	"context"

	"github.com/patrickmn/go-cache"
)

// MemoryKV keeps values in process memory. Nothing survives a restart.
type MemoryKV struct {
	cache *cache.Cache
}

// NewMemoryKV creates an empty in-memory store
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{cache: cache.New(cache.NoExpiration, 0)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.cache.Get(key)
	if !ok {
		return "", false, nil
	}
	s, _ := v.(string)
	return s, true, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.cache.Set(key, value, cache.NoExpiration)
	return nil
}

func (m *MemoryKV) Close() error {
	m.cache.Flush()
	return nil
}
