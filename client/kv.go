package client

import (
	"errors"
	"sync"
)

// ErrKeyNotFound is returned when a key has no stored value
var ErrKeyNotFound = errors.New("key not found")

// KV is the small persistent store drafts and UI preferences live in
type KV interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

// MemoryKV is an in-memory KV for tests and throwaway sessions
type MemoryKV struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryKV creates an empty in-memory store
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{items: make(map[string]string)}
}

func (kv *MemoryKV) Get(key string) (string, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	value, ok := kv.items[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return value, nil
}

func (kv *MemoryKV) Set(key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.items[key] = value
	return nil
}

func (kv *MemoryKV) Delete(key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.items, key)
	return nil
}

func (kv *MemoryKV) Close() error {
	return nil
}
