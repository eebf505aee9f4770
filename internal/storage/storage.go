// Package storage provides the durable key-value persistence used by the
// client-state stores (cart, recently viewed). Each store owns one fixed key;
// values are opaque snapshots written and read whole.
package storage

import (
	"context"
	"strings"
	"sync"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned by Load when nothing has been saved under the key.
var ErrNotFound = errors.New("snapshot not found")

// Store persists whole snapshots under string keys.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// Pinger is implemented by stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

var _ Store = (*Memory)(nil)

// Memory is an in-process Store. It is the default backend for local runs
// and the adapter used in tests.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

// Keys returns the stored keys with the given prefix.
func (m *Memory) Keys(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Scoped prefixes every key with scope, giving each session its own
// namespace inside a shared backend.
func Scoped(s Store, scope string) Store {
	return &scoped{store: s, prefix: scope + ":"}
}

type scoped struct {
	store  Store
	prefix string
}

func (s *scoped) Load(ctx context.Context, key string) ([]byte, error) {
	return s.store.Load(ctx, s.prefix+key)
}

func (s *scoped) Save(ctx context.Context, key string, data []byte) error {
	return s.store.Save(ctx, s.prefix+key, data)
}

func (s *scoped) Delete(ctx context.Context, key string) error {
	return s.store.Delete(ctx, s.prefix+key)
}
