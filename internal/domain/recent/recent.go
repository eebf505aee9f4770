// Package recent keeps the bounded, most-recent-first list of products a
// session has viewed.
package recent

import (
	"context"
	"slices"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/storage"
)

const (
	// StorageKey is the fixed namespace the list is persisted under.
	StorageKey = "recent-viewed"
	// Capacity is the maximum number of products kept.
	Capacity = 5
)

// Listener receives the committed list after every change.
type Listener func(items []product.Product)

// Store is the persistent recently-viewed list. Entries are unique by id and
// ordered most recent first.
type Store struct {
	storage storage.Store

	mu        sync.Mutex
	items     []product.Product
	listeners map[int]Listener
	nextID    int
}

// Open rehydrates the list from s. Snapshots holding more than Capacity
// entries or duplicate ids are normalized on load.
func Open(ctx context.Context, s storage.Store) (*Store, error) {
	st := &Store{storage: s, listeners: make(map[int]Listener)}

	data, err := s.Load(ctx, StorageKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return st, nil
	case err != nil:
		return nil, errors.Wrap(err, "load recent")
	}

	err = storage.DecodeSnapshot(data, func(d *jx.Decoder) error {
		var p product.Product
		if err := p.Decode(d); err != nil {
			return err
		}
		if len(st.items) < Capacity && !contains(st.items, p.ID) {
			st.items = append(st.items, p)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "rehydrate recent")
	}
	return st, nil
}

// Items returns a copy of the list, most recent first.
func (s *Store) Items() []product.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// Add records a view of p: any existing entry with the same id is dropped,
// p is put first and the list is truncated to Capacity.
func (s *Store) Add(ctx context.Context, p product.Product) error {
	s.mu.Lock()
	next := make([]product.Product, 0, Capacity)
	next = append(next, p)
	for _, it := range s.items {
		if len(next) == Capacity {
			break
		}
		if it.ID != p.ID {
			next = append(next, it)
		}
	}

	data := storage.EncodeSnapshot(len(next), func(e *jx.Encoder, i int) {
		next[i].Encode(e)
	})
	if err := s.storage.Save(ctx, StorageKey, data); err != nil {
		s.mu.Unlock()
		return errors.Wrap(err, "save recent")
	}
	s.items = next
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(slices.Clone(next))
	}
	return nil
}

// Subscribe registers fn for change notifications.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func contains(items []product.Product, id int) bool {
	return slices.ContainsFunc(items, func(p product.Product) bool { return p.ID == id })
}
