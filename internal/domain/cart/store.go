package cart

import (
	"context"
	"slices"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/storage"
)

// Listener receives the committed item list after every mutation.
type Listener func(items []Item)

// Store is the persistent cart. Mutations are serialized by an internal
// mutex, written to the storage adapter, and only then committed to memory,
// so a failed save leaves the previous state in place.
type Store struct {
	storage storage.Store

	mu        sync.Mutex
	items     []Item
	listeners map[int]Listener
	nextID    int
}

// Open rehydrates the cart from s. A missing snapshot yields an empty cart.
func Open(ctx context.Context, s storage.Store) (*Store, error) {
	st := &Store{storage: s, listeners: make(map[int]Listener)}

	data, err := s.Load(ctx, StorageKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return st, nil
	case err != nil:
		return nil, errors.Wrap(err, "load cart")
	}

	err = storage.DecodeSnapshot(data, func(d *jx.Decoder) error {
		it, err := decodeItem(d)
		if err != nil {
			return err
		}
		if it.Quantity > 0 && st.index(it.ID) < 0 {
			st.items = append(st.items, it)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "rehydrate cart")
	}
	return st, nil
}

// Items returns a copy of the cart lines in insertion order.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// Totals returns subtotal, total and savings for the current contents.
func (s *Store) Totals() Totals {
	return Compute(s.Items())
}

// Add puts one unit of p into the cart. A product already in the cart gets
// its quantity incremented and keeps the final price it was first added
// with. A zero finalPrice means "not supplied" and falls back to p.Price.
func (s *Store) Add(ctx context.Context, p product.Product, finalPrice decimal.Decimal) error {
	return s.mutate(ctx, func(items []Item) []Item {
		if i := indexOf(items, p.ID); i >= 0 {
			items[i].Quantity++
			return items
		}
		price := finalPrice
		if price.IsZero() {
			price = p.Price
		}
		return append(items, Item{Product: p, Quantity: 1, FinalPrice: price})
	})
}

// UpdateQuantity sets the quantity of the item with id. A quantity of zero
// or less removes the item. Unknown ids are ignored.
func (s *Store) UpdateQuantity(ctx context.Context, id, quantity int) error {
	return s.mutate(ctx, func(items []Item) []Item {
		i := indexOf(items, id)
		if i < 0 {
			return items
		}
		if quantity <= 0 {
			return slices.Delete(items, i, i+1)
		}
		items[i].Quantity = quantity
		return items
	})
}

// Remove deletes the item with id. Removing an absent id is a no-op.
func (s *Store) Remove(ctx context.Context, id int) error {
	return s.mutate(ctx, func(items []Item) []Item {
		return slices.DeleteFunc(items, func(it Item) bool { return it.ID == id })
	})
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, func([]Item) []Item { return nil })
}

// Subscribe registers fn to be called after every committed mutation and
// returns a function that unregisters it.
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

// mutate applies fn to a copy of the items, persists the result and commits
// it. Listeners run after the lock is released.
func (s *Store) mutate(ctx context.Context, fn func([]Item) []Item) error {
	s.mu.Lock()
	next := fn(slices.Clone(s.items))
	data := storage.EncodeSnapshot(len(next), func(e *jx.Encoder, i int) {
		encodeItem(e, next[i])
	})
	if err := s.storage.Save(ctx, StorageKey, data); err != nil {
		s.mu.Unlock()
		return errors.Wrap(err, "save cart")
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

func (s *Store) index(id int) int {
	return indexOf(s.items, id)
}

func indexOf(items []Item, id int) int {
	return slices.IndexFunc(items, func(it Item) bool { return it.ID == id })
}
