// Package store keeps in-memory mirrors of database rows for presentation layers.
//
// A Store owns an ordered list and an id index that always agree with each other.
// Reads hand out copies; writes notify subscribers after the data has changed.
package store

import (
	"sync"
)

// Op names the kind of change a subscriber is told about.
type Op string

const (
	OpReset   Op = "reset"
	OpInsert  Op = "insert"
	OpReplace Op = "replace"
	OpRemove  Op = "remove"
)

// Change describes one mutation of a Store. IDs lists the affected entries; it is
// empty for OpReset.
type Change struct {
	Store string `json:"store"`
	Op    Op     `json:"op"`
	IDs   []uint `json:"ids,omitempty"`
}

// Observer receives changes. It is called synchronously after the store lock is
// released, so it may read the store but should return quickly.
type Observer func(Change)

// Store is an ordered collection of T indexed by id.
type Store[T any] struct {
	name  string
	id    func(T) uint
	clone func(T) T

	mu    sync.RWMutex
	items []T
	index map[uint]int

	subMu     sync.Mutex
	nextSub   int
	observers map[int]Observer
}

// Option configures a Store.
type Option[T any] func(*Store[T])

// WithClone sets the function used to copy entries in and out of the store.
func WithClone[T any](clone func(T) T) Option[T] {
	return func(s *Store[T]) {
		s.clone = clone
	}
}

// New returns an empty Store named name. id extracts the identity of an entry.
func New[T any](name string, id func(T) uint, opts ...Option[T]) *Store[T] {
	s := &Store[T]{
		name:      name,
		id:        id,
		clone:     func(v T) T { return v },
		index:     make(map[uint]int),
		observers: make(map[int]Observer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the store name used in change notifications.
func (s *Store[T]) Name() string {
	return s.name
}

// Reset replaces the whole content of the store.
func (s *Store[T]) Reset(items []T) {
	s.mu.Lock()
	s.items = make([]T, 0, len(items))
	for _, item := range items {
		s.items = append(s.items, s.clone(item))
	}
	s.reindex()
	s.mu.Unlock()

	s.notify(Change{Store: s.name, Op: OpReset})
}

// Prepend inserts item at the head of the list. An existing entry with the same
// id is removed first.
func (s *Store[T]) Prepend(item T) {
	id := s.id(item)
	s.mu.Lock()
	s.removeLocked(id)
	s.items = append([]T{s.clone(item)}, s.items...)
	s.reindex()
	s.mu.Unlock()

	s.notify(Change{Store: s.name, Op: OpInsert, IDs: []uint{id}})
}

// Append inserts item at the tail of the list. An existing entry with the same
// id is removed first.
func (s *Store[T]) Append(item T) {
	id := s.id(item)
	s.mu.Lock()
	if s.removeLocked(id) {
		s.reindex()
	}
	s.items = append(s.items, s.clone(item))
	s.index[id] = len(s.items) - 1
	s.mu.Unlock()

	s.notify(Change{Store: s.name, Op: OpInsert, IDs: []uint{id}})
}

// Replace swaps the entry with the same id in place. It reports false when no
// such entry exists.
func (s *Store[T]) Replace(item T) bool {
	id := s.id(item)
	s.mu.Lock()
	pos, ok := s.index[id]
	if ok {
		s.items[pos] = s.clone(item)
	}
	s.mu.Unlock()

	if ok {
		s.notify(Change{Store: s.name, Op: OpReplace, IDs: []uint{id}})
	}
	return ok
}

// Update applies fn to the entry with id in place. It reports false when no such
// entry exists. fn must not change the id.
func (s *Store[T]) Update(id uint, fn func(*T)) bool {
	s.mu.Lock()
	pos, ok := s.index[id]
	if ok {
		fn(&s.items[pos])
	}
	s.mu.Unlock()

	if ok {
		s.notify(Change{Store: s.name, Op: OpReplace, IDs: []uint{id}})
	}
	return ok
}

// Remove deletes the entry with id. It reports whether an entry was removed.
func (s *Store[T]) Remove(id uint) bool {
	s.mu.Lock()
	ok := s.removeLocked(id)
	if ok {
		s.reindex()
	}
	s.mu.Unlock()

	if ok {
		s.notify(Change{Store: s.name, Op: OpRemove, IDs: []uint{id}})
	}
	return ok
}

// RemoveFunc deletes every entry for which match returns true and returns the
// removed ids in list order.
func (s *Store[T]) RemoveFunc(match func(T) bool) []uint {
	s.mu.Lock()
	kept := s.items[:0]
	var removed []uint
	for _, item := range s.items {
		if match(item) {
			removed = append(removed, s.id(item))
			continue
		}
		kept = append(kept, item)
	}
	var zero T
	for i := len(kept); i < len(s.items); i++ {
		s.items[i] = zero
	}
	s.items = kept
	if len(removed) > 0 {
		s.reindex()
	}
	s.mu.Unlock()

	if len(removed) > 0 {
		s.notify(Change{Store: s.name, Op: OpRemove, IDs: removed})
	}
	return removed
}

// Get returns a copy of the entry with id.
func (s *Store[T]) Get(id uint) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.index[id]
	if !ok {
		var zero T
		return zero, false
	}
	return s.clone(s.items[pos]), true
}

// Has reports whether an entry with id exists.
func (s *Store[T]) Has(id uint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[id]
	return ok
}

// All returns a copy of the list in order.
func (s *Store[T]) All() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, s.clone(item))
	}
	return out
}

// Len returns the number of entries.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Subscribe registers fn for change notifications and returns a function that
// cancels the subscription.
func (s *Store[T]) Subscribe(fn Observer) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.observers[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.observers, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store[T]) notify(change Change) {
	s.subMu.Lock()
	observers := make([]Observer, 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.subMu.Unlock()

	for _, fn := range observers {
		fn(change)
	}
}

func (s *Store[T]) removeLocked(id uint) bool {
	pos, ok := s.index[id]
	if !ok {
		return false
	}
	s.items = append(s.items[:pos], s.items[pos+1:]...)
	delete(s.index, id)
	return true
}

func (s *Store[T]) reindex() {
	clear(s.index)
	for pos, item := range s.items {
		s.index[s.id(item)] = pos
	}
}
