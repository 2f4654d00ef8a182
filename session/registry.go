package session

import (
	"context"
	"strings"
	"sync"
	"time"
)

type registryEntry struct {
	mu    sync.Mutex
	ready bool
	store *Store

	// lastUsed is guarded by Registry.mu.
	lastUsed time.Time
}

// Registry holds one Store per browser slot id. Stores persist to
// "<prefix>:<id>" in the shared Persister.
type Registry struct {
	persister Persister
	prefix    string
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type RegistryOption func(*Registry)

// WithRegistryNowTime sets the clock used for idle tracking (primarily for testing)
func WithRegistryNowTime(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

func NewRegistry(p Persister, prefix string, opts ...RegistryOption) *Registry {
	if prefix == "" {
		prefix = DefaultSlot
	}
	r := &Registry{
		persister: p,
		prefix:    prefix,
		now:       time.Now,
		entries:   make(map[string]*registryEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) slot(id string) string {
	return r.prefix + ":" + id
}

// For returns the store for id, restoring it from storage on first use.
// Concurrent callers for the same id share one Store and wait for its restore.
// A restore that failed on a storage error is tried again on the next call.
func (r *Registry) For(ctx context.Context, id string) *Store {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		e = &registryEntry{store: Open(r.persister, r.slot(id))}
		r.entries[id] = e
	}
	e.lastUsed = r.now()
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		e.ready = e.store.Restore(ctx) == nil
	}
	return e.store
}

// DeleteIdle drops the stores not used since idleSince and returns them.
// Stores with an operation in flight are kept. A dropped store's slot stays
// in storage and is restored by the next For.
func (r *Registry) DeleteIdle(idleSince time.Time) []*Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []*Store
	for id, e := range r.entries {
		if e.lastUsed.After(idleSince) || e.store.Pending() {
			continue
		}
		delete(r.entries, id)
		removed = append(removed, e.store)
	}
	return removed
}

// Holds reports whether store is the one cached for its slot.
func (r *Registry) Holds(store *Store) bool {
	id, ok := strings.CutPrefix(store.Slot(), r.prefix+":")
	if !ok {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	return ok && e.store == store
}

// Len is the number of cached stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
