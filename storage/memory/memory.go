package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	apperrors "github.com/jrsteele09/go-login-portal/internal/errors"
)

// Store is an in-memory slot store. Values are copied in and out.
type Store struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

func New() *Store {
	return &Store{
		slots: make(map[string][]byte),
	}
}

func (s *Store) Load(_ context.Context, slot string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.slots[slot]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) Save(_ context.Context, slot string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.slots[slot] = append([]byte(nil), value...)
	return nil
}

// Remove deletes a slot. Removing a missing slot is not an error.
func (s *Store) Remove(_ context.Context, slot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.slots, slot)
	return nil
}

func (s *Store) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var slots []string
	for slot := range s.slots {
		if strings.HasPrefix(slot, prefix) {
			slots = append(slots, slot)
		}
	}
	slices.Sort(slots)
	return slots, nil
}

func (s *Store) Close() error {
	return nil
}
