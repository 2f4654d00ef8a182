package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-login-portal/internal/errors"
	"github.com/jrsteele09/go-login-portal/internal/metrics"
	"github.com/jrsteele09/go-login-portal/internal/utils"
	"github.com/rs/zerolog/log"
)

var (
	_ TokenSource = (*Store)(nil)
	_ Invalidator = (*Store)(nil)
	_ AuthState   = (*Store)(nil)
	_ Writer      = (*Store)(nil)
)

// Store is the single owner of one Session. All mutations are serialised and
// persisted before subscribers are notified.
type Store struct {
	slot      string
	persister Persister

	mu       sync.RWMutex
	session  Session
	restored bool
	loaded   bool
	stored   bool
	pending  string

	listenersMu sync.Mutex
	listeners   map[int]func(Session)
	nextID      int
}

// Open returns a Store for slot without reading storage. Its status is
// StatusUnknown until Restore is called.
func Open(p Persister, slot string) *Store {
	return &Store{
		slot:      slot,
		persister: p,
		listeners: make(map[int]func(Session)),
	}
}

// NewStore opens the slot and restores it synchronously. A failed read
// leaves the store logged out.
func NewStore(ctx context.Context, p Persister, slot string) *Store {
	s := Open(p, slot)
	_ = s.Restore(ctx)
	return s
}

// Restore loads the slot. An absent or unreadable slot leaves the default
// session in place. A storage failure is returned so the caller may retry;
// the store still answers as logged out until then. Once the store has been
// mutated or loaded, later calls leave the live session alone.
func (s *Store) Restore(ctx context.Context) error {
	s.mu.RLock()
	done := s.loaded
	s.mu.RUnlock()
	if done {
		return nil
	}

	restored := Session{}
	stored := true
	data, err := s.persister.Load(context.WithoutCancel(ctx), s.slot)
	switch {
	case apperrors.Is(err, apperrors.ErrNotFound):
		stored = false
		log.Debug().Str("slot", s.slot).Msg("No persisted session, starting logged out")
	case err != nil:
		metrics.StorageErrors.WithLabelValues("load").Inc()
		log.Err(err).Str("slot", s.slot).Msg("Error getting session from storage")
		s.mu.Lock()
		s.restored = true
		s.mu.Unlock()
		return apperrors.Wrapf(err, "[session Restore] %s", s.slot)
	default:
		if restored, err = decode(data); err != nil {
			metrics.StorageErrors.WithLabelValues("decode").Inc()
			log.Err(err).Str("slot", s.slot).Msg("Error parsing persisted session")
			restored = Session{}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}
	s.session = restored
	s.restored = true
	s.loaded = true
	s.stored = stored
	return nil
}

// Slot returns the storage slot name.
func (s *Store) Slot() string {
	return s.slot
}

// State returns a copy of the current session.
func (s *Store) State() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.clone()
}

func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.restored {
		return StatusUnknown
	}
	return statusOf(s.session)
}

func (s *Store) IsAuthenticated() bool {
	return s.Status() == StatusAuthenticated
}

// AccessToken returns the current access token, if any.
func (s *Store) AccessToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return utils.Value(s.session.AccessToken), s.session.AccessToken != nil
}

// SetAuth replaces the tokens and derives the authenticated flag.
func (s *Store) SetAuth(ctx context.Context, t Tokens) {
	s.set(ctx, newSession(t))
}

// Logout clears every token. Calling it on a logged-out store rewrites the same
// cleared state, unless the slot was never written, in which case storage is
// left untouched.
func (s *Store) Logout(ctx context.Context) {
	s.set(ctx, Session{})
}

func (s *Store) set(ctx context.Context, next Session) {
	s.mu.Lock()
	unchanged := !s.stored && s.session.cleared() && next.cleared()
	s.session = next
	s.restored = true
	if !unchanged {
		s.loaded = true
		s.stored = s.persist(ctx, next) || s.stored
	}
	s.mu.Unlock()

	s.notify(next)
}

// persist is called with mu held so writes reach storage in mutation order.
// The caller's cancellation is dropped so an abandoned request still persists.
func (s *Store) persist(ctx context.Context, next Session) bool {
	data, err := encode(next)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("encode").Inc()
		log.Err(err).Str("slot", s.slot).Msg("Error serialising session")
		return false
	}
	if err := s.persister.Save(context.WithoutCancel(ctx), s.slot, data); err != nil {
		metrics.StorageErrors.WithLabelValues("save").Inc()
		log.Err(err).Str("slot", s.slot).Msg("Error setting session in storage")
		return false
	}
	return true
}

// Subscribe registers fn to be called with the new session after every mutation.
func (s *Store) Subscribe(fn func(Session)) (unsubscribe func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Store) notify(next Session) {
	s.listenersMu.Lock()
	fns := make([]func(Session), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(next.clone())
	}
}

// Acquire takes the store's pending-request token. Only one authentication
// operation may be in flight per store; others get ErrRequestPending.
func (s *Store) Acquire() (token string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != "" {
		return "", apperrors.ErrRequestPending
	}
	s.pending = uuid.NewString()
	return s.pending, nil
}

// Release returns a token taken by Acquire. Stale tokens are ignored.
func (s *Store) Release(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == token {
		s.pending = ""
	}
}

// Pending reports whether an authentication operation is in flight.
func (s *Store) Pending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending != ""
}
