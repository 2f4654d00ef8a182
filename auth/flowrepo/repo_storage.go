package flowrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/go-login-portal/internal/errors"
)

const (
	slotPrefix = "auth-flow:"

	// DefaultTTL bounds how long a user may spend at the identity provider.
	DefaultTTL = 10 * time.Minute
)

// Slots is the subset of storage.Storage the repo needs.
type Slots interface {
	Load(ctx context.Context, slot string) ([]byte, error)
	Save(ctx context.Context, slot string, value []byte) error
	Remove(ctx context.Context, slot string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// expiringSlots is implemented by storage that can drop a slot on its own.
type expiringSlots interface {
	SaveWithTTL(ctx context.Context, slot string, value []byte, ttl time.Duration) error
}

// StorageRepo keeps flows in the same durable storage as sessions, so a
// callback can land on any portal instance sharing that storage.
type StorageRepo struct {
	slots Slots
	ttl   time.Duration
	now   func() time.Time
}

var _ Repo = (*StorageRepo)(nil)

type Option func(*StorageRepo)

func WithTTL(ttl time.Duration) Option {
	return func(r *StorageRepo) {
		r.ttl = ttl
	}
}

// WithNowTime sets the clock (primarily for testing)
func WithNowTime(now func() time.Time) Option {
	return func(r *StorageRepo) {
		r.now = now
	}
}

func NewStorageRepo(slots Slots, opts ...Option) *StorageRepo {
	r := &StorageRepo{slots: slots, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *StorageRepo) Put(ctx context.Context, state string, flow FlowState) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = r.now()
	}
	data, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("[flowrepo Put] encode: %w", err)
	}
	if err := r.save(ctx, slotPrefix+state, data); err != nil {
		return fmt.Errorf("[flowrepo Put] save: %w", err)
	}
	return nil
}

func (r *StorageRepo) save(ctx context.Context, slot string, data []byte) error {
	if es, ok := r.slots.(expiringSlots); ok {
		return es.SaveWithTTL(ctx, slot, data, r.ttl)
	}
	return r.slots.Save(ctx, slot, data)
}

// Take returns errors.ErrInvalidState for unknown, reused or expired states.
func (r *StorageRepo) Take(ctx context.Context, state string) (FlowState, error) {
	if state == "" {
		return FlowState{}, apperrors.ErrInvalidState
	}

	data, err := r.slots.Load(ctx, slotPrefix+state)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return FlowState{}, apperrors.ErrInvalidState
	}
	if err != nil {
		return FlowState{}, fmt.Errorf("[flowrepo Take] load: %w", err)
	}
	if err := r.slots.Remove(ctx, slotPrefix+state); err != nil {
		return FlowState{}, fmt.Errorf("[flowrepo Take] remove: %w", err)
	}

	var flow FlowState
	if err := json.Unmarshal(data, &flow); err != nil {
		return FlowState{}, apperrors.Wrapf(apperrors.ErrInvalidState, "[flowrepo Take] decode")
	}
	if r.now().Sub(flow.CreatedAt) > r.ttl {
		return FlowState{}, apperrors.Wrapf(apperrors.ErrInvalidState, "[flowrepo Take] expired")
	}
	return flow, nil
}

// DeleteExpired removes flows older than the TTL, along with any that no
// longer decode. Flows abandoned at the identity provider are never taken,
// so storage without its own expiry needs this run periodically.
func (r *StorageRepo) DeleteExpired(ctx context.Context) (int, error) {
	slots, err := r.slots.List(ctx, slotPrefix)
	if err != nil {
		return 0, fmt.Errorf("[flowrepo DeleteExpired] list: %w", err)
	}

	expiryTime := r.now().Add(-r.ttl)
	removed := 0
	for _, slot := range slots {
		data, err := r.slots.Load(ctx, slot)
		if apperrors.Is(err, apperrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("[flowrepo DeleteExpired] load: %w", err)
		}

		var flow FlowState
		if err := json.Unmarshal(data, &flow); err == nil && !flow.CreatedAt.Before(expiryTime) {
			continue
		}
		if err := r.slots.Remove(ctx, slot); err != nil {
			return removed, fmt.Errorf("[flowrepo DeleteExpired] remove: %w", err)
		}
		removed++
	}
	return removed, nil
}
