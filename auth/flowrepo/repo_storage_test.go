package flowrepo_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-login-portal/auth/flowrepo"
	apperrors "github.com/jrsteele09/go-login-portal/internal/errors"
	"github.com/jrsteele09/go-login-portal/storage/memory"
	"github.com/stretchr/testify/require"
)

func TestStorageRepo(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	flow := flowrepo.FlowState{
		Slot:         "auth-storage:abc",
		CodeVerifier: "verifier",
		Nonce:        "nonce",
	}

	t.Run("put then take", func(t *testing.T) {
		repo := flowrepo.NewStorageRepo(memory.New(), flowrepo.WithNowTime(clock))
		require.NoError(t, repo.Put(ctx, "state-1", flow))

		got, err := repo.Take(ctx, "state-1")
		require.NoError(t, err)
		require.Equal(t, flow.Slot, got.Slot)
		require.Equal(t, flow.CodeVerifier, got.CodeVerifier)
		require.Equal(t, flow.Nonce, got.Nonce)
		require.True(t, now.Equal(got.CreatedAt))
	})

	t.Run("state is single use", func(t *testing.T) {
		repo := flowrepo.NewStorageRepo(memory.New(), flowrepo.WithNowTime(clock))
		require.NoError(t, repo.Put(ctx, "state-1", flow))

		_, err := repo.Take(ctx, "state-1")
		require.NoError(t, err)
		_, err = repo.Take(ctx, "state-1")
		require.ErrorIs(t, err, apperrors.ErrInvalidState)
	})

	t.Run("unknown and empty state", func(t *testing.T) {
		repo := flowrepo.NewStorageRepo(memory.New())
		_, err := repo.Take(ctx, "missing")
		require.ErrorIs(t, err, apperrors.ErrInvalidState)
		_, err = repo.Take(ctx, "")
		require.ErrorIs(t, err, apperrors.ErrInvalidState)
		require.Error(t, repo.Put(ctx, "", flow))
	})

	t.Run("expired flow", func(t *testing.T) {
		current := now
		repo := flowrepo.NewStorageRepo(memory.New(),
			flowrepo.WithTTL(time.Minute),
			flowrepo.WithNowTime(func() time.Time { return current }))
		require.NoError(t, repo.Put(ctx, "state-1", flow))

		current = now.Add(2 * time.Minute)
		_, err := repo.Take(ctx, "state-1")
		require.ErrorIs(t, err, apperrors.ErrInvalidState)
	})
}

func TestStorageRepo_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	current := start
	slots := memory.New()
	repo := flowrepo.NewStorageRepo(slots,
		flowrepo.WithTTL(10*time.Minute),
		flowrepo.WithNowTime(func() time.Time { return current }))

	require.NoError(t, repo.Put(ctx, "abandoned", flowrepo.FlowState{Slot: "auth-storage:a"}))
	current = start.Add(8 * time.Minute)
	require.NoError(t, repo.Put(ctx, "recent", flowrepo.FlowState{Slot: "auth-storage:b"}))
	require.NoError(t, slots.Save(ctx, "auth-flow:garbage", []byte("not json")))
	require.NoError(t, slots.Save(ctx, "auth-storage:a", []byte("{}")))

	current = start.Add(11 * time.Minute)
	removed, err := repo.DeleteExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	left, err := slots.List(ctx, "auth-")
	require.NoError(t, err)
	require.Equal(t, []string{"auth-flow:recent", "auth-storage:a"}, left)

	got, err := repo.Take(ctx, "recent")
	require.NoError(t, err)
	require.Equal(t, "auth-storage:b", got.Slot)

	removed, err = repo.DeleteExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, removed)
}

// expiringStore records the TTLs flows are saved with.
type expiringStore struct {
	*memory.Store
	mu   sync.Mutex
	ttls map[string]time.Duration
}

func (s *expiringStore) SaveWithTTL(ctx context.Context, slot string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	s.ttls[slot] = ttl
	s.mu.Unlock()
	return s.Store.Save(ctx, slot, value)
}

func TestStorageRepo_PutUsesStorageExpiry(t *testing.T) {
	ctx := context.Background()
	slots := &expiringStore{Store: memory.New(), ttls: map[string]time.Duration{}}

	repo := flowrepo.NewStorageRepo(slots)
	require.NoError(t, repo.Put(ctx, "state-1", flowrepo.FlowState{Slot: "auth-storage:a"}))
	require.Equal(t, flowrepo.DefaultTTL, slots.ttls["auth-flow:state-1"])

	_, err := repo.Take(ctx, "state-1")
	require.NoError(t, err)
}
