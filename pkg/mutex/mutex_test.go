package mutex

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memLeases is an in-memory Leases implementation with the same conditional
// semantics as the store-backed one.
type memLeases struct {
	mu     sync.Mutex
	owners map[string]string
	expiry map[string]time.Time
}

func newMemLeases() *memLeases {
	return &memLeases{owners: map[string]string{}, expiry: map[string]time.Time{}}
}

func (m *memLeases) TryAcquireLease(_ context.Context, resourceID, owner string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	current, held := m.owners[resourceID]
	if held && current != owner && m.expiry[resourceID].After(now) {
		return false, nil
	}
	m.owners[resourceID] = owner
	m.expiry[resourceID] = now.Add(ttl)
	return true, nil
}

func (m *memLeases) ReleaseLease(_ context.Context, resourceID, owner string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owners[resourceID] != owner {
		return false, nil
	}
	delete(m.owners, resourceID)
	delete(m.expiry, resourceID)
	return true, nil
}

func TestLockUnlock(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(newMemLeases(), Config{}, nil)

	lease, err := f.Lock(ctx, "job-1")
	require.NoError(t, err)
	require.NotEmpty(t, lease.Owner())
	require.NoError(t, lease.Unlock(ctx))
}

func TestLockTimesOutWhenHeld(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(newMemLeases(), Config{
		TTL:            time.Minute,
		AcquireTimeout: 60 * time.Millisecond,
		RetryInterval:  10 * time.Millisecond,
	}, nil)

	lease, err := f.Lock(ctx, "job-1")
	require.NoError(t, err)
	defer func() { _ = lease.Unlock(ctx) }()

	_, err = f.Lock(ctx, "job-1")
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestUnlockTwiceSignalsNotOwned(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(newMemLeases(), Config{}, nil)

	lease, err := f.Lock(ctx, "job-1")
	require.NoError(t, err)
	require.NoError(t, lease.Unlock(ctx))
	assert.ErrorIs(t, lease.Unlock(ctx), ErrLockNotOwned)
}

func TestExpiredLeaseIsReclaimed(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(newMemLeases(), Config{
		TTL:            20 * time.Millisecond,
		AcquireTimeout: time.Second,
		RetryInterval:  5 * time.Millisecond,
	}, nil)

	stale, err := f.Lock(ctx, "job-1")
	require.NoError(t, err)

	// No unlock; the lease must expire and be reclaimed.
	fresh, err := f.Lock(ctx, "job-1")
	require.NoError(t, err)
	require.NoError(t, fresh.Unlock(ctx))

	assert.ErrorIs(t, stale.Unlock(ctx), ErrLockNotOwned)
}

func TestWithLockSerializesCriticalSections(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(newMemLeases(), Config{
		TTL:            time.Minute,
		AcquireTimeout: 5 * time.Second,
		RetryInterval:  time.Millisecond,
	}, nil)

	var inside, maxInside int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.WithLock(ctx, "job-1", func(context.Context) error {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()

				time.Sleep(2 * time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInside)
}

func TestWithLockReleasesOnError(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(newMemLeases(), Config{}, nil)

	err := f.WithLock(ctx, "job-1", func(context.Context) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	// Lock must be free again.
	lease, err := f.Lock(ctx, "job-1")
	require.NoError(t, err)
	require.NoError(t, lease.Unlock(ctx))
}
