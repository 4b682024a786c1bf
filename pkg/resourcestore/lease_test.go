package resourcestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaseAcquireAndRelease(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	ok, err := s.TryAcquireLease(ctx, "job-1", "owner-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// A live lease held by someone else loses the race.
	ok, err = s.TryAcquireLease(ctx, "job-1", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// Re-acquiring your own lease extends it.
	ok, err = s.TryAcquireLease(ctx, "job-1", "owner-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	released, err := s.ReleaseLease(ctx, "job-1", "owner-a")
	require.NoError(t, err)
	assert.True(t, released)

	ok, err = s.TryAcquireLease(ctx, "job-1", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLeaseReclaimAfterExpiry(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	ok, err := s.TryAcquireLease(ctx, "job-1", "owner-a", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(25 * time.Millisecond)

	ok, err = s.TryAcquireLease(ctx, "job-1", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// The original owner can no longer release it.
	released, err := s.ReleaseLease(ctx, "job-1", "owner-a")
	require.NoError(t, err)
	assert.False(t, released)
}

func TestLeaseIsPerResource(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	ok, err := s.TryAcquireLease(ctx, "job-1", "owner-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.TryAcquireLease(ctx, "job-2", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLeaseRequiresIDAndOwner(t *testing.T) {
	s := openTestStore(t)
	_, err := s.TryAcquireLease(context.Background(), "", "owner", time.Minute)
	assert.Error(t, err)
	_, err = s.TryAcquireLease(context.Background(), "job-1", "", time.Minute)
	assert.Error(t, err)
}
