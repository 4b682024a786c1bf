// Package mutex provides a per-resource advisory lock built on conditional
// writes against the resource store's lease table.
//
// The lock is a lease with an expiry rather than an unbounded hold: a crashed
// holder cannot wedge a resource forever because the next acquirer reclaims
// the expired lease atomically. All job state mutations take this lock keyed
// by the job id, which serializes concurrent operations on the same job
// across process instances.
package mutex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Errors returned by lock operations.
var (
	// ErrLockTimeout indicates acquisition did not succeed within the bound.
	ErrLockTimeout = errors.New("lock acquisition timed out")

	// ErrLockNotOwned indicates an unlock with a token that no longer holds
	// the lease. The unlock itself is a no-op.
	ErrLockNotOwned = errors.New("lock not owned")
)

// Leases is the conditional-write surface the mutex needs from the store.
type Leases interface {
	TryAcquireLease(ctx context.Context, resourceID, owner string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, resourceID, owner string) (bool, error)
}

// Config tunes lease lifetime and acquisition behavior.
type Config struct {
	// TTL is the lease lifetime. A holder that dies is reclaimable after TTL.
	// Zero uses DefaultTTL.
	TTL time.Duration

	// AcquireTimeout bounds how long Lock retries before ErrLockTimeout.
	// Zero uses DefaultAcquireTimeout.
	AcquireTimeout time.Duration

	// RetryInterval is the initial backoff between acquisition attempts; it
	// doubles up to maxRetryInterval. Zero uses DefaultRetryInterval.
	RetryInterval time.Duration
}

// Defaults for Config.
const (
	DefaultTTL            = 60 * time.Second
	DefaultAcquireTimeout = 30 * time.Second
	DefaultRetryInterval  = 25 * time.Millisecond

	maxRetryInterval = 500 * time.Millisecond
)

// Factory creates locks over a shared lease table.
type Factory struct {
	leases Leases
	cfg    Config
	log    *zap.Logger
}

// NewFactory creates a lock factory.
func NewFactory(leases Leases, cfg Config, log *zap.Logger) *Factory {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultAcquireTimeout
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Factory{leases: leases, cfg: cfg, log: log}
}

// Lease is a held lock. Release it with Unlock.
type Lease struct {
	factory    *Factory
	resourceID string
	owner      string
}

// Owner returns the owner token of the held lease.
func (l *Lease) Owner() string { return l.owner }

// Lock acquires the exclusive lock for resourceID, retrying with backoff
// until acquired, the context is done, or AcquireTimeout elapses.
func (f *Factory) Lock(ctx context.Context, resourceID string) (*Lease, error) {
	owner := uuid.New().String()
	deadline := time.Now().Add(f.cfg.AcquireTimeout)
	interval := f.cfg.RetryInterval

	for {
		ok, err := f.leases.TryAcquireLease(ctx, resourceID, owner, f.cfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", resourceID, err)
		}
		if ok {
			return &Lease{factory: f, resourceID: resourceID, owner: owner}, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, resourceID)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
		if interval < maxRetryInterval {
			interval *= 2
			if interval > maxRetryInterval {
				interval = maxRetryInterval
			}
		}
	}
}

// Unlock releases the lease. A mismatched or expired token signals
// ErrLockNotOwned and changes nothing.
func (l *Lease) Unlock(ctx context.Context) error {
	ok, err := l.factory.leases.ReleaseLease(ctx, l.resourceID, l.owner)
	if err != nil {
		return fmt.Errorf("unlock %s: %w", l.resourceID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLockNotOwned, l.resourceID)
	}
	return nil
}

// WithLock runs fn while holding the lock for resourceID. The lock is
// released on every exit path, including panics.
func (f *Factory) WithLock(ctx context.Context, resourceID string, fn func(ctx context.Context) error) error {
	lease, err := f.Lock(ctx, resourceID)
	if err != nil {
		return err
	}
	defer func() {
		if err := lease.Unlock(context.WithoutCancel(ctx)); err != nil {
			// Expired leases release as not-owned; the next acquirer
			// reclaims them, so this is log-only.
			f.log.Warn("Failed to release lock",
				zap.String("resource_id", resourceID),
				zap.Error(err))
		}
	}()

	return fn(ctx)
}
