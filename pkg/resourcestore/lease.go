package resourcestore

import (
	"context"
	"fmt"
	"time"
)

// TryAcquireLease attempts to take the advisory lease for resourceID on
// behalf of owner. It succeeds when no lease row exists or when the existing
// lease has expired; a live lease held by someone else loses the race.
//
// The insert-or-reclaim is a single conditional write, so correctness holds
// across process instances sharing the database.
func (s *Store) TryAcquireLease(ctx context.Context, resourceID, owner string, ttl time.Duration) (bool, error) {
	if resourceID == "" || owner == "" {
		return false, fmt.Errorf("lease resource id and owner are required")
	}

	nowMs := time.Now().UTC().UnixMilli()
	expiresMs := nowMs + ttl.Milliseconds()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO mutex_leases (resource_id, owner, expires_ms)
		VALUES (?, ?, ?)
		ON CONFLICT(resource_id) DO UPDATE SET
			owner=excluded.owner,
			expires_ms=excluded.expires_ms
		WHERE mutex_leases.expires_ms < ? OR mutex_leases.owner = excluded.owner
	`, resourceID, owner, expiresMs, nowMs)
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", resourceID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", resourceID, err)
	}
	return n > 0, nil
}

// ReleaseLease deletes the lease only when owner still holds it. Returns
// false when the lease is absent or owned by someone else.
func (s *Store) ReleaseLease(ctx context.Context, resourceID, owner string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM mutex_leases WHERE resource_id = ? AND owner = ?
	`, resourceID, owner)
	if err != nil {
		return false, fmt.Errorf("release lease %s: %w", resourceID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("release lease %s: %w", resourceID, err)
	}
	return n > 0, nil
}
