// Package sessions tracks live refresh-token sessions in a key-value store
// with TTL-based expiry. A session exists exactly while its refresh token is
// honored: rotation and logout delete it, expiry removes it passively.
package sessions

import (
	"context"
	"time"
)

// Store is the contract the session manager consumes. Keys are the raw
// refresh-token strings; values are the owning user id in decimal form.
type Store interface {
	// Set records a live session for the token with the given TTL.
	Set(ctx context.Context, token string, userID string, ttl time.Duration) error

	// Get returns the stored user id for the token, or common.ErrNotFound
	// when no live session exists (never issued, expired, rotated, revoked).
	Get(ctx context.Context, token string) (string, error)

	// Delete removes the session and reports whether an entry was removed.
	// Deleting an absent token is not an error. The removed result is the
	// single source of truth for rotation eligibility.
	Delete(ctx context.Context, token string) (bool, error)
}
