// Package revocations records refresh token ids (jti) that may no longer be
// used. Records only matter until the token's own expiry and may be purged
// afterwards.
package revocations

import (
	"context"
	"time"
)

// Registry is safe for concurrent use. A revocation is visible to every
// subsequent IsRevoked call once Revoke or RevokeOnce has returned.
type Registry interface {
	// Revoke records jti. Revoking an already revoked id succeeds.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	// RevokeOnce records jti and reports whether this call was the one that
	// revoked it. Of concurrent callers with the same jti exactly one wins.
	RevokeOnce(ctx context.Context, jti string, expiresAt time.Time) (bool, error)
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// Purge drops records whose token expired before now.
	Purge(ctx context.Context, now time.Time) (int64, error)
}
