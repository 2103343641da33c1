// Package revocations provides the revocation ledger: the persistent
// deny-list of token identifiers consulted on every authenticated request.
package revocations

import (
	"context"
	"time"

	"filevault/internal/server/models"
)

type Repository interface {
	// Revoke records a token identifier as invalidated. Revoking an
	// already-revoked jti is a no-op success.
	Revoke(ctx context.Context, entry *models.RevocationEntry) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// DeleteExpired garbage-collects entries whose token would be rejected
	// on expiry alone. Correctness never depends on this running.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
