package models

import "time"

// RevocationEntry records one invalidated token identifier. The row's
// presence is definitive proof of revocation regardless of the token's own
// expiry claim. Rows may be garbage-collected once ExpiresAt has passed;
// correctness never depends on that cleanup running.
type RevocationEntry struct {
	ID        int64
	JTI       string
	UserID    int64
	TokenType string
	ExpiresAt time.Time
	RevokedAt time.Time
	// Reason is free text; "logout" is the only value produced in-core.
	Reason string
}
