package models

import "time"

// ShareLink is an anonymous bearer capability bound to one File: possession
// of the token is the authorization. MaxDownloads == 0 means unlimited.
type ShareLink struct {
	ID            int64
	Token         string
	FileID        int64
	ExpiresAt     time.Time
	MaxDownloads  int
	DownloadCount int
	CreatedAt     time.Time
}

// Expired reports whether the link is past its expiry at the given instant.
func (l *ShareLink) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// Exhausted reports whether the download quota has been used up.
func (l *ShareLink) Exhausted() bool {
	return l.MaxDownloads > 0 && l.DownloadCount >= l.MaxDownloads
}
