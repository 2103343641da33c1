package models

import "time"

// AccessLevel is the ordered permission tag on a Grant: read < write < manage.
type AccessLevel string

const (
	AccessLevelRead   AccessLevel = "read"
	AccessLevelWrite  AccessLevel = "write"
	AccessLevelManage AccessLevel = "manage"
)

// Rank returns the ordering position of the level; unknown levels rank
// below read.
func (l AccessLevel) Rank() int {
	switch l {
	case AccessLevelRead:
		return 1
	case AccessLevelWrite:
		return 2
	case AccessLevelManage:
		return 3
	default:
		return 0
	}
}

// Valid reports whether l is one of the known levels.
func (l AccessLevel) Valid() bool {
	return l.Rank() > 0
}

// Covers reports whether a holder of level l may perform actions that
// require level other.
func (l AccessLevel) Covers(other AccessLevel) bool {
	return l.Rank() >= other.Rank()
}

// Grant is a direct share of a File with another user. At most one Grant
// exists per (FileID, GranteeID); the owner never holds a Grant on their
// own File.
type Grant struct {
	ID        int64
	FileID    int64
	GranteeID int64
	GranterID int64
	Level     AccessLevel
	GrantedAt time.Time
}
