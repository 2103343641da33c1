// Package common defines shared constants and sentinel errors used across
// FileVault layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Validation.
	ErrInvalidArgument = errors.New("invalid argument")

	// Service-level errors (generic/internal flow control).
	ErrInternal        = errors.New("internal error")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrUnauthenticated = errors.New("unauthenticated")

	// Token lifecycle errors.
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenRevoked   = errors.New("token revoked")
	ErrWrongTokenKind = errors.New("wrong token kind")

	// Credential errors. Login is the one place that distinguishes an
	// unknown user from a wrong password; everywhere else both collapse
	// into a generic 401.
	ErrUserNotFound   = errors.New("user not found")
	ErrBadCredentials = errors.New("bad credentials")

	// Sharing errors.
	ErrLinkExpired    = errors.New("share link expired")
	ErrLinkExhausted  = errors.New("share link download limit reached")
	ErrDuplicateGrant = errors.New("grant already exists")

	// ErrStorageConflict means a conditional write affected no rows because a
	// concurrent request got there first. Callers re-read and re-decide.
	ErrStorageConflict = errors.New("storage conflict")

	// Upload validation.
	ErrFileTooLarge = errors.New("file too large")
)
