// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an identity record. Immutable once created except the password
// hash, which no in-core endpoint rotates.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
