package models

import "time"

// File is an owned resource. The blob content lives in object storage under
// StorageKey; this row carries its metadata. Deleting a File removes all
// Grants and ShareLinks referencing it in the same transaction.
type File struct {
	ID int64
	// StorageKey is the object-storage key (path) of the blob.
	StorageKey string
	// OriginalName is the filename the blob was uploaded with, unique per owner.
	OriginalName string
	ContentType  string
	OwnerID      int64
	Size         int64
	CreatedAt    time.Time
}
