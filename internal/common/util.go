package common

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// MakeRandURLString returns a URL-safe base64 string built from size random
// bytes, suitable for use as an unguessable bearer capability.
func MakeRandURLString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("error generating random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
