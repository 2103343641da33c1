package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword produces a salted one-way hash of the plaintext password.
// bcrypt rejects inputs longer than 72 bytes.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches the stored hash record.
// The comparison does not leak where the first mismatching byte is.
func VerifyPassword(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
