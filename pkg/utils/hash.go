package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MinCodeLength is the shortest pairing code accepted for hashing.
const MinCodeLength = 6

var ErrCodeTooShort = errors.New("pairing code too short")

// HashPassword hashes a pairing code or other secret using bcrypt.
func HashPassword(secret string) (string, error) {
	if len(secret) < MinCodeLength {
		return "", ErrCodeTooShort
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares a plain secret with its bcrypt hash.
func CheckPassword(plain, hashed string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	return err == nil
}
