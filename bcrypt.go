package auth

import (
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost balances login latency against brute-force resistance.
const bcryptCost = 12

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext password matches
// the hashed password. A malformed stored hash counts as a mismatch rather
// than a distinct failure, so callers cannot leak hash state.
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		// malformed hashes fall through here too; both read as a mismatch
		return ErrMismatchedHashAndPassword
	}
	return nil
}

// RandomPasswordHash is a hash of a throwaway random password. Used as a
// comparison decoy so login timing does not reveal whether an email exists.
func RandomPasswordHash() string {
	pwd := uuid.New()

	h, err := HashPassword(pwd.String())
	if err != nil {
		return RandomPasswordHash()
	}

	return h
}
