package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"github.com/goliatone/go-errors"
)

const opaqueTokenBytes = 32

// newOpaqueToken returns a URL-safe random token. Only its digest is ever
// persisted; the raw value exists solely in the response to the caller.
func newOpaqueToken() (string, error) {
	buf := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to generate token")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// tokenDigest maps a raw token to its storage form. A database dump reveals
// digests, not usable tokens.
func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
