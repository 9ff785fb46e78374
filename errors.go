package auth

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeEmailTaken         = "auth_email_taken"
	TextCodeInvalidCredentials = "auth_invalid_credentials"
	TextCodeTooManyAttempts    = "auth_too_many_attempts"
	TextCodeTokenExpired       = "auth_token_expired"
	TextCodeTokenMalformed     = "auth_token_malformed"
	TextCodeTokenRevoked       = "auth_token_revoked"
	TextCodeResetTokenInvalid  = "auth_reset_token_invalid"
	TextCodeSigningKeyRequired = "auth_signing_key_required"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound)

// ErrEmailTaken is returned when a signup targets an email that already
// exists. The unique constraint on users.email is the sole source of this
// error; callers never pre-check with a separate read.
var ErrEmailTaken = errors.New("email already registered", errors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(errors.CodeConflict)

// ErrInvalidCredentials is returned for unknown email and wrong password
// alike. The two paths must stay indistinguishable to the client.
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrTooManyLoginAttempts is returned when the attempt counter exceeds the
// cooldown budget.
var ErrTooManyLoginAttempts = errors.New("too many login attempts", errors.CategoryAuth).
	WithTextCode(TextCodeTooManyAttempts).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned for tokens past their expiry.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned for bad signatures, wrong token use, and
// undecodable tokens.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrTokenRevoked is returned when a refresh token verifies but has no live
// row in the session registry. Clients see the same generic message as for
// expired or malformed tokens.
var ErrTokenRevoked = errors.New("token is revoked", errors.CategoryAuth).
	WithTextCode(TextCodeTokenRevoked).
	WithCode(errors.CodeUnauthorized)

// ErrResetTokenInvalid is the single client-facing failure for password
// reset consumption. The ledger's distinct errors below are collapsed into
// this one so responses never reveal whether a token existed, expired, or
// was already spent.
var ErrResetTokenInvalid = errors.New("invalid or expired password reset token", errors.CategoryAuth).
	WithTextCode(TextCodeResetTokenInvalid).
	WithCode(errors.CodeUnauthorized)

// Ledger-internal reset failures. Logged server-side, never returned to
// clients directly.
var (
	ErrResetTokenNotFound = errors.New("password reset token not found", errors.CategoryNotFound)
	ErrResetTokenExpired  = errors.New("password reset token expired", errors.CategoryValidation)
	ErrResetTokenUsed     = errors.New("password reset token already used", errors.CategoryConflict)
)

// ErrSigningKeyRequired is a constructor-time failure: the process must not
// start without a configured signing key.
var ErrSigningKeyRequired = errors.New("signing key is required", errors.CategoryInternal).
	WithTextCode(TextCodeSigningKeyRequired)

// ErrNoEmptyString rejects empty passwords before hashing
var ErrNoEmptyString = errors.New("value must not be empty", errors.CategoryValidation)

// ErrMismatchedHashAndPassword password comparison failed
var ErrMismatchedHashAndPassword = errors.New("mismatched hash and password", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTokenExpired) || strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTokenMalformed) ||
		strings.Contains(err.Error(), "token is malformed")
}

// isUniqueViolation detects a storage-level uniqueness failure across the
// dialects we run on (sqlite in tests, postgres in deployments).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
