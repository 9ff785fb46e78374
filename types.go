package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated identity
type Identity interface {
	ID() string
	Email() string
	Role() string
	FirstName() string
	LastName() string
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error)
	Logout(ctx context.Context, refreshToken string) error
	Authenticate(accessToken string) (AuthClaims, error)
}

// TokenService issues and validates the two token kinds
type TokenService interface {
	TokenValidator
	IssueAccessToken(identity Identity) (string, error)
	IssueRefreshToken(userID string) (string, time.Time, error)
}

// TokenValidator validates tokens and extracts claims without tying callers
// to a specific signing implementation.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(tokenString string) (AuthClaims, error)

// Validate satisfies the TokenValidator interface.
func (f TokenValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	if f == nil {
		return nil, ErrTokenMalformed
	}
	return f(tokenString)
}

// IdentityProvider ensures we have a store to retrieve auth identity
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, email, password string) (Identity, error)
	FindIdentityByID(ctx context.Context, id string) (Identity, error)
}

// SessionStore tracks issued refresh tokens server-side. A token is live
// while it is unexpired and unrevoked; Revoke is idempotent.
type SessionStore interface {
	Record(ctx context.Context, userID uuid.UUID, refreshToken string, expiresAt time.Time) error
	IsActive(ctx context.Context, refreshToken string) (Identity, error)
	Revoke(ctx context.Context, refreshToken string) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
}

// ResetStore persists single-use, time-boxed password reset tokens.
type ResetStore interface {
	Issue(ctx context.Context, userID uuid.UUID) (string, error)
	Consume(ctx context.Context, token string) (uuid.UUID, error)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
}

// ConfigValues is a concrete Config for embedders and tests.
type ConfigValues struct {
	SigningKey      string
	Issuer          string
	Audience        []string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

func (c ConfigValues) GetSigningKey() string             { return c.SigningKey }
func (c ConfigValues) GetIssuer() string                 { return c.Issuer }
func (c ConfigValues) GetAudience() []string             { return c.Audience }
func (c ConfigValues) GetAccessTokenTTL() time.Duration  { return c.AccessTokenTTL }
func (c ConfigValues) GetRefreshTokenTTL() time.Duration { return c.RefreshTokenTTL }

var _ Config = ConfigValues{}

// Profile is the public projection of a user returned by signup and login.
// It never carries credential material.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Role      string    `json:"role"`
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	Profile      Profile `json:"user"`
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
}

// RefreshResult carries the renewed access token. RefreshToken is only set
// when rotation is enabled on the Auther.
type RefreshResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
