package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the identity root. Credential and Role live in their own
// relations and are created in the same transaction as the user; after
// signup commits there is exactly one of each per user.
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	FirstName      string     `bun:"first_name" json:"first_name,omitempty"`
	LastName       string     `bun:"last_name" json:"last_name,omitempty"`
	LoginAttempts  int        `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Credential holds the salted one-way password hash for a user. Replaced
// wholesale on password change or reset; no history is retained.
type Credential struct {
	bun.BaseModel `bun:"table:credentials,alias:cred"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,unique,type:uuid" json:"user_id,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Role assigns exactly one of admin|user to a user. Signup always writes
// RoleUser; elevation happens through the administrative collaborator.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rl"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,unique,type:uuid" json:"user_id,omitempty"`
	Name          UserRole   `bun:"name,notnull" json:"name,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Preference holds the per-user application defaults written at signup.
// The consuming application mutates these after onboarding; this package
// only guarantees the row exists with defaults once signup commits.
type Preference struct {
	bun.BaseModel `bun:"table:preferences,alias:pref"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,unique,type:uuid" json:"user_id,omitempty"`
	Currency      string     `bun:"currency,notnull" json:"currency,omitempty"`
	Locale        string     `bun:"locale,notnull" json:"locale,omitempty"`
	Timezone      string     `bun:"timezone,notnull" json:"timezone,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// RefreshToken is one issued refresh token. Rows are terminal once revoked
// or expired; the only mutation ever applied is setting revoked_at. The
// token itself is stored as a sha256 digest so a database leak does not
// leak live sessions. Multiple live rows per user are allowed.
type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rt"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	TokenDigest   string     `bun:"token_digest,notnull,unique" json:"-"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	RevokedAt     *time.Time `bun:"revoked_at" json:"revoked_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Usable reports whether the record can still mint access tokens.
func (t *RefreshToken) Usable(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// PasswordResetToken is a single-use, time-boxed reset grant. Mutated
// exactly once, to set used_at; a used record must never authorize a second
// password change.
type PasswordResetToken struct {
	bun.BaseModel `bun:"table:password_reset_tokens,alias:prt"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	TokenDigest   string     `bun:"token_digest,notnull,unique" json:"-"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	UsedAt        *time.Time `bun:"used_at" json:"used_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Usable reports whether the record can still be consumed.
func (t *PasswordResetToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}

// schemaModels lists every relation this package owns, dependency order.
func schemaModels() []any {
	return []any{
		(*User)(nil),
		(*Credential)(nil),
		(*Role)(nil),
		(*Preference)(nil),
		(*RefreshToken)(nil),
		(*PasswordResetToken)(nil),
	}
}

// CreateSchema creates the package's relations with their uniqueness
// constraints. Used by tests and bootstrap tooling; production deployments
// run the embedded SQL migrations instead.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	for _, model := range schemaModels() {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			WithForeignKeys().
			Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
