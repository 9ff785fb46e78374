package auth

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SessionRegistry is the server-side record of issued refresh tokens. A
// refresh token is only honored while its row is live: present, unexpired,
// and unrevoked. Revocation is the server's unilateral kill switch for a
// session regardless of what the client still holds.
type SessionRegistry struct {
	repo     RepositoryManager
	provider IdentityProvider
	logger   Logger
	now      func() time.Time
}

var _ SessionStore = (*SessionRegistry)(nil)

// NewSessionRegistry will create a new SessionRegistry
func NewSessionRegistry(repo RepositoryManager, provider IdentityProvider) *SessionRegistry {
	return &SessionRegistry{
		repo:     repo,
		provider: provider,
		logger:   defLogger{},
		now:      time.Now,
	}
}

func (s *SessionRegistry) WithLogger(logger Logger) *SessionRegistry {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithClock overrides the time source. Used by tests to cross expiry
// boundaries without sleeping.
func (s *SessionRegistry) WithClock(now func() time.Time) *SessionRegistry {
	if now != nil {
		s.now = now
	}
	return s
}

// Record stores the digest of a freshly issued refresh token. Concurrent
// logins for the same user each get their own row; sessions are
// independent.
func (s *SessionRegistry) Record(ctx context.Context, userID uuid.UUID, refreshToken string, expiresAt time.Time) error {
	return s.RecordTx(ctx, nil, userID, refreshToken, expiresAt)
}

func (s *SessionRegistry) RecordTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, refreshToken string, expiresAt time.Time) error {
	record := &RefreshToken{
		ID:          uuid.New(),
		UserID:      userID,
		TokenDigest: tokenDigest(refreshToken),
		ExpiresAt:   expiresAt,
	}

	var err error
	if tx != nil {
		_, err = s.repo.RefreshTokens().CreateTx(ctx, tx, record)
	} else {
		_, err = s.repo.RefreshTokens().Create(ctx, record)
	}
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to record session")
	}

	return nil
}

// IsActive checks the registry row for the given refresh token and, when it
// is live, resolves the owning identity. A missing, expired, or revoked row
// all map to ErrTokenRevoked; callers cannot tell the cases apart.
func (s *SessionRegistry) IsActive(ctx context.Context, refreshToken string) (Identity, error) {
	record := &RefreshToken{}
	err := s.repo.DB().NewSelect().
		Model(record).
		Where("?TableAlias.token_digest = ?", tokenDigest(refreshToken)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenRevoked
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to check session")
	}

	if !record.Usable(s.now()) {
		return nil, ErrTokenRevoked
	}

	identity, err := s.provider.FindIdentityByID(ctx, record.UserID.String())
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return nil, ErrTokenRevoked
		}
		return nil, err
	}

	return identity, nil
}

// Revoke marks the token's row revoked. Revoking an already revoked or
// unknown token is a no-op, not an error, so logout stays idempotent.
func (s *SessionRegistry) Revoke(ctx context.Context, refreshToken string) error {
	_, err := s.repo.DB().NewUpdate().
		Model((*RefreshToken)(nil)).
		Set("revoked_at = ?", s.now()).
		Where("token_digest = ?", tokenDigest(refreshToken)).
		Where("revoked_at IS NULL").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to revoke session")
	}

	return nil
}

// RevokeAllForUser kills every live session the user has. Called after a
// password change or reset so stolen refresh tokens die with the old
// password.
func (s *SessionRegistry) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	return s.RevokeAllForUserTx(ctx, s.repo.DB(), userID)
}

func (s *SessionRegistry) RevokeAllForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	_, err := tx.NewUpdate().
		Model((*RefreshToken)(nil)).
		Set("revoked_at = ?", s.now()).
		Where("user_id = ?", userID).
		Where("revoked_at IS NULL").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to revoke sessions")
	}

	return nil
}
