package auth

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultResetTokenTTL bounds the window between requesting a reset and
// confirming it.
var DefaultResetTokenTTL = time.Hour

// ResetLedger persists single-use password reset tokens. Tokens are opaque
// random strings, stored only as digests, and burned atomically on
// consumption: under concurrent confirmations exactly one caller wins.
type ResetLedger struct {
	repo   RepositoryManager
	logger Logger
	ttl    time.Duration
	now    func() time.Time
}

var _ ResetStore = (*ResetLedger)(nil)

// NewResetLedger will create a new ResetLedger
func NewResetLedger(repo RepositoryManager) *ResetLedger {
	return &ResetLedger{
		repo:   repo,
		logger: defLogger{},
		ttl:    DefaultResetTokenTTL,
		now:    time.Now,
	}
}

func (l *ResetLedger) WithLogger(logger Logger) *ResetLedger {
	if logger != nil {
		l.logger = logger
	}
	return l
}

func (l *ResetLedger) WithTTL(ttl time.Duration) *ResetLedger {
	if ttl > 0 {
		l.ttl = ttl
	}
	return l
}

// WithClock overrides the time source. Used by tests to cross expiry
// boundaries without sleeping.
func (l *ResetLedger) WithClock(now func() time.Time) *ResetLedger {
	if now != nil {
		l.now = now
	}
	return l
}

// Issue mints a fresh reset token for the user and returns the raw value.
// Only the digest is stored. Issuing again before an earlier token is used
// is allowed; each token stands alone.
func (l *ResetLedger) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	token, err := newOpaqueToken()
	if err != nil {
		return "", err
	}

	record := &PasswordResetToken{
		ID:          uuid.New(),
		UserID:      userID,
		TokenDigest: tokenDigest(token),
		ExpiresAt:   l.now().Add(l.ttl),
	}

	if _, err := l.repo.PasswordResets().Create(ctx, record); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to store reset token")
	}

	return token, nil
}

// Consume burns the token and returns the owning user id. The burn is a
// single conditional update so two concurrent calls with the same token
// cannot both succeed; the loser reads the row back to report why.
func (l *ResetLedger) Consume(ctx context.Context, token string) (uuid.UUID, error) {
	return l.ConsumeTx(ctx, l.repo.DB(), token)
}

func (l *ResetLedger) ConsumeTx(ctx context.Context, tx bun.IDB, token string) (uuid.UUID, error) {
	digest := tokenDigest(token)
	now := l.now()

	var userID uuid.UUID
	err := tx.NewRaw(
		"UPDATE password_reset_tokens SET used_at = ? WHERE token_digest = ? AND used_at IS NULL AND expires_at > ? RETURNING user_id",
		now, digest, now,
	).Scan(ctx, &userID)
	if err == nil {
		return userID, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, errors.Wrap(err, errors.CategoryInternal, "failed to consume reset token")
	}

	return uuid.Nil, l.diagnose(ctx, tx, digest, now)
}

// diagnose explains a failed burn. The distinction is for logs and tests;
// the HTTP surface collapses all three to the same response.
func (l *ResetLedger) diagnose(ctx context.Context, tx bun.IDB, digest string, now time.Time) error {
	record := &PasswordResetToken{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token_digest = ?", digest).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrResetTokenNotFound
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to inspect reset token")
	}

	if record.UsedAt != nil {
		return ErrResetTokenUsed
	}
	if !now.Before(record.ExpiresAt) {
		return ErrResetTokenExpired
	}

	return ErrResetTokenNotFound
}
