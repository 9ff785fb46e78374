package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nestledger/auth"
)

// capturingNotifier records delivered reset tokens instead of sending email
type capturingNotifier struct {
	email string
	token string
	calls int
}

func (n *capturingNotifier) NotifyPasswordReset(_ context.Context, email, token string) error {
	n.email = email
	n.token = token
	n.calls++
	return nil
}

func TestInitializePasswordReset(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t)
	stack.createAccount(t, "ada@example.com", "correct-horse-battery")

	notifier := &capturingNotifier{}
	handler := auth.NewInitializePasswordResetHandler(stack.directory, stack.ledger).
		WithNotifier(notifier)

	var resp *auth.InitializePasswordResetResponse
	msg := auth.InitializePasswordResetMessage{
		Email: "ada@example.com",
		OnResponse: func(r *auth.InitializePasswordResetResponse) {
			resp = r
		},
	}

	require.NoError(t, handler.Execute(ctx, msg))

	require.NotNil(t, resp)
	assert.True(t, resp.Issued)
	assert.Equal(t, "ada@example.com", notifier.email)
	assert.NotEmpty(t, notifier.token)

	// the delivered token is live
	userID, err := stack.ledger.Consume(ctx, notifier.token)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, userID)
}

func TestInitializePasswordResetUnknownEmail(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t)

	notifier := &capturingNotifier{}
	handler := auth.NewInitializePasswordResetHandler(stack.directory, stack.ledger).
		WithNotifier(notifier)

	var resp *auth.InitializePasswordResetResponse
	msg := auth.InitializePasswordResetMessage{
		Email: "ghost@example.com",
		OnResponse: func(r *auth.InitializePasswordResetResponse) {
			resp = r
		},
	}

	// unknown email is not an error, nothing is issued or delivered
	require.NoError(t, handler.Execute(ctx, msg))
	require.NotNil(t, resp)
	assert.False(t, resp.Issued)
	assert.Zero(t, notifier.calls)
	assert.Zero(t, countRows(t, stack.db, "password_reset_tokens"))
}

func TestFinalizePasswordReset(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t)
	userID := uuid.MustParse(stack.createAccount(t, "ada@example.com", "old-password-1"))

	// a live session that must die with the old password
	require.NoError(t, stack.registry.Record(ctx, userID, "old-session", time.Now().Add(time.Hour)))

	token, err := stack.ledger.Issue(ctx, userID)
	require.NoError(t, err)

	handler := auth.NewFinalizePasswordResetHandler(stack.repo, stack.directory, stack.ledger, stack.registry)

	require.NoError(t, handler.Execute(ctx, auth.FinalizePasswordResetMessage{
		Token:    token,
		Password: "new-password-22",
	}))

	_, err = stack.directory.VerifyIdentity(ctx, "ada@example.com", "old-password-1")
	assert.Error(t, err)
	_, err = stack.directory.VerifyIdentity(ctx, "ada@example.com", "new-password-22")
	assert.NoError(t, err)

	_, err = stack.registry.IsActive(ctx, "old-session")
	assert.ErrorIs(t, err, auth.ErrTokenRevoked)

	// the token is burned
	err = handler.Execute(ctx, auth.FinalizePasswordResetMessage{
		Token:    token,
		Password: "another-password-3",
	})
	assert.ErrorIs(t, err, auth.ErrResetTokenUsed)
}

func TestFinalizePasswordResetInvalidToken(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t)
	stack.createAccount(t, "ada@example.com", "old-password-1")

	handler := auth.NewFinalizePasswordResetHandler(stack.repo, stack.directory, stack.ledger, stack.registry)

	err := handler.Execute(ctx, auth.FinalizePasswordResetMessage{
		Token:    "never-issued",
		Password: "new-password-22",
	})
	assert.ErrorIs(t, err, auth.ErrResetTokenNotFound)

	// old password still stands
	_, err = stack.directory.VerifyIdentity(ctx, "ada@example.com", "old-password-1")
	assert.NoError(t, err)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t)
	userID := uuid.MustParse(stack.createAccount(t, "ada@example.com", "old-password-1"))

	require.NoError(t, stack.registry.Record(ctx, userID, "old-session", time.Now().Add(time.Hour)))

	handler := auth.NewChangePasswordHandler(stack.repo, stack.directory, stack.registry)

	require.NoError(t, handler.Execute(ctx, auth.ChangePasswordMessage{
		UserID:          userID,
		CurrentPassword: "old-password-1",
		NewPassword:     "new-password-22",
	}))

	_, err := stack.directory.VerifyIdentity(ctx, "ada@example.com", "new-password-22")
	assert.NoError(t, err)

	_, err = stack.registry.IsActive(ctx, "old-session")
	assert.ErrorIs(t, err, auth.ErrTokenRevoked)
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t)
	userID := uuid.MustParse(stack.createAccount(t, "ada@example.com", "old-password-1"))

	handler := auth.NewChangePasswordHandler(stack.repo, stack.directory, stack.registry)

	err := handler.Execute(ctx, auth.ChangePasswordMessage{
		UserID:          userID,
		CurrentPassword: "not-the-password",
		NewPassword:     "new-password-22",
	})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = stack.directory.VerifyIdentity(ctx, "ada@example.com", "old-password-1")
	assert.NoError(t, err)
}
