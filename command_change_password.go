package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ChangePasswordMessage struct {
	UserID          uuid.UUID `json:"-"`
	CurrentPassword string    `json:"current_password"`
	NewPassword     string    `json:"new_password"`
}

func (p ChangePasswordMessage) Type() string { return "user.change_password" }

func (p ChangePasswordMessage) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.CurrentPassword, validation.Required),
		validation.Field(&p.NewPassword, validation.Required, validation.Length(8, 72)),
	)
}

// ChangePasswordHandler changes the password for an authenticated user. The
// current password is re-verified even though the caller already holds a
// valid access token; a hijacked token alone cannot rotate the credential.
type ChangePasswordHandler struct {
	repo      RepositoryManager
	directory *AccountDirectory
	sessions  *SessionRegistry
}

func NewChangePasswordHandler(repo RepositoryManager, directory *AccountDirectory, sessions *SessionRegistry) *ChangePasswordHandler {
	return &ChangePasswordHandler{
		repo:      repo,
		directory: directory,
		sessions:  sessions,
	}
}

func (h *ChangePasswordHandler) Execute(ctx context.Context, event ChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password change",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ChangePasswordHandler) execute(ctx context.Context, event ChangePasswordMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password change payload")
	}

	if event.UserID == uuid.Nil {
		return goerrors.New("user id is required", goerrors.CategoryBadInput)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	record, err := h.directory.FindByID(ctx, event.UserID)
	if err != nil {
		return err
	}

	if err := ComparePasswordAndHash(event.CurrentPassword, record.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := HashPassword(event.NewPassword)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := h.directory.UpdatePasswordTx(ctx, tx, event.UserID, hash); err != nil {
			return err
		}

		return h.sessions.RevokeAllForUserTx(ctx, tx, event.UserID)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "password change failed")
	}

	return nil
}
