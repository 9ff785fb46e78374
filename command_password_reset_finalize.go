package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (p FinalizePasswordResetMessage) Type() string { return "user.password_reset_finalize" }

func (p FinalizePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Token, validation.Required),
		validation.Field(&p.Password, validation.Required, validation.Length(8, 72)),
	)
}

// FinalizePasswordResetHandler burns the reset token, installs the new
// credential, and revokes every live session, all in one transaction. If
// any step fails the token survives unburned and the old password stands.
type FinalizePasswordResetHandler struct {
	repo      RepositoryManager
	directory *AccountDirectory
	ledger    *ResetLedger
	sessions  *SessionRegistry
}

func NewFinalizePasswordResetHandler(repo RepositoryManager, directory *AccountDirectory, ledger *ResetLedger, sessions *SessionRegistry) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:      repo,
		directory: directory,
		ledger:    ledger,
		sessions:  sessions,
	}
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password reset payload")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	hash, err := HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		userID, err := h.ledger.ConsumeTx(ctx, tx, event.Token)
		if err != nil {
			return err
		}

		if err := h.directory.UpdatePasswordTx(ctx, tx, userID, hash); err != nil {
			return err
		}

		// the new password invalidates every session minted under the old one
		return h.sessions.RevokeAllForUserTx(ctx, tx, userID)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "password reset finalization failed")
	}

	return nil
}
