package auth

import (
	"context"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// ResetNotifier delivers the raw reset token to the account owner, usually
// over email. The token never appears in the HTTP response.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, email, token string) error
}

// ResetNotifierFunc adapts a function into a ResetNotifier.
type ResetNotifierFunc func(ctx context.Context, email, token string) error

func (f ResetNotifierFunc) NotifyPasswordReset(ctx context.Context, email, token string) error {
	return f(ctx, email, token)
}

type InitializePasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

func (p InitializePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
	)
}

// InitializePasswordResetResponse reports the outcome to the caller that
// dispatched the message. Issued is false for unknown emails, but the HTTP
// surface must not reveal that; it acknowledges both cases identically.
type InitializePasswordResetResponse struct {
	Issued bool
}

type InitializePasswordResetHandler struct {
	directory *AccountDirectory
	ledger    *ResetLedger
	notifier  ResetNotifier
	logger    Logger
}

func NewInitializePasswordResetHandler(directory *AccountDirectory, ledger *ResetLedger) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		directory: directory,
		ledger:    ledger,
		notifier:  ResetNotifierFunc(printEmailNotification),
		logger:    defLogger{},
	}
}

func (h *InitializePasswordResetHandler) WithNotifier(notifier ResetNotifier) *InitializePasswordResetHandler {
	if notifier != nil {
		h.notifier = notifier
	}
	return h
}

func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password reset payload")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &InitializePasswordResetResponse{}

	record, err := h.directory.FindByEmail(ctx, event.Email)
	if err != nil {
		if goerrors.Is(err, ErrIdentityNotFound) {
			// unknown email gets the same outward outcome as a known one
			h.logger.Debug("password reset requested for unknown email")
			if event.OnResponse != nil {
				event.OnResponse(resp)
			}
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	token, err := h.ledger.Issue(ctx, record.UserID)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	if err := h.notifier.NotifyPasswordReset(ctx, record.Email, token); err != nil {
		h.logger.Error("failed to deliver password reset notification: %v", err)
	}

	resp.Issued = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func printEmailNotification(_ context.Context, email, token string) error {
	fmt.Println("====== SENDING EMAIL NOTIFICATION =======")
	fmt.Printf("to: %s\n", email)
	fmt.Printf("link: /password-reset/%s\n", token)
	return nil
}
