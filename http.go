package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
)

// ErrorResponse is the JSON envelope for every failed request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Message  string `json:"message"`
	TextCode string `json:"text_code,omitempty"`
}

// HTTPStatusFromError maps an error to a response status by category.
func HTTPStatusFromError(err error) int {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return http.StatusInternalServerError
	}

	switch richErr.Category {
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryAuthz:
		return http.StatusForbidden
	case errors.CategoryValidation, errors.CategoryBadInput:
		return http.StatusBadRequest
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// sanitizeError rewrites internal errors into their client-facing shape.
// Reset ledger diagnostics collapse into one opaque failure, and anything
// unexpected becomes a bare 500 so internals never leak into responses.
func sanitizeError(err error) error {
	switch {
	case errors.Is(err, ErrResetTokenNotFound),
		errors.Is(err, ErrResetTokenExpired),
		errors.Is(err, ErrResetTokenUsed):
		return ErrResetTokenInvalid
	case errors.Is(err, ErrMismatchedHashAndPassword),
		errors.Is(err, ErrIdentityNotFound),
		errors.Is(err, ErrTooManyLoginAttempts):
		return ErrInvalidCredentials
	}

	if HTTPStatusFromError(err) >= http.StatusInternalServerError {
		return errors.New("internal server error", errors.CategoryInternal)
	}

	return err
}

// WriteError renders err as a JSON error response. The original error is
// logged; the response carries only the sanitized message and text code.
func WriteError(c *fiber.Ctx, logger Logger, err error) error {
	if logger != nil {
		logger.Error("request failed: %v", err)
	}

	err = sanitizeError(err)
	status := HTTPStatusFromError(err)

	body := ErrorBody{Message: err.Error()}
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		body.Message = richErr.Message
		body.TextCode = richErr.TextCode
	}

	return c.Status(status).JSON(ErrorResponse{Error: body})
}
