package auth

import (
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// AuthController terminates the HTTP surface: it parses and validates
// payloads, dispatches to the Auther and the command handlers, and renders
// sanitized JSON. No business rule lives here.
type AuthController struct {
	auther        *Auther
	register      *RegisterUserHandler
	resetInit     *InitializePasswordResetHandler
	resetFinalize *FinalizePasswordResetHandler
	changePass    *ChangePasswordHandler
	logger        Logger
}

// NewAuthController will create a new AuthController, it panics on missing
// dependencies since there is no sane fallback for any of them.
func NewAuthController(
	auther *Auther,
	register *RegisterUserHandler,
	resetInit *InitializePasswordResetHandler,
	resetFinalize *FinalizePasswordResetHandler,
	changePass *ChangePasswordHandler,
) *AuthController {
	if auther == nil {
		panic("auth controller requires an authenticator")
	}
	if register == nil {
		panic("auth controller requires a register handler")
	}
	if resetInit == nil {
		panic("auth controller requires a password reset initialize handler")
	}
	if resetFinalize == nil {
		panic("auth controller requires a password reset finalize handler")
	}
	if changePass == nil {
		panic("auth controller requires a change password handler")
	}

	return &AuthController{
		auther:        auther,
		register:      register,
		resetInit:     resetInit,
		resetFinalize: resetFinalize,
		changePass:    changePass,
		logger:        defLogger{},
	}
}

func (c *AuthController) WithLogger(logger Logger) *AuthController {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// RegisterRoutes mounts the auth endpoints under /auth.
func (c *AuthController) RegisterRoutes(app fiber.Router) {
	group := app.Group("/auth")
	group.Post("/signup", c.Signup)
	group.Post("/login", c.Login)
	group.Post("/refresh", c.Refresh)
	group.Post("/logout", c.Logout)
	group.Post("/password-reset", c.PasswordReset)
	group.Post("/password-reset/confirm", c.PasswordResetConfirm)
	group.Post("/password", Protected(c.auther.TokenService()), c.ChangePassword)
}

func (c *AuthController) Signup(ctx *fiber.Ctx) error {
	msg := RegisterUserMessage{}
	if err := ctx.BodyParser(&msg); err != nil {
		return WriteError(ctx, c.logger, errors.Wrap(err, errors.CategoryBadInput, "invalid request body"))
	}

	var profile Profile
	msg.OnResponse = func(p Profile) {
		profile = p
	}

	if err := c.register.Execute(ctx.UserContext(), msg); err != nil {
		return WriteError(ctx, c.logger, err)
	}

	return ctx.Status(http.StatusCreated).JSON(fiber.Map{"user": profile})
}

func (c *AuthController) Login(ctx *fiber.Ctx) error {
	req := LoginRequest{}
	if err := ctx.BodyParser(&req); err != nil {
		return WriteError(ctx, c.logger, errors.Wrap(err, errors.CategoryBadInput, "invalid request body"))
	}

	if err := req.Validate(); err != nil {
		return WriteError(ctx, c.logger, errors.Wrap(err, errors.CategoryValidation, "invalid login payload"))
	}

	result, err := c.auther.Login(ctx.UserContext(), req.Email, req.Password)
	if err != nil {
		return WriteError(ctx, c.logger, err)
	}

	return ctx.JSON(result)
}

func (c *AuthController) Refresh(ctx *fiber.Ctx) error {
	req := RefreshRequest{}
	if err := ctx.BodyParser(&req); err != nil {
		return WriteError(ctx, c.logger, errors.Wrap(err, errors.CategoryBadInput, "invalid request body"))
	}

	if err := req.Validate(); err != nil {
		return WriteError(ctx, c.logger, errors.Wrap(err, errors.CategoryValidation, "invalid refresh payload"))
	}

	result, err := c.auther.Refresh(ctx.UserContext(), req.RefreshToken)
	if err != nil {
		return WriteError(ctx, c.logger, err)
	}

	return ctx.JSON(result)
}

// Logout always answers 204. Revoking a token that is unknown or already
// revoked is indistinguishable from a first logout.
func (c *AuthController) Logout(ctx *fiber.Ctx) error {
	req := LogoutRequest{}
	if err := ctx.BodyParser(&req); err != nil {
		return WriteError(ctx, c.logger, errors.Wrap(err, errors.CategoryBadInput, "invalid request body"))
	}

	if err := c.auther.Logout(ctx.UserContext(), req.RefreshToken); err != nil {
		return WriteError(ctx, c.logger, err)
	}

	return ctx.SendStatus(http.StatusNoContent)
}

// PasswordReset acknowledges with 202 whether or not the email exists.
// A different answer for unknown emails would let callers probe the user
// base.
func (c *AuthController) PasswordReset(ctx *fiber.Ctx) error {
	msg := InitializePasswordResetMessage{}
	if err := ctx.BodyParser(&msg); err != nil {
		return WriteError(ctx, c.logger, errors.Wrap(err, errors.CategoryBadInput, "invalid request body"))
	}

	if err := c.resetInit.Execute(ctx.UserContext(), msg); err != nil {
		return WriteError(ctx, c.logger, err)
	}

	return ctx.Status(http.StatusAccepted).JSON(fiber.Map{"status": "ok"})
}

func (c *AuthController) PasswordResetConfirm(ctx *fiber.Ctx) error {
	msg := FinalizePasswordResetMessage{}
	if err := ctx.BodyParser(&msg); err != nil {
		return WriteError(ctx, c.logger, errors.Wrap(err, errors.CategoryBadInput, "invalid request body"))
	}

	if err := c.resetFinalize.Execute(ctx.UserContext(), msg); err != nil {
		return WriteError(ctx, c.logger, err)
	}

	return ctx.SendStatus(http.StatusNoContent)
}

func (c *AuthController) ChangePassword(ctx *fiber.Ctx) error {
	claims, ok := ClaimsFromFiber(ctx)
	if !ok {
		return WriteError(ctx, c.logger, ErrTokenMalformed)
	}

	userID, err := claims.UserUUID()
	if err != nil {
		return WriteError(ctx, c.logger, ErrTokenMalformed)
	}

	msg := ChangePasswordMessage{}
	if err := ctx.BodyParser(&msg); err != nil {
		return WriteError(ctx, c.logger, errors.Wrap(err, errors.CategoryBadInput, "invalid request body"))
	}
	msg.UserID = userID

	if err := c.changePass.Execute(ctx.UserContext(), msg); err != nil {
		return WriteError(ctx, c.logger, err)
	}

	return ctx.SendStatus(http.StatusNoContent)
}
