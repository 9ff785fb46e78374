package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

type contextKey string

const claimsContextKey contextKey = "auth:claims"

// WithClaims stores validated claims on a context.
func WithClaims(ctx context.Context, claims AuthClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext retrieves claims stored by WithClaims.
func ClaimsFromContext(ctx context.Context) (AuthClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(AuthClaims)
	return claims, ok
}

// ClaimsFromFiber retrieves the claims Protected stored on the request.
func ClaimsFromFiber(c *fiber.Ctx) (AuthClaims, bool) {
	claims, ok := c.Locals(ClaimsContextKey).(AuthClaims)
	return claims, ok
}

// IsAdminCtx reports whether the context carries admin claims.
func IsAdminCtx(ctx context.Context) bool {
	claims, ok := ClaimsFromContext(ctx)
	return ok && claims.IsAdmin()
}
