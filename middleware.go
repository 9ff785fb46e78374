package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ClaimsContextKey is where Protected stores the validated claims on the
// request context.
const ClaimsContextKey = "auth_claims"

const bearerScheme = "Bearer"

// Protected returns a middleware that only lets requests with a valid
// access token through. Refresh tokens are rejected here even though they
// verify against the same key.
func Protected(validator TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearerToken(c)
		if token == "" {
			return WriteError(c, nil, ErrTokenMalformed)
		}

		claims, err := validator.Validate(token)
		if err != nil {
			return WriteError(c, nil, err)
		}

		if claims.Use() != TokenUseAccess {
			return WriteError(c, nil, ErrTokenMalformed)
		}

		c.Locals(ClaimsContextKey, claims)
		c.SetUserContext(WithClaims(c.UserContext(), claims))

		return c.Next()
	}
}

// RequireAdmin gates a route to admin claims. Must run after Protected.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := ClaimsFromFiber(c)
		if !ok {
			return WriteError(c, nil, ErrTokenMalformed)
		}

		if !claims.IsAdmin() {
			return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{
				Error: ErrorBody{Message: "admin role required"},
			})
		}

		return c.Next()
	}
}

func extractBearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], bearerScheme) {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
