package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nestledger/auth"
)

func newProtectedApp(t *testing.T, tokens auth.TokenValidator) *fiber.App {
	t.Helper()

	app := fiber.New()
	app.Get("/me", auth.Protected(tokens), func(c *fiber.Ctx) error {
		claims, ok := auth.ClaimsFromFiber(c)
		require.True(t, ok)
		return c.JSON(fiber.Map{"user_id": claims.UserID()})
	})
	app.Get("/admin", auth.Protected(tokens), auth.RequireAdmin(), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	return app
}

func TestProtectedMiddleware(t *testing.T) {
	tokens := newTokenService(t, auth.ConfigValues{})
	app := newProtectedApp(t, tokens)

	identity := newTestIdentity()
	accessToken, err := tokens.IssueAccessToken(identity)
	require.NoError(t, err)
	refreshToken, _, err := tokens.IssueRefreshToken(identity.id)
	require.NoError(t, err)

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer garbage", http.StatusUnauthorized},
		{"refresh token", "Bearer " + refreshToken, http.StatusUnauthorized},
		{"access token", "Bearer " + accessToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestRequireAdminMiddleware(t *testing.T) {
	tokens := newTokenService(t, auth.ConfigValues{})
	app := newProtectedApp(t, tokens)

	user := newTestIdentity()
	userToken, err := tokens.IssueAccessToken(user)
	require.NoError(t, err)

	admin := newTestIdentity()
	admin.role = auth.RoleAdmin
	adminToken, err := tokens.IssueAccessToken(admin)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTokenValidatorFunc(t *testing.T) {
	var called bool
	validator := auth.TokenValidatorFunc(func(token string) (auth.AuthClaims, error) {
		called = true
		return nil, auth.ErrTokenMalformed
	})

	_, err := validator.Validate("anything")
	assert.ErrorIs(t, err, auth.ErrTokenMalformed)
	assert.True(t, called)

	var nilValidator auth.TokenValidatorFunc
	_, err = nilValidator.Validate("anything")
	assert.ErrorIs(t, err, auth.ErrTokenMalformed)
}
