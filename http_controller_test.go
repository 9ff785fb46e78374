package auth_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nestledger/auth"
)

type controllerFixture struct {
	*testStack
	app      *fiber.App
	notifier *capturingNotifier
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()

	stack := newTestStack(t)
	notifier := &capturingNotifier{}

	controller := auth.NewAuthController(
		stack.auther,
		auth.NewRegisterUserHandler(stack.directory),
		auth.NewInitializePasswordResetHandler(stack.directory, stack.ledger).WithNotifier(notifier),
		auth.NewFinalizePasswordResetHandler(stack.repo, stack.directory, stack.ledger, stack.registry),
		auth.NewChangePasswordHandler(stack.repo, stack.directory, stack.registry),
	)

	app := fiber.New()
	controller.RegisterRoutes(app)

	return &controllerFixture{
		testStack: stack,
		app:       app,
		notifier:  notifier,
	}
}

func (f *controllerFixture) request(t *testing.T, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)

	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()

	return out
}

func TestSignupEndpoint(t *testing.T) {
	f := newControllerFixture(t)

	resp := f.request(t, http.MethodPost, "/auth/signup", map[string]string{
		"first_name": "Ada",
		"last_name":  "Lovelace",
		"email":      "ada@example.com",
		"password":   "correct-horse-battery",
	}, nil)

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeJSON[map[string]auth.Profile](t, resp)
	assert.Equal(t, "ada@example.com", body["user"].Email)
	assert.Equal(t, auth.RoleUser, body["user"].Role)
}

func TestSignupEndpointDuplicateEmail(t *testing.T) {
	f := newControllerFixture(t)

	payload := map[string]string{
		"email":    "ada@example.com",
		"password": "correct-horse-battery",
	}

	resp := f.request(t, http.MethodPost, "/auth/signup", payload, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = f.request(t, http.MethodPost, "/auth/signup", payload, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	body := decodeJSON[auth.ErrorResponse](t, resp)
	assert.Equal(t, "auth_email_taken", body.Error.TextCode)
}

func TestLoginEndpoint(t *testing.T) {
	f := newControllerFixture(t)
	f.createAccount(t, "ada@example.com", "correct-horse-battery")

	resp := f.request(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "ada@example.com",
		"password": "correct-horse-battery",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decodeJSON[auth.LoginResult](t, resp)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, "ada@example.com", result.Profile.Email)
}

func TestLoginEndpointGenericFailure(t *testing.T) {
	f := newControllerFixture(t)
	f.createAccount(t, "ada@example.com", "correct-horse-battery")

	wrongPassword := f.request(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "ada@example.com",
		"password": "wrong",
	}, nil)
	unknownEmail := f.request(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "ghost@example.com",
		"password": "wrong",
	}, nil)

	require.Equal(t, http.StatusUnauthorized, wrongPassword.StatusCode)
	require.Equal(t, http.StatusUnauthorized, unknownEmail.StatusCode)

	// wrong password and unknown email answer byte for byte the same
	a := decodeJSON[auth.ErrorResponse](t, wrongPassword)
	b := decodeJSON[auth.ErrorResponse](t, unknownEmail)
	assert.Equal(t, a, b)
}

func TestRefreshEndpoint(t *testing.T) {
	f := newControllerFixture(t)
	f.createAccount(t, "ada@example.com", "correct-horse-battery")

	login := decodeJSON[auth.LoginResult](t, f.request(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "ada@example.com",
		"password": "correct-horse-battery",
	}, nil))

	resp := f.request(t, http.MethodPost, "/auth/refresh", map[string]string{
		"refresh_token": login.RefreshToken,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decodeJSON[auth.RefreshResult](t, resp)
	assert.NotEmpty(t, result.AccessToken)
}

func TestLogoutEndpointKillsSession(t *testing.T) {
	f := newControllerFixture(t)
	f.createAccount(t, "ada@example.com", "correct-horse-battery")

	login := decodeJSON[auth.LoginResult](t, f.request(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "ada@example.com",
		"password": "correct-horse-battery",
	}, nil))

	logout := f.request(t, http.MethodPost, "/auth/logout", map[string]string{
		"refresh_token": login.RefreshToken,
	}, nil)
	require.Equal(t, http.StatusNoContent, logout.StatusCode)
	logout.Body.Close()

	// the refresh token is dead even though the JWT has lifetime left
	refresh := f.request(t, http.MethodPost, "/auth/refresh", map[string]string{
		"refresh_token": login.RefreshToken,
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, refresh.StatusCode)
	refresh.Body.Close()

	// logout twice is fine
	again := f.request(t, http.MethodPost, "/auth/logout", map[string]string{
		"refresh_token": login.RefreshToken,
	}, nil)
	assert.Equal(t, http.StatusNoContent, again.StatusCode)
	again.Body.Close()
}

func TestPasswordResetEndpointAntiEnumeration(t *testing.T) {
	f := newControllerFixture(t)
	f.createAccount(t, "ada@example.com", "correct-horse-battery")

	known := f.request(t, http.MethodPost, "/auth/password-reset", map[string]string{
		"email": "ada@example.com",
	}, nil)
	unknown := f.request(t, http.MethodPost, "/auth/password-reset", map[string]string{
		"email": "ghost@example.com",
	}, nil)

	// both acknowledge identically
	assert.Equal(t, http.StatusAccepted, known.StatusCode)
	assert.Equal(t, http.StatusAccepted, unknown.StatusCode)
	known.Body.Close()
	unknown.Body.Close()

	// but only the known account got a token delivered
	assert.Equal(t, 1, f.notifier.calls)
	assert.Equal(t, "ada@example.com", f.notifier.email)
}

func TestPasswordResetConfirmEndpoint(t *testing.T) {
	f := newControllerFixture(t)
	f.createAccount(t, "ada@example.com", "old-password-1")

	reset := f.request(t, http.MethodPost, "/auth/password-reset", map[string]string{
		"email": "ada@example.com",
	}, nil)
	require.Equal(t, http.StatusAccepted, reset.StatusCode)
	reset.Body.Close()
	require.NotEmpty(t, f.notifier.token)

	confirm := f.request(t, http.MethodPost, "/auth/password-reset/confirm", map[string]string{
		"token":    f.notifier.token,
		"password": "new-password-22",
	}, nil)
	require.Equal(t, http.StatusNoContent, confirm.StatusCode)
	confirm.Body.Close()

	login := f.request(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "ada@example.com",
		"password": "new-password-22",
	}, nil)
	assert.Equal(t, http.StatusOK, login.StatusCode)
	login.Body.Close()

	// reusing the burned token answers the same generic 401
	reuse := f.request(t, http.MethodPost, "/auth/password-reset/confirm", map[string]string{
		"token":    f.notifier.token,
		"password": "sneaky-password-3",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, reuse.StatusCode)

	body := decodeJSON[auth.ErrorResponse](t, reuse)
	assert.Equal(t, "auth_reset_token_invalid", body.Error.TextCode)
}

func TestChangePasswordEndpointRequiresAccessToken(t *testing.T) {
	f := newControllerFixture(t)
	f.createAccount(t, "ada@example.com", "old-password-1")

	payload := map[string]string{
		"current_password": "old-password-1",
		"new_password":     "new-password-22",
	}

	// no token at all
	resp := f.request(t, http.MethodPost, "/auth/password", payload, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	login := decodeJSON[auth.LoginResult](t, f.request(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "ada@example.com",
		"password": "old-password-1",
	}, nil))

	// a refresh token must not pass the access-token gate
	resp = f.request(t, http.MethodPost, "/auth/password", payload, map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", login.RefreshToken),
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = f.request(t, http.MethodPost, "/auth/password", payload, map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", login.AccessToken),
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	relogin := f.request(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "ada@example.com",
		"password": "new-password-22",
	}, nil)
	assert.Equal(t, http.StatusOK, relogin.StatusCode)
	relogin.Body.Close()
}
