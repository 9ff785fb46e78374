// Package client implements the consumer side of the token lifecycle: it
// holds the token pair, attaches the access token to outgoing requests, and
// renews it through the refresh endpoint when the server stops accepting it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	"golang.org/x/sync/singleflight"

	"github.com/nestledger/auth"
)

// DefaultInactivityLimit is how long a session may sit idle before the
// manager treats it as expired locally.
var DefaultInactivityLimit = 30 * time.Minute

// ErrSessionExpired is returned when there is no usable session: never
// logged in, idle past the inactivity limit, or refresh rejected by the
// server. The caller must log in again.
var ErrSessionExpired = errors.New("session expired, login required", errors.CategoryAuth)

// SessionManager wraps an http.Client with session handling. A request that
// comes back 401 triggers one refresh and one retry; concurrent 401s share
// a single refresh call. It is safe for concurrent use.
type SessionManager struct {
	baseURL         string
	http            *http.Client
	store           TokenStore
	logger          auth.Logger
	inactivityLimit time.Duration
	now             func() time.Time

	sf singleflight.Group

	mu           sync.Mutex
	lastActivity time.Time
}

// NewSessionManager will create a new SessionManager talking to the auth
// endpoints under baseURL.
func NewSessionManager(baseURL string, store TokenStore) *SessionManager {
	return &SessionManager{
		baseURL:         baseURL,
		http:            &http.Client{Timeout: 30 * time.Second},
		store:           store,
		logger:          nopLogger{},
		inactivityLimit: DefaultInactivityLimit,
		now:             time.Now,
	}
}

func (m *SessionManager) WithHTTPClient(client *http.Client) *SessionManager {
	if client != nil {
		m.http = client
	}
	return m
}

func (m *SessionManager) WithLogger(logger auth.Logger) *SessionManager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

func (m *SessionManager) WithInactivityLimit(limit time.Duration) *SessionManager {
	if limit > 0 {
		m.inactivityLimit = limit
	}
	return m
}

// WithClock overrides the time source. Test hook.
func (m *SessionManager) WithClock(now func() time.Time) *SessionManager {
	if now != nil {
		m.now = now
	}
	return m
}

// Login exchanges credentials for a token pair and stores it.
func (m *SessionManager) Login(ctx context.Context, email, password string) error {
	body, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to encode login request")
	}

	resp, err := m.post(ctx, "/auth/login", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.New("login rejected", errors.CategoryAuth).
			WithMetadata(map[string]any{"status": resp.StatusCode})
	}

	var result auth.LoginResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to decode login response")
	}

	if err := m.store.Save(TokenPair{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	}); err != nil {
		return err
	}

	m.Touch()
	return nil
}

// Logout revokes the session server-side and clears the local store. Local
// state is cleared even when the revocation call fails; from the client's
// point of view logout never fails to log you out.
func (m *SessionManager) Logout(ctx context.Context) error {
	pair, err := m.store.Load()
	if err == nil && pair.RefreshToken != "" {
		body, _ := json.Marshal(map[string]string{"refresh_token": pair.RefreshToken})
		if resp, postErr := m.post(ctx, "/auth/logout", body); postErr != nil {
			m.logger.Warn("logout revocation failed: %v", postErr)
		} else {
			resp.Body.Close()
		}
	}

	return m.store.Clear()
}

// Do sends the request with the current access token attached. On a 401 it
// refreshes once and retries once; a second 401 is returned as-is. Requests
// with a body must be built with a replayable body (http.NewRequest does
// this for common body types) or the retry is skipped.
func (m *SessionManager) Do(req *http.Request) (*http.Response, error) {
	if err := m.checkIdle(req.Context()); err != nil {
		return nil, err
	}

	pair, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	if pair.Empty() {
		return nil, ErrSessionExpired
	}

	resp, err := m.send(req, pair.AccessToken)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		m.Touch()
		return resp, nil
	}

	retry, err := m.cloneRequest(req)
	if err != nil {
		return resp, nil
	}
	resp.Body.Close()

	accessToken, err := m.refresh(req.Context())
	if err != nil {
		return nil, err
	}

	resp, err = m.send(retry, accessToken)
	if err != nil {
		return nil, err
	}

	m.Touch()
	return resp, nil
}

// refresh renews the access token through the refresh endpoint. Concurrent
// callers coalesce into one request; everyone gets the same fresh token.
func (m *SessionManager) refresh(ctx context.Context) (string, error) {
	token, err, _ := m.sf.Do("refresh", func() (any, error) {
		pair, err := m.store.Load()
		if err != nil {
			return "", err
		}
		if pair.RefreshToken == "" {
			return "", ErrSessionExpired
		}

		body, err := json.Marshal(map[string]string{"refresh_token": pair.RefreshToken})
		if err != nil {
			return "", errors.Wrap(err, errors.CategoryInternal, "failed to encode refresh request")
		}

		resp, err := m.post(ctx, "/auth/refresh", body)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			// server will not renew this session anymore
			if clearErr := m.store.Clear(); clearErr != nil {
				m.logger.Warn("failed to clear token store: %v", clearErr)
			}
			return "", ErrSessionExpired
		}

		var result auth.RefreshResult
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return "", errors.Wrap(err, errors.CategoryInternal, "failed to decode refresh response")
		}

		pair.AccessToken = result.AccessToken
		if result.RefreshToken != "" {
			pair.RefreshToken = result.RefreshToken
		}

		if err := m.store.Save(pair); err != nil {
			return "", err
		}

		return result.AccessToken, nil
	})
	if err != nil {
		return "", err
	}

	return token.(string), nil
}

func (m *SessionManager) send(req *http.Request, accessToken string) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+accessToken)
	return m.http.Do(req)
}

func (m *SessionManager) cloneRequest(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.Body == nil || req.GetBody == nil {
		if req.Body != nil {
			return nil, errors.New("request body is not replayable", errors.CategoryBadInput)
		}
		return retry, nil
	}

	body, err := req.GetBody()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to rewind request body")
	}
	retry.Body = body

	return retry, nil
}

func (m *SessionManager) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "request failed")
	}

	return resp, nil
}

// checkIdle enforces the inactivity limit. A session idle past the limit
// goes through the same path as an explicit Logout: best-effort server-side
// revocation, then local clear, so the refresh token does not stay live
// for the rest of its natural TTL.
func (m *SessionManager) checkIdle(ctx context.Context) error {
	m.mu.Lock()
	idle := !m.lastActivity.IsZero() && m.now().Sub(m.lastActivity) > m.inactivityLimit
	m.mu.Unlock()

	if !idle {
		return nil
	}

	if err := m.Logout(ctx); err != nil {
		m.logger.Warn("failed to clear token store: %v", err)
	}

	return ErrSessionExpired
}

// Touch records activity, extending the inactivity window. The manager
// calls it after every request it handles; applications can call it for
// user interactions that do not go through Do.
func (m *SessionManager) Touch() {
	m.mu.Lock()
	m.lastActivity = m.now()
	m.mu.Unlock()
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

var _ auth.Logger = nopLogger{}
