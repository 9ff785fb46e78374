package auth

import (
	"context"
	"reflect"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Auther drives the token lifecycle: it exchanges credentials for token
// pairs, renews access tokens against the session registry, and revokes
// sessions. It owns no storage of its own; identities come from the
// provider and session state from the store.
type Auther struct {
	provider      IdentityProvider
	tokens        TokenService
	sessions      SessionStore
	logger        Logger
	rotateRefresh bool
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, tokens TokenService, sessions SessionStore) *Auther {
	return &Auther{
		provider: provider,
		tokens:   tokens,
		sessions: sessions,
		logger:   defLogger{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithRefreshRotation makes Refresh replace the presented refresh token
// with a fresh one and revoke the old row. Off by default; when off, the
// original refresh token stays valid for its whole lifetime.
func (s *Auther) WithRefreshRotation(rotate bool) *Auther {
	s.rotateRefresh = rotate
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokens
}

// Login verifies the credentials and, on success, issues an access and a
// refresh token and records the session. Every verification failure
// collapses into ErrInvalidCredentials; the reason goes to the log, never
// to the caller.
func (s *Auther) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	identity, err := s.provider.VerifyIdentity(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrMismatchedHashAndPassword) ||
			errors.Is(err, ErrIdentityNotFound) ||
			errors.Is(err, ErrTooManyLoginAttempts) {
			s.logger.Warn("login rejected: %v", err)
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "login failed")
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("login identity is nil or zero value")
		return nil, ErrInvalidCredentials
	}

	accessToken, refreshToken, err := s.issueSession(ctx, identity)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Profile:      ProfileFromIdentity(identity),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Refresh exchanges a live refresh token for a new access token. The token
// must carry the refresh use claim, verify against the signing key, and
// have a live row in the session registry; a revoked session fails here no
// matter how much lifetime the JWT has left.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	claims, err := s.tokens.Validate(refreshToken)
	if err != nil {
		return nil, err
	}

	if claims.Use() != TokenUseRefresh {
		s.logger.Warn("refresh rejected: token use is %q", claims.Use())
		return nil, ErrTokenMalformed
	}

	identity, err := s.sessions.IsActive(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.tokens.IssueAccessToken(identity)
	if err != nil {
		return nil, err
	}

	result := &RefreshResult{AccessToken: accessToken}

	if s.rotateRefresh {
		rotated, expiresAt, err := s.tokens.IssueRefreshToken(identity.ID())
		if err != nil {
			return nil, err
		}

		userID, err := uuid.Parse(identity.ID())
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "invalid identity id")
		}

		if err := s.sessions.Record(ctx, userID, rotated, expiresAt); err != nil {
			return nil, err
		}

		if err := s.sessions.Revoke(ctx, refreshToken); err != nil {
			return nil, err
		}

		result.RefreshToken = rotated
	}

	return result, nil
}

// Logout revokes the session behind the refresh token. Unknown, expired,
// and already revoked tokens all succeed; logging out twice is fine.
func (s *Auther) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	if err := s.sessions.Revoke(ctx, refreshToken); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "logout failed")
	}

	return nil
}

// Authenticate validates an access token and returns its claims. Stateless:
// no storage lookup happens here, which is why access tokens outlive
// revocation by at most their own TTL.
func (s *Auther) Authenticate(accessToken string) (AuthClaims, error) {
	claims, err := s.tokens.Validate(accessToken)
	if err != nil {
		return nil, err
	}

	if claims.Use() != TokenUseAccess {
		s.logger.Warn("authenticate rejected: token use is %q", claims.Use())
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

func (s *Auther) issueSession(ctx context.Context, identity Identity) (string, string, error) {
	accessToken, err := s.tokens.IssueAccessToken(identity)
	if err != nil {
		return "", "", err
	}

	refreshToken, expiresAt, err := s.tokens.IssueRefreshToken(identity.ID())
	if err != nil {
		return "", "", err
	}

	userID, err := uuid.Parse(identity.ID())
	if err != nil {
		return "", "", errors.Wrap(err, errors.CategoryInternal, "invalid identity id")
	}

	if err := s.sessions.Record(ctx, userID, refreshToken, expiresAt); err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}
