package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// Default token lifetimes. Access tokens are deliberately short; refresh
// tokens bound the longest possible unattended session.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey []byte
	issuer     string
	audience   jwt.ClaimStrings
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     Logger
	now        func() time.Time
}

var _ TokenService = (*TokenServiceImpl)(nil)

// NewTokenService creates a new TokenService instance. A missing signing
// key is a construction error: the process must fail before serving a
// single request rather than sign with an empty secret.
func NewTokenService(cfg Config) (*TokenServiceImpl, error) {
	if cfg.GetSigningKey() == "" {
		return nil, ErrSigningKeyRequired
	}

	accessTTL := cfg.GetAccessTokenTTL()
	if accessTTL == 0 {
		accessTTL = DefaultAccessTokenTTL
	}

	refreshTTL := cfg.GetRefreshTokenTTL()
	if refreshTTL == 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}

	return &TokenServiceImpl{
		signingKey: []byte(cfg.GetSigningKey()),
		issuer:     cfg.GetIssuer(),
		audience:   cfg.GetAudience(),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		logger:     defLogger{},
		now:        time.Now,
	}, nil
}

func (ts *TokenServiceImpl) WithLogger(logger Logger) *TokenServiceImpl {
	if logger != nil {
		ts.logger = logger
	}
	return ts
}

// WithClock overrides the time source. Test hook.
func (ts *TokenServiceImpl) WithClock(now func() time.Time) *TokenServiceImpl {
	if now != nil {
		ts.now = now
	}
	return ts
}

// IssueAccessToken signs a short-lived stateless token carrying the user id
// and role.
func (ts *TokenServiceImpl) IssueAccessToken(identity Identity) (string, error) {
	if identity == nil {
		return "", errors.New("identity is required", errors.CategoryBadInput)
	}

	claims := ts.newClaims(identity.ID(), ts.accessTTL)
	claims.UserRole = identity.Role()
	claims.TokenUse = TokenUseAccess

	return ts.SignClaims(claims)
}

// IssueRefreshToken signs a long-lived token for the given user. The caller
// is responsible for recording it in the session registry; the signed value
// alone does not grant a session. Returns the token and its expiry.
func (ts *TokenServiceImpl) IssueRefreshToken(userID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("user id is required", errors.CategoryBadInput)
	}

	claims := ts.newClaims(userID, ts.refreshTTL)
	claims.TokenUse = TokenUseRefresh

	token, err := ts.SignClaims(claims)
	if err != nil {
		return "", time.Time{}, err
	}

	return token, claims.ExpiresAt.Time, nil
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string, returning structured claims.
// Failures collapse into ErrTokenExpired or ErrTokenMalformed; callers must
// not expose which one beyond a generic message.
func (ts *TokenServiceImpl) Validate(tokenString string) (AuthClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 3)
	parserOptions = append(parserOptions, jwt.WithTimeFunc(ts.now))
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token validate encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("token validate could not decode or validate claims")
	return nil, ErrTokenMalformed
}

func (ts *TokenServiceImpl) newClaims(subject string, ttl time.Duration) *JWTClaims {
	now := ts.now()

	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   subject,
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID: subject,
	}

	ensureTokenID(&claims.RegisteredClaims)

	return claims
}
