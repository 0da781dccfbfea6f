package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mrlokans/repairhub/internal/entities"
)

// DefaultTokenTTL is the validity window used when no explicit duration is
// supplied at issuance.
const DefaultTokenTTL = 24 * time.Hour

var (
	// ErrTokenExpired is returned by Verify for structurally valid tokens
	// whose expiry has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for any other verification failure: bad
	// signature, wrong algorithm, malformed structure or claims.
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims is the typed payload of an access token. The subject of the
// embedded registered claims carries the account ID.
type Claims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// UserID decodes the subject claim into an account ID.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject %q", ErrTokenInvalid, c.Subject)
	}
	return uint(id), nil
}

// TokenService issues and verifies signed access tokens. The signing key and
// algorithm are fixed at construction from process configuration; tokens
// signed under a different key or algorithm never verify.
type TokenService struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a token service. algorithm must name a symmetric
// HMAC method (HS256, HS384 or HS512); defaultTTL <= 0 falls back to
// DefaultTokenTTL.
func NewTokenService(secret, algorithm string, defaultTTL time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("signing secret must not be empty")
	}

	var method jwt.SigningMethod
	switch algorithm {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}

	if defaultTTL <= 0 {
		defaultTTL = DefaultTokenTTL
	}

	return &TokenService{
		secret: []byte(secret),
		method: method,
		ttl:    defaultTTL,
		now:    time.Now,
	}, nil
}

// TTL returns the default validity window of issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// WithClock replaces the time source. Intended for tests.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// Issue mints a signed token for the account. ttl <= 0 uses the service
// default. The expiry is embedded as a claim and enforced at verification
// time only.
func (s *TokenService) Issue(user *entities.User, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.ttl
	}

	now := s.now()
	claims := &Claims{
		Username: user.Username,
		Email:    user.Email,
		IsAdmin:  user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify validates a token string and returns its claims.
//
// An empty token resolves to (nil, nil): absence of a token means an
// anonymous request, not an error. Expired tokens return ErrTokenExpired;
// every other failure (signature, algorithm, structure) returns
// ErrTokenInvalid.
func (s *TokenService) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, nil
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, s.keyFunc,
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if _, err := claims.UserID(); err != nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (s *TokenService) keyFunc(t *jwt.Token) (any, error) {
	if t.Method.Alg() != s.method.Alg() {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	return s.secret, nil
}
