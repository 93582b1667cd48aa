// Package auth implements the credential primitives of the service: the JWT
// token codec and the bcrypt password hasher.
package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/avolkov/authgate/internal/common"
	"github.com/avolkov/authgate/internal/server/config"
)

// TokenType discriminates access tokens from refresh tokens. Every consumer
// must check the type: an access token must never be honored where a refresh
// token is expected and vice versa.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the claim set carried by every issued token: the registered
// claims (sub, exp, iss, iat, jti) plus the token type discriminator.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"type"`
}

// UserID parses the subject claim into a user id.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, common.ErrInvalidToken
	}
	return id, nil
}

// Manager signs and verifies compact bearer tokens. It is constructed once at
// startup from the server config and is immutable afterwards.
type Manager struct {
	secret          []byte
	method          jwt.SigningMethod
	issuer          string
	accessValidity  time.Duration
	refreshValidity time.Duration
}

// NewManager builds a Manager from the server config. Only HMAC signing
// methods are accepted.
func NewManager(cfg *config.Config) (*Manager, error) {
	method := jwt.GetSigningMethod(cfg.JWTAlgorithm)
	if method == nil {
		return nil, fmt.Errorf("unknown signing algorithm %q", cfg.JWTAlgorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.JWTAlgorithm)
	}
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("empty secret key")
	}

	return &Manager{
		secret:          []byte(cfg.SecretKey),
		method:          method,
		issuer:          cfg.JWTIssuer,
		accessValidity:  cfg.AccessTokenValidityDuration,
		refreshValidity: cfg.RefreshTokenValidityDuration,
	}, nil
}

// IssueAccess mints a short-lived access token for the user and returns it
// together with its validity duration.
func (m *Manager) IssueAccess(userID int64) (string, time.Duration, error) {
	return m.issue(userID, TokenTypeAccess, m.accessValidity)
}

// IssueRefresh mints a long-lived refresh token for the user and returns it
// together with its validity duration.
func (m *Manager) IssueRefresh(userID int64) (string, time.Duration, error) {
	return m.issue(userID, TokenTypeRefresh, m.refreshValidity)
}

func (m *Manager) issue(userID int64, tokenType TokenType, validity time.Duration) (string, time.Duration, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
			ID:        uuid.NewString(),
		},
		TokenType: tokenType,
	}

	signed, err := jwt.NewWithClaims(m.method, claims).SignedString(m.secret)
	if err != nil {
		return "", 0, fmt.Errorf("signing token: %w", err)
	}

	return signed, validity, nil
}

// Decode verifies the signature and expiry of a token and returns its claims.
// Any failure (bad signature, malformed payload, expired) yields
// common.ErrInvalidToken; callers never see raw jwt errors. The issuer label
// is stamped on issue but not enforced here.
func (m *Manager) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != m.method.Alg() {
			return nil, common.ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}
