// Package auth issues and validates the bearer tokens that protect the
// sentiment endpoints, and tracks revoked tokens in a Redis denylist.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Souradip121/sentiment-service/internal/domain"
	apperrors "github.com/Souradip121/sentiment-service/pkg/errors"
)

const issuer = "sentiment-service"

// Claims represents the JWT claims for an access token.
type Claims struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Role     string   `json:"role"`
	Scopes   []string `json:"scopes"`
	jwt.RegisteredClaims
}

// TokenManager handles JWT generation and validation.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
}

// NewTokenManager creates a token manager. leeway is the clock-skew
// tolerance applied when validating expiry.
func NewTokenManager(secret string, ttl, leeway time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		leeway: leeway,
		now:    time.Now,
	}
}

// Issue creates a signed access token for the user carrying the given
// scopes. Every token gets a unique jti so it can be revoked individually.
func (m *TokenManager) Issue(user *domain.User, scopes []string) (domain.IssuedToken, error) {
	now := m.now().UTC()
	expiresAt := now.Add(m.ttl)

	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		Scopes:   scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("sign access token: %w", err)
	}

	return domain.IssuedToken{Token: signed, ExpiresAt: expiresAt}, nil
}

// Validate parses and verifies a token string, returning its claims.
// Expiry beyond the configured leeway comes back as a TOKEN_EXPIRED
// application error; every other defect is TOKEN_INVALID.
func (m *TokenManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithLeeway(m.leeway),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.TokenExpired()
		}
		return nil, apperrors.TokenInvalid("token signature or claims invalid")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperrors.TokenInvalid("unexpected token claims")
	}
	return claims, nil
}

// SetNow replaces the manager's time source. Test helper.
func (m *TokenManager) SetNow(now func() time.Time) {
	m.now = now
}
