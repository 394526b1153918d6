package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"wasabi/internal/apperr"
	"wasabi/internal/models"
)

// TokenManager issues and validates HS256 bearer tokens carrying the
// username as subject. Tokens are stateless; there is no revocation list.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret []byte, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (m *TokenManager) Issue(username string) (string, time.Time, error) {
	issuedAt := m.now()
	expiresAt := issuedAt.Add(m.ttl)
	claims := &models.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// Validate parses and verifies a token, failing closed. A token whose expiry
// instant equals the current time is already expired. When expectedSubject is
// non-empty the token subject must match it exactly.
func (m *TokenManager) Validate(tokenString, expectedSubject string) (*models.Claims, error) {
	claims := &models.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.New(apperr.TypeTokenExpired, "token expired")
		}
		return nil, apperr.New(apperr.TypeTokenInvalid, "invalid token")
	}
	if !token.Valid {
		return nil, apperr.New(apperr.TypeTokenInvalid, "invalid token")
	}

	if expectedSubject != "" && claims.Subject != expectedSubject {
		return nil, apperr.New(apperr.TypeSubjectMismatch, "token subject mismatch")
	}

	return claims, nil
}
