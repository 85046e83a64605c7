// Package auth issues and validates credentials: HS256 access tokens,
// opaque refresh tokens and bcrypt password hashes.
package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

const (
	AccessTokenLifetime  = 30 * time.Minute
	RefreshTokenLifetime = 7 * 24 * time.Hour

	minKeyLength       = 32
	refreshTokenLength = 32
)

// Claims carries the registered claims plus the identity's email and role.
// The subject is the identity id.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// TokenIssuer signs access tokens and mints refresh tokens.
type TokenIssuer struct {
	key []byte
	now func() time.Time
}

// NewTokenIssuer decodes base64Key and returns an issuer. The key must decode
// to at least 32 bytes.
func NewTokenIssuer(base64Key string) (*TokenIssuer, error) {
	if base64Key == "" {
		return nil, fmt.Errorf("%w: signing key is empty", common.ErrConfiguration)
	}
	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("%w: signing key is not base64: %v", common.ErrConfiguration, err)
	}
	if len(key) < minKeyLength {
		return nil, fmt.Errorf("%w: signing key must be at least %d bytes, got %d", common.ErrConfiguration, minKeyLength, len(key))
	}
	return &TokenIssuer{key: key, now: time.Now}, nil
}

// WithClock replaces the time source. Intended for tests.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	i.now = now
	return i
}

// IssueAccessToken returns a signed JWT for the identity, valid for
// AccessTokenLifetime.
func (i *TokenIssuer) IssueAccessToken(identityID, email, role string) (string, error) {
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenLifetime)),
		},
		Email: email,
		Role:  role,
	})

	tokenString, err := token.SignedString(i.key)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// IssueRefreshToken returns a fresh opaque refresh token and its expiry.
func (i *TokenIssuer) IssueRefreshToken() (string, time.Time, error) {
	secret, err := common.MakeRandURLString(refreshTokenLength)
	if err != nil {
		return "", time.Time{}, err
	}
	return secret, i.now().Add(RefreshTokenLifetime), nil
}

// ParseAccessToken validates the signature and expiry of tokenString.
func (i *TokenIssuer) ParseAccessToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
