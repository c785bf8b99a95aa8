// Package auth implements token signing/verification and password hashing
// for the issuer.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nexuskit/authkeeper/internal/common"
)

// TokenKind discriminates access tokens from refresh tokens. A token of one
// kind is never accepted where the other is expected.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Claims included in every token the issuer mints. ID (jti) is a fresh UUID
// per token; the revocation set is keyed by the refresh token's jti.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string    `json:"user_id"`
	TokenKind TokenKind `json:"token_type"`
}

// JWTManager mints and parses HS256 token pairs.
type JWTManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration

	// now is a test seam for expiry checks and issued-at stamps.
	now func() time.Time
}

func NewJWTManager(secret []byte, accessTTL, refreshTTL time.Duration) *JWTManager {
	return &JWTManager{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// MintAccess issues a short-lived access token for userID.
func (m *JWTManager) MintAccess(userID string) (string, *Claims, error) {
	return m.mint(userID, TokenKindAccess, m.accessTTL)
}

// MintRefresh issues a refresh token for userID with a fresh jti.
func (m *JWTManager) MintRefresh(userID string) (string, *Claims, error) {
	return m.mint(userID, TokenKindRefresh, m.refreshTTL)
}

func (m *JWTManager) mint(userID string, kind TokenKind, ttl time.Duration) (string, *Claims, error) {
	now := m.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    userID,
		TokenKind: kind,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("signing token: %w", err)
	}

	return signed, claims, nil
}

// ParseAccess validates signature, expiry and kind of an access token.
func (m *JWTManager) ParseAccess(tokenString string) (*Claims, error) {
	return m.parse(tokenString, TokenKindAccess)
}

// ParseRefresh validates signature, expiry and kind of a refresh token.
func (m *JWTManager) ParseRefresh(tokenString string) (*Claims, error) {
	return m.parse(tokenString, TokenKindRefresh)
}

func (m *JWTManager) parse(tokenString string, kind TokenKind) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, common.ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.TokenKind != kind || claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// Remaining returns how much lifetime the parsed claims still have, floored
// at zero. Used to size revocation-set TTLs.
func (m *JWTManager) Remaining(claims *Claims) time.Duration {
	if claims.ExpiresAt == nil {
		return 0
	}
	d := claims.ExpiresAt.Time.Sub(m.now())
	if d < 0 {
		return 0
	}
	return d
}
