package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in the "type" claim. Callers must check the type: an
// access token is never accepted where a refresh token is required, and vice
// versa.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	// ErrTokenExpired is returned by DecodeToken when the exp claim has passed.
	ErrTokenExpired = errors.New("token has expired")
	// ErrTokenInvalid covers every other verification failure: bad signature,
	// malformed structure, wrong algorithm, missing claims.
	ErrTokenInvalid = errors.New("token is invalid")
)

// Claims is the verified identity carried by a token.
type Claims struct {
	UserID    string
	Email     string
	Role      string
	TokenType string
	ExpiresAt time.Time
}

// NewAccessToken builds and signs an HS256 JWT with the identity claims plus
// exp, iat and type="access". It returns the signed token and its expiry.
func NewAccessToken(secret, userID, email, role string, ttl time.Duration) (string, time.Time, error) {
	return signToken(secret, userID, email, role, TokenTypeAccess, ttl)
}

// NewRefreshToken is the same construction with type="refresh" and a longer
// TTL.
func NewRefreshToken(secret, userID, email, role string, ttl time.Duration) (string, time.Time, error) {
	return signToken(secret, userID, email, role, TokenTypeRefresh, ttl)
}

func signToken(secret, userID, email, role, tokenType string, ttl time.Duration) (string, time.Time, error) {
	exp := time.Now().UTC().Add(ttl)
	claims := jwt.MapClaims{
		"user_id": userID,
		"email":   email,
		"role":    role,
		"type":    tokenType,
		"exp":     exp.Unix(),
		"iat":     time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// DecodeToken verifies signature and expiry and returns the claims. It never
// returns claims for a failed verification.
func DecodeToken(secret, raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		// Reject tokens signed with anything but HMAC.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	if !tok.Valid {
		return Claims{}, ErrTokenInvalid
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrTokenInvalid
	}
	c := Claims{}
	if c.UserID, ok = mc["user_id"].(string); !ok {
		return Claims{}, ErrTokenInvalid
	}
	c.Email, _ = mc["email"].(string)
	c.Role, _ = mc["role"].(string)
	if c.TokenType, ok = mc["type"].(string); !ok {
		return Claims{}, ErrTokenInvalid
	}
	if exp, ok := mc["exp"].(float64); ok {
		c.ExpiresAt = time.Unix(int64(exp), 0).UTC()
	}
	return c, nil
}
