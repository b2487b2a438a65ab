package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret"

func TestAccessToken_ClaimRoundTrip(t *testing.T) {
	t.Parallel()

	raw, exp, err := NewAccessToken(testSecret, "u-1", "jane@school.test", "teacher", 30*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, raw)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), exp, 2*time.Second)

	claims, err := DecodeToken(testSecret, raw)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "jane@school.test", claims.Email)
	assert.Equal(t, "teacher", claims.Role)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
	assert.WithinDuration(t, exp, claims.ExpiresAt, time.Second)
}

func TestRefreshToken_CarriesRefreshType(t *testing.T) {
	t.Parallel()

	raw, _, err := NewRefreshToken(testSecret, "u-1", "jane@school.test", "teacher", 7*24*time.Hour)
	require.NoError(t, err)

	claims, err := DecodeToken(testSecret, raw)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, claims.TokenType)
}

func TestDecodeToken_Expired(t *testing.T) {
	t.Parallel()

	raw, _, err := NewAccessToken(testSecret, "u-1", "jane@school.test", "teacher", -time.Minute)
	require.NoError(t, err)

	_, err = DecodeToken(testSecret, raw)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestDecodeToken_WrongSecret(t *testing.T) {
	t.Parallel()

	raw, _, err := NewAccessToken(testSecret, "u-1", "jane@school.test", "teacher", time.Minute)
	require.NoError(t, err)

	_, err = DecodeToken("other-secret", raw)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestDecodeToken_Tampered(t *testing.T) {
	t.Parallel()

	raw, _, err := NewAccessToken(testSecret, "u-1", "jane@school.test", "teacher", time.Minute)
	require.NoError(t, err)

	tampered := raw[:len(raw)-2] + "xx"
	_, err = DecodeToken(testSecret, tampered)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestDecodeToken_Malformed(t *testing.T) {
	t.Parallel()

	_, err := DecodeToken(testSecret, "not-a-jwt")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestDecodeToken_RejectsNonHMAC(t *testing.T) {
	t.Parallel()

	// alg=none tokens must never verify, regardless of payload.
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"user_id": "u-1",
		"type":    TokenTypeAccess,
		"exp":     time.Now().Add(time.Minute).Unix(),
	})
	raw, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = DecodeToken(testSecret, raw)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestDecodeToken_MissingIdentityClaims(t *testing.T) {
	t.Parallel()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	raw, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = DecodeToken(testSecret, raw)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
