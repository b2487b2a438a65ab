package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/school-management/internal/auth"
	"github.com/iliyamo/school-management/internal/config"
	"github.com/iliyamo/school-management/internal/httperr"
	"github.com/iliyamo/school-management/internal/middleware"
	"github.com/iliyamo/school-management/internal/store"
)

type authEnv struct {
	e       *echo.Echo
	h       *AuthHandler
	store   *store.MemoryStore
	revoker *auth.MemoryRevoker
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()
	cfg := config.Config{
		JWTSecret:         "test-jwt-secret",
		AccessTTLMin:      30,
		RefreshTTLDays:    7,
		BcryptCost:        bcrypt.MinCost,
		PasswordMinLength: 8,
		Enable2FA:         true,
		TOTPIssuer:        "School",
	}
	db := store.NewMemoryStore()
	rev := auth.NewMemoryRevoker()
	return &authEnv{
		e:       echo.New(),
		h:       NewAuthHandler(cfg, db, rev, auth.NewRefreshStore(db)),
		store:   db,
		revoker: rev,
	}
}

func (env *authEnv) request(t *testing.T, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return env.e.NewContext(req, rec), rec
}

func (env *authEnv) register(t *testing.T, email, password string) {
	t.Helper()
	c, rec := env.request(t, `{"email":"`+email+`","username":"janedoe","password":"`+password+`","role":"teacher","first_name":"Jane","last_name":"Doe"}`)
	require.NoError(t, env.h.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)
}

func (env *authEnv) login(t *testing.T, body string) (tokenResponse, error) {
	t.Helper()
	c, rec := env.request(t, body)
	if err := env.h.Login(c); err != nil {
		return tokenResponse{}, err
	}
	require.Equal(t, http.StatusOK, rec.Code)
	var tokens tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))
	return tokens, nil
}

func errKind(t *testing.T, err error) httperr.Kind {
	t.Helper()
	he, ok := err.(*httperr.Error)
	require.True(t, ok, "expected *httperr.Error, got %T: %v", err, err)
	return he.Kind
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()
	env := newAuthEnv(t)

	cases := []struct {
		name string
		body string
		msg  string
	}{
		{"bad email", `{"email":"nope","username":"janedoe","password":"Abcdefg1!","role":"teacher"}`, "valid email required"},
		{"short username", `{"email":"a@b.co","username":"ab","password":"Abcdefg1!","role":"teacher"}`, "username must be at least 3 characters"},
		{"unknown role", `{"email":"a@b.co","username":"janedoe","password":"Abcdefg1!","role":"wizard"}`, "invalid role"},
		{"weak password", `{"email":"a@b.co","username":"janedoe","password":"abcdefg1!","role":"teacher"}`, "password must contain at least one uppercase letter"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := env.request(t, tc.body)
			err := env.h.Register(c)
			require.Error(t, err)
			assert.Equal(t, httperr.KindValidation, errKind(t, err))
			assert.Equal(t, tc.msg, err.(*httperr.Error).Message)
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	t.Parallel()
	env := newAuthEnv(t)
	env.register(t, "jane@school.test", "Abcdefg1!")

	c, _ := env.request(t, `{"email":"jane@school.test","username":"janedoe2","password":"Abcdefg1!","role":"teacher"}`)
	err := env.h.Register(c)
	require.Error(t, err)
	assert.Equal(t, httperr.KindConflict, errKind(t, err))
}

func TestLogin_Flow(t *testing.T) {
	t.Parallel()
	env := newAuthEnv(t)
	env.register(t, "jane@school.test", "Abcdefg1!")

	// wrong password and unknown user fail identically
	_, err := env.login(t, `{"email":"jane@school.test","password":"wrong"}`)
	require.Error(t, err)
	assert.Equal(t, httperr.KindUnauthenticated, errKind(t, err))
	wrongMsg := err.(*httperr.Error).Message

	_, err = env.login(t, `{"email":"nobody@school.test","password":"wrong"}`)
	require.Error(t, err)
	assert.Equal(t, wrongMsg, err.(*httperr.Error).Message)

	tokens, err := env.login(t, `{"email":"jane@school.test","password":"Abcdefg1!"}`)
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, "bearer", tokens.TokenType)
	assert.Equal(t, 30*60, tokens.ExpiresIn)

	claims, err := auth.DecodeToken("test-jwt-secret", tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "jane@school.test", claims.Email)
	assert.Equal(t, "teacher", claims.Role)
	assert.Equal(t, auth.TokenTypeAccess, claims.TokenType)

	// /auth/me returns the profile without credential material
	c, rec := env.request(t, "")
	c.Set(middleware.CtxUserID, claims.UserID)
	require.NoError(t, env.h.Me(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "jane@school.test")
	assert.NotContains(t, rec.Body.String(), "password_hash")
	assert.NotContains(t, rec.Body.String(), "two_factor_secret")
}

func TestLogin_InactiveAccount(t *testing.T) {
	t.Parallel()
	env := newAuthEnv(t)
	env.register(t, "jane@school.test", "Abcdefg1!")

	ok, err := env.store.UpdateOne(t.Context(), "users",
		store.Query{"email": "jane@school.test"}, store.Document{"is_active": false})
	require.NoError(t, err)
	require.True(t, ok)

	_, lerr := env.login(t, `{"email":"jane@school.test","password":"Abcdefg1!"}`)
	require.Error(t, lerr)
	assert.Equal(t, httperr.KindForbidden, errKind(t, lerr))
}

func TestRefreshToken_SingleUseRotation(t *testing.T) {
	t.Parallel()
	env := newAuthEnv(t)
	env.register(t, "jane@school.test", "Abcdefg1!")
	tokens, err := env.login(t, `{"email":"jane@school.test","password":"Abcdefg1!"}`)
	require.NoError(t, err)

	c, rec := env.request(t, `{"refresh_token":"`+tokens.RefreshToken+`"}`)
	require.NoError(t, env.h.RefreshToken(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var rotated tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotated))
	assert.NotEmpty(t, rotated.AccessToken)
	assert.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)

	// the spent token must not work a second time
	c, _ = env.request(t, `{"refresh_token":"`+tokens.RefreshToken+`"}`)
	rerr := env.h.RefreshToken(c)
	require.Error(t, rerr)
	assert.Equal(t, httperr.KindUnauthenticated, errKind(t, rerr))
}

func TestRefreshToken_RejectsAccessToken(t *testing.T) {
	t.Parallel()
	env := newAuthEnv(t)
	env.register(t, "jane@school.test", "Abcdefg1!")
	tokens, err := env.login(t, `{"email":"jane@school.test","password":"Abcdefg1!"}`)
	require.NoError(t, err)

	c, _ := env.request(t, `{"refresh_token":"`+tokens.AccessToken+`"}`)
	rerr := env.h.RefreshToken(c)
	require.Error(t, rerr)
	assert.Equal(t, httperr.KindUnauthenticated, errKind(t, rerr))
}

func TestLogout_RevokesSession(t *testing.T) {
	t.Parallel()
	env := newAuthEnv(t)
	env.register(t, "jane@school.test", "Abcdefg1!")
	tokens, err := env.login(t, `{"email":"jane@school.test","password":"Abcdefg1!"}`)
	require.NoError(t, err)

	claims, err := auth.DecodeToken("test-jwt-secret", tokens.AccessToken)
	require.NoError(t, err)

	c, rec := env.request(t, "")
	c.Set(middleware.CtxToken, tokens.AccessToken)
	c.Set(middleware.CtxTokenExp, claims.ExpiresAt)
	c.Set(middleware.CtxUserID, claims.UserID)
	require.NoError(t, env.h.Logout(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	// the still-valid signature no longer passes the gate
	revoked, err := env.revoker.IsRevoked(t.Context(), tokens.AccessToken)
	require.NoError(t, err)
	assert.True(t, revoked)

	mw := middleware.JWTAuth("test-jwt-secret", env.revoker)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tokens.AccessToken)
	gc := env.e.NewContext(req, httptest.NewRecorder())
	gerr := mw(func(echo.Context) error { return nil })(gc)
	require.Error(t, gerr)
	assert.Equal(t, httperr.KindUnauthenticated, errKind(t, gerr))

	// refresh records were revoked too
	c, _ = env.request(t, `{"refresh_token":"`+tokens.RefreshToken+`"}`)
	rerr := env.h.RefreshToken(c)
	require.Error(t, rerr)
	assert.Equal(t, httperr.KindUnauthenticated, errKind(t, rerr))
}

func TestTwoFactor_EnableVerifyLogin(t *testing.T) {
	t.Parallel()
	env := newAuthEnv(t)
	env.register(t, "jane@school.test", "Abcdefg1!")
	tokens, err := env.login(t, `{"email":"jane@school.test","password":"Abcdefg1!"}`)
	require.NoError(t, err)
	claims, err := auth.DecodeToken("test-jwt-secret", tokens.AccessToken)
	require.NoError(t, err)

	c, rec := env.request(t, "")
	c.Set(middleware.CtxUserID, claims.UserID)
	c.Set(middleware.CtxEmail, claims.Email)
	require.NoError(t, env.h.Enable2FA(c))
	var enabled enable2FAResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &enabled))
	require.NotEmpty(t, enabled.Secret)
	require.Len(t, enabled.BackupCodes, 10)

	// a wrong code leaves 2FA pending
	c, _ = env.request(t, `{"token":"000000"}`)
	c.Set(middleware.CtxUserID, claims.UserID)
	verr := env.h.Verify2FA(c)
	require.Error(t, verr)
	_, lerr := env.login(t, `{"email":"jane@school.test","password":"Abcdefg1!"}`)
	require.NoError(t, lerr, "2FA must stay inactive until verified")

	code, err := totp.GenerateCode(enabled.Secret, time.Now())
	require.NoError(t, err)
	c, rec = env.request(t, `{"token":"`+code+`"}`)
	c.Set(middleware.CtxUserID, claims.UserID)
	require.NoError(t, env.h.Verify2FA(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	// now a bare password is no longer enough
	_, lerr = env.login(t, `{"email":"jane@school.test","password":"Abcdefg1!"}`)
	require.Error(t, lerr)
	assert.Equal(t, httperr.KindValidation, errKind(t, lerr))

	code, err = totp.GenerateCode(enabled.Secret, time.Now())
	require.NoError(t, err)
	_, lerr = env.login(t, `{"email":"jane@school.test","password":"Abcdefg1!","totp_token":"`+code+`"}`)
	require.NoError(t, lerr)

	// backup codes work exactly once
	backup := enabled.BackupCodes[0]
	_, lerr = env.login(t, `{"email":"jane@school.test","password":"Abcdefg1!","totp_token":"`+backup+`"}`)
	require.NoError(t, lerr)
	_, lerr = env.login(t, `{"email":"jane@school.test","password":"Abcdefg1!","totp_token":"`+backup+`"}`)
	require.Error(t, lerr)
	assert.Equal(t, httperr.KindUnauthenticated, errKind(t, lerr))
}
