package handler

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-management/internal/auth"
	"github.com/iliyamo/school-management/internal/config"
	"github.com/iliyamo/school-management/internal/httperr"
	"github.com/iliyamo/school-management/internal/middleware"
	"github.com/iliyamo/school-management/internal/model"
	"github.com/iliyamo/school-management/internal/store"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg     config.Config
	Store   store.Store
	Revoker auth.Revoker
	Refresh *auth.RefreshStore
}

func NewAuthHandler(cfg config.Config, db store.Store, rev auth.Revoker, refresh *auth.RefreshStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Store: db, Revoker: rev, Refresh: refresh}
}

// ----- DTOs -----

type registerReq struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	Phone     string `json:"phone"`
}

type loginReq struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	TOTPToken string `json:"totp_token"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type verify2FAReq struct {
	Token string `json:"token"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

type enable2FAResponse struct {
	Secret      string   `json:"secret"`
	QRCodeURI   string   `json:"qr_code_uri"`
	BackupCodes []string `json:"backup_codes"`
}

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Register creates a new user account.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return httperr.Validation("invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !emailRe.MatchString(req.Email) {
		return httperr.Validation("valid email required")
	}
	if len(req.Username) < 3 {
		return httperr.Validation("username must be at least 3 characters")
	}
	if !model.ValidRole(req.Role) {
		return httperr.Validation("invalid role")
	}
	if ok, reason := auth.ValidateStrength(req.Password, h.Cfg.PasswordMinLength); !ok {
		return httperr.Validation(reason)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if _, err := h.Store.FindOne(ctx, model.ColUsers, store.Query{"email": req.Email}); err == nil {
		return httperr.Conflict("email already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return httperr.Internal(err)
	}

	hash, err := auth.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return httperr.Internal(err)
	}
	u := model.NewUser(req.Email, req.Username, hash, req.Role, req.FirstName, req.LastName, req.Phone)
	if _, err := h.Store.InsertOne(ctx, model.ColUsers, model.Doc(u)); err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusCreated, u.Public())
}

// Login verifies credentials (and the second factor when enabled) and issues
// a token pair. The "no such user" and "wrong password" cases return the
// identical error so neither can be probed.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return httperr.Validation("invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := reqCtx(c)
	defer cancel()

	doc, err := h.Store.FindOne(ctx, model.ColUsers, store.Query{"email": req.Email})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return httperr.Unauthenticated("invalid credentials")
		}
		return httperr.Internal(err)
	}
	u, err := model.UserFromDoc(doc)
	if err != nil {
		return httperr.Internal(err)
	}
	if !auth.VerifyPassword(u.PasswordHash, req.Password) {
		return httperr.Unauthenticated("invalid credentials")
	}
	if !u.IsActive {
		return httperr.Forbidden("account is inactive")
	}

	if u.TwoFactorEnabled {
		if req.TOTPToken == "" {
			return httperr.Validation("2FA token required")
		}
		if !auth.VerifyTOTP(u.TwoFactorSecret, req.TOTPToken) &&
			!h.consumeBackupCode(c, u, req.TOTPToken) {
			return httperr.Unauthenticated("invalid 2FA token")
		}
	}

	access, _, err := h.issueAccess(u)
	if err != nil {
		return httperr.Internal(err)
	}
	refresh, refreshExp, err := h.issueRefresh(u)
	if err != nil {
		return httperr.Internal(err)
	}
	if err := h.Refresh.Save(ctx, u.ID, refresh, refreshExp); err != nil {
		return httperr.Internal(err)
	}
	if _, err := h.Store.UpdateOne(ctx, model.ColUsers, store.Query{"id": u.ID}, store.Document{
		"last_login": nowRFC3339(),
		"updated_at": nowRFC3339(),
	}); err != nil {
		return httperr.Internal(err)
	}

	return c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    h.Cfg.AccessTTLMin * 60,
	})
}

// RefreshToken exchanges a valid refresh token for a new pair. Refresh
// tokens are single-use: the presented record is revoked and a new one
// stored.
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return httperr.Validation("refresh_token required")
	}
	raw := strings.TrimSpace(req.RefreshToken)

	claims, err := auth.DecodeToken(h.Cfg.JWTSecret, raw)
	if err != nil {
		return httperr.Unauthenticated("invalid or expired refresh token")
	}
	if claims.TokenType != auth.TokenTypeRefresh {
		return httperr.Unauthenticated("wrong token type")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	userID, err := h.Refresh.Validate(ctx, raw)
	if err != nil || userID != claims.UserID {
		return httperr.Unauthenticated("invalid or expired refresh token")
	}
	_ = h.Refresh.Revoke(ctx, raw)

	doc, err := h.Store.FindOne(ctx, model.ColUsers, store.Query{"id": userID})
	if err != nil {
		return httperr.Unauthenticated("invalid or expired refresh token")
	}
	u, err := model.UserFromDoc(doc)
	if err != nil {
		return httperr.Internal(err)
	}
	if !u.IsActive {
		return httperr.Forbidden("account is inactive")
	}

	access, _, err := h.issueAccess(u)
	if err != nil {
		return httperr.Internal(err)
	}
	refresh, refreshExp, err := h.issueRefresh(u)
	if err != nil {
		return httperr.Internal(err)
	}
	if err := h.Refresh.Save(ctx, u.ID, refresh, refreshExp); err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    h.Cfg.AccessTTLMin * 60,
	})
}

// Logout revokes the presented access token and every refresh record the
// caller owns, so the session ends before natural expiry.
func (h *AuthHandler) Logout(c echo.Context) error {
	raw, _ := c.Get(middleware.CtxToken).(string)
	exp, _ := c.Get(middleware.CtxTokenExp).(time.Time)
	userID, _ := c.Get(middleware.CtxUserID).(string)

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Revoker.Revoke(ctx, raw, exp); err != nil {
		return httperr.Dependency("logout failed", err)
	}
	if err := h.Refresh.RevokeAllForUser(ctx, userID); err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out successfully"})
}

// Enable2FA generates a pending TOTP secret and backup codes. The secret is
// stored on the user record but 2FA stays inactive until Verify2FA confirms
// a code.
func (h *AuthHandler) Enable2FA(c echo.Context) error {
	if !h.Cfg.Enable2FA {
		return httperr.Validation("2FA is not enabled on this server")
	}
	userID, _ := c.Get(middleware.CtxUserID).(string)
	email, _ := c.Get(middleware.CtxEmail).(string)

	secret, uri, err := auth.NewTOTPSecret(h.Cfg.TOTPIssuer, email)
	if err != nil {
		return httperr.Internal(err)
	}

	// Ten single-use backup codes; only their hashes are stored.
	codes := make([]string, 10)
	hashes := make([]string, 10)
	for i := range codes {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			return httperr.Internal(err)
		}
		codes[i] = hex.EncodeToString(buf)
		sum := sha256.Sum256([]byte(codes[i]))
		hashes[i] = hex.EncodeToString(sum[:])
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	ok, err := h.Store.UpdateOne(ctx, model.ColUsers, store.Query{"id": userID}, store.Document{
		"two_factor_secret":       secret,
		"two_factor_backup_codes": hashes,
		"updated_at":              nowRFC3339(),
	})
	if err != nil {
		return httperr.Internal(err)
	}
	if !ok {
		return httperr.NotFound("user not found")
	}
	return c.JSON(http.StatusOK, enable2FAResponse{
		Secret:      secret,
		QRCodeURI:   uri,
		BackupCodes: codes,
	})
}

// Verify2FA checks a code against the pending secret and activates 2FA. On
// failure the secret stays pending and 2FA stays inactive.
func (h *AuthHandler) Verify2FA(c echo.Context) error {
	var req verify2FAReq
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return httperr.Validation("token required")
	}
	userID, _ := c.Get(middleware.CtxUserID).(string)

	ctx, cancel := reqCtx(c)
	defer cancel()

	doc, err := h.Store.FindOne(ctx, model.ColUsers, store.Query{"id": userID})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return httperr.NotFound("user not found")
		}
		return httperr.Internal(err)
	}
	u, err := model.UserFromDoc(doc)
	if err != nil {
		return httperr.Internal(err)
	}
	if u.TwoFactorSecret == "" {
		return httperr.Validation("2FA not initiated")
	}
	if !auth.VerifyTOTP(u.TwoFactorSecret, req.Token) {
		return httperr.Validation("invalid 2FA token")
	}
	if _, err := h.Store.UpdateOne(ctx, model.ColUsers, store.Query{"id": userID}, store.Document{
		"two_factor_enabled": true,
		"updated_at":         nowRFC3339(),
	}); err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "2FA enabled successfully"})
}

// Me returns the caller's own sanitized profile.
func (h *AuthHandler) Me(c echo.Context) error {
	userID, _ := c.Get(middleware.CtxUserID).(string)

	ctx, cancel := reqCtx(c)
	defer cancel()

	doc, err := h.Store.FindOne(ctx, model.ColUsers, store.Query{"id": userID})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return httperr.NotFound("user not found")
		}
		return httperr.Internal(err)
	}
	u, err := model.UserFromDoc(doc)
	if err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, u.Public())
}

func (h *AuthHandler) issueAccess(u model.User) (string, time.Time, error) {
	return auth.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Email, u.Role,
		time.Duration(h.Cfg.AccessTTLMin)*time.Minute)
}

func (h *AuthHandler) issueRefresh(u model.User) (string, time.Time, error) {
	return auth.NewRefreshToken(h.Cfg.JWTSecret, u.ID, u.Email, u.Role,
		time.Duration(h.Cfg.RefreshTTLDays)*24*time.Hour)
}

// consumeBackupCode accepts a backup code in place of a TOTP code. A
// matching hash is removed from the record so each code works exactly once.
func (h *AuthHandler) consumeBackupCode(c echo.Context, u model.User, code string) bool {
	sum := sha256.Sum256([]byte(code))
	hash := hex.EncodeToString(sum[:])

	remaining := make([]string, 0, len(u.TwoFactorBackupCodes))
	found := false
	for _, stored := range u.TwoFactorBackupCodes {
		if !found && stored == hash {
			found = true
			continue
		}
		remaining = append(remaining, stored)
	}
	if !found {
		return false
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	_, err := h.Store.UpdateOne(ctx, model.ColUsers, store.Query{"id": u.ID}, store.Document{
		"two_factor_backup_codes": remaining,
		"updated_at":              nowRFC3339(),
	})
	return err == nil
}
