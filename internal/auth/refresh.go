package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/school-management/internal/store"
)

// ErrRefreshInvalid covers missing, expired and revoked refresh records.
var ErrRefreshInvalid = errors.New("refresh token is invalid")

// RefreshStore persists refresh-token records. Only a SHA-256 hash of the
// token is stored; records are single-use and revoked when rotated or on
// logout.
type RefreshStore struct {
	DB store.Store
}

func NewRefreshStore(db store.Store) *RefreshStore { return &RefreshStore{DB: db} }

const refreshCollection = "refresh_tokens"

// HashRefresh returns the hex SHA-256 digest of a raw refresh token.
func HashRefresh(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Save records a freshly issued refresh token for a user.
func (r *RefreshStore) Save(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := r.DB.InsertOne(ctx, refreshCollection, store.Document{
		"id":         uuid.NewString(),
		"user_id":    userID,
		"token_hash": HashRefresh(token),
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
		"created_at": time.Now().UTC().Format(time.RFC3339),
	})
	return err
}

// Validate returns the owning user id for a live, unrevoked record.
func (r *RefreshStore) Validate(ctx context.Context, token string) (string, error) {
	doc, err := r.DB.FindOne(ctx, refreshCollection, store.Query{"token_hash": HashRefresh(token)})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrRefreshInvalid
		}
		return "", err
	}
	if revoked, _ := doc["revoked_at"].(string); revoked != "" {
		return "", ErrRefreshInvalid
	}
	expStr, _ := doc["expires_at"].(string)
	exp, err := time.Parse(time.RFC3339, expStr)
	if err != nil || time.Now().UTC().After(exp) {
		return "", ErrRefreshInvalid
	}
	userID, _ := doc["user_id"].(string)
	if userID == "" {
		return "", ErrRefreshInvalid
	}
	return userID, nil
}

// Revoke marks a single record as revoked.
func (r *RefreshStore) Revoke(ctx context.Context, token string) error {
	_, err := r.DB.UpdateOne(ctx, refreshCollection,
		store.Query{"token_hash": HashRefresh(token)},
		store.Document{"revoked_at": time.Now().UTC().Format(time.RFC3339)})
	return err
}

// RevokeAllForUser revokes every live record a user owns. Logout across all
// sessions.
func (r *RefreshStore) RevokeAllForUser(ctx context.Context, userID string) error {
	docs, err := r.DB.FindMany(ctx, refreshCollection, store.Query{"user_id": userID}, 0)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for _, doc := range docs {
		if revoked, _ := doc["revoked_at"].(string); revoked != "" {
			continue
		}
		id, _ := doc["id"].(string)
		if _, err := r.DB.UpdateOne(ctx, refreshCollection,
			store.Query{"id": id}, store.Document{"revoked_at": now}); err != nil {
			return err
		}
	}
	return nil
}
