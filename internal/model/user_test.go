package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidRole(t *testing.T) {
	t.Parallel()

	for _, role := range []string{RoleSuperadmin, RoleAdmin, RoleHeadmaster, RoleTeacher,
		RoleStudent, RoleParent, RoleFinance, RoleStaff, RoleLibrarian} {
		assert.True(t, ValidRole(role), role)
	}
	assert.False(t, ValidRole("wizard"))
	assert.False(t, ValidRole(""))
	assert.False(t, ValidRole("Admin"))
}

func TestUser_PublicStripsCredentials(t *testing.T) {
	t.Parallel()

	u := NewUser("jane@school.test", "janedoe", "$2a$12$hash", RoleTeacher, "Jane", "Doe", "")
	u.TwoFactorSecret = "SECRET"
	u.TwoFactorBackupCodes = []string{"deadbeef"}

	raw, err := json.Marshal(u.Public())
	require.NoError(t, err)
	body := string(raw)
	assert.NotContains(t, body, "password_hash")
	assert.NotContains(t, body, "two_factor_secret")
	assert.NotContains(t, body, "deadbeef")
	assert.Contains(t, body, "jane@school.test")
}

func TestDocRoundTrip(t *testing.T) {
	t.Parallel()

	u := NewUser("jane@school.test", "janedoe", "hash", RoleTeacher, "Jane", "Doe", "")
	doc := Doc(u)
	assert.Equal(t, u.ID, doc["id"])
	assert.Equal(t, "hash", doc["password_hash"])

	back, err := UserFromDoc(doc)
	require.NoError(t, err)
	assert.Equal(t, u, back)
}

func TestSanitizeDoc(t *testing.T) {
	t.Parallel()

	doc := Doc(NewUser("jane@school.test", "janedoe", "hash", RoleTeacher, "Jane", "Doe", ""))
	doc["two_factor_secret"] = "SECRET"
	doc["two_factor_backup_codes"] = []string{"deadbeef"}

	out := SanitizeDoc(doc)
	assert.NotContains(t, out, "password_hash")
	assert.NotContains(t, out, "two_factor_secret")
	assert.NotContains(t, out, "two_factor_backup_codes")
	assert.Equal(t, "jane@school.test", out["email"])
}
