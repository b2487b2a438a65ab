// Package model defines the persisted record types and the role enumeration.
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/school-management/internal/store"
)

// Role values form a closed set. Route-level policy consumes these; there is
// no stored role entity.
const (
	RoleSuperadmin = "superadmin"
	RoleAdmin      = "admin"
	RoleHeadmaster = "headmaster"
	RoleTeacher    = "teacher"
	RoleStudent    = "student"
	RoleParent     = "parent"
	RoleFinance    = "finance"
	RoleStaff      = "staff"
	RoleLibrarian  = "librarian"
)

// ValidRole reports whether role belongs to the closed set.
func ValidRole(role string) bool {
	switch role {
	case RoleSuperadmin, RoleAdmin, RoleHeadmaster, RoleTeacher, RoleStudent,
		RoleParent, RoleFinance, RoleStaff, RoleLibrarian:
		return true
	}
	return false
}

// Collection names used across handlers. Keeping them in one place avoids
// typo'd collection strings scattering through the codebase.
const (
	ColUsers         = "users"
	ColRefreshTokens = "refresh_tokens"
	ColStudents      = "students"
	ColTeachers      = "teachers"
	ColClasses       = "classes"
	ColSubjects      = "subjects"
	ColGrades        = "grades"
	ColAttendance    = "attendance"
	ColDormitories   = "dormitories"
	ColDormRooms     = "dormitory_rooms"
	ColAllocations   = "dormitory_allocations"
	ColBooks         = "library_books"
	ColLoans         = "library_loans"
	ColFeeTypes      = "fee_types"
	ColInvoices      = "invoices"
	ColPayments      = "payments"
)

// User is the persisted identity record. Email is unique across all users.
type User struct {
	ID                   string   `json:"id"`
	Email                string   `json:"email"`
	Username             string   `json:"username"`
	PasswordHash         string   `json:"password_hash,omitempty"`
	Role                 string   `json:"role"`
	FirstName            string   `json:"first_name"`
	LastName             string   `json:"last_name"`
	Phone                string   `json:"phone,omitempty"`
	IsActive             bool     `json:"is_active"`
	IsVerified           bool     `json:"is_verified"`
	TwoFactorEnabled     bool     `json:"two_factor_enabled"`
	TwoFactorSecret      string   `json:"two_factor_secret,omitempty"`
	TwoFactorBackupCodes []string `json:"two_factor_backup_codes,omitempty"`
	LastLogin            string   `json:"last_login,omitempty"`
	CreatedAt            string   `json:"created_at"`
	UpdatedAt            string   `json:"updated_at"`
}

// NewUser builds a user record with generated id and timestamps.
func NewUser(email, username, passwordHash, role, firstName, lastName, phone string) User {
	now := time.Now().UTC().Format(time.RFC3339)
	return User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		FirstName:    firstName,
		LastName:     lastName,
		Phone:        phone,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// PublicUser is the sanitized view returned to clients. The password hash and
// two-factor secret never appear here.
type PublicUser struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Username         string `json:"username"`
	Role             string `json:"role"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Phone            string `json:"phone,omitempty"`
	IsActive         bool   `json:"is_active"`
	IsVerified       bool   `json:"is_verified"`
	TwoFactorEnabled bool   `json:"two_factor_enabled"`
	LastLogin        string `json:"last_login,omitempty"`
	CreatedAt        string `json:"created_at"`
}

// Public strips credential material from a user record.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:               u.ID,
		Email:            u.Email,
		Username:         u.Username,
		Role:             u.Role,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Phone:            u.Phone,
		IsActive:         u.IsActive,
		IsVerified:       u.IsVerified,
		TwoFactorEnabled: u.TwoFactorEnabled,
		LastLogin:        u.LastLogin,
		CreatedAt:        u.CreatedAt,
	}
}

// Doc converts any record to a store document via its JSON form.
func Doc(v any) store.Document {
	raw, _ := json.Marshal(v)
	var doc store.Document
	_ = json.Unmarshal(raw, &doc)
	return doc
}

// UserFromDoc decodes a stored user document.
func UserFromDoc(doc store.Document) (User, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return User{}, err
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// SanitizeDoc removes credential fields from a raw user document before it is
// returned to any client.
func SanitizeDoc(doc store.Document) store.Document {
	delete(doc, "password_hash")
	delete(doc, "two_factor_secret")
	delete(doc, "two_factor_backup_codes")
	return doc
}
