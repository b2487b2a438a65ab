// Package auth implements the credential primitives: password hashing and
// policy, JWT issuance and verification, TOTP two-factor codes, the token
// revocation registry and persisted refresh-token records.
package auth

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// passwordSymbols is the fixed punctuation set a password must draw from.
const passwordSymbols = "!@#$%^&*()_+-=[]{}|;:,.<>?"

// HashPassword returns a bcrypt hash using the given cost. The salt is
// embedded in the output.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password. A malformed
// hash is reported as a mismatch, never an error.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// ValidateStrength checks the password policy and returns the first failing
// reason: length, then uppercase, then digit, then symbol.
func ValidateStrength(password string, minLength int) (bool, string) {
	if len(password) < minLength {
		return false, fmt.Sprintf("password must be at least %d characters", minLength)
	}
	var hasUpper, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, r):
			hasSymbol = true
		}
	}
	if !hasUpper {
		return false, "password must contain at least one uppercase letter"
	}
	if !hasDigit {
		return false, "password must contain at least one number"
	}
	if !hasSymbol {
		return false, "password must contain at least one special character"
	}
	return true, "password is strong"
}
