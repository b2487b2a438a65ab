package auth

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// NewTOTPSecret generates a fresh 160-bit base32 secret for the given account
// and returns it together with the otpauth:// provisioning URI used for
// QR-code rendering.
func NewTOTPSecret(issuer, account string) (secret, uri string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		SecretSize:  20,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// VerifyTOTP validates a 6-digit code against the secret at the current time,
// with one 30-second step of tolerance on either side to absorb clock drift.
// Malformed codes are rejected.
func VerifyTOTP(secret, code string) bool {
	return verifyTOTPAt(secret, code, time.Now().UTC())
}

func verifyTOTPAt(secret, code string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
