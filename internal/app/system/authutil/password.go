// Package authutil holds PinBoard's password policy and bcrypt helpers.
package authutil

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 8
	// bcrypt ignores input past 72 bytes.
	MaxPasswordLength = 72
	BcryptCost        = 12
)

var (
	ErrPasswordTooShort = errors.New("Password must be at least 8 characters.")
	ErrPasswordTooLong  = errors.New("Password must be at most 72 characters.")
	ErrPasswordCommon   = errors.New("That password is too easy to guess. Pick another.")
	ErrPasswordIsHandle = errors.New("Password must not be your username or email.")
	ErrPasswordMismatch = errors.New("Passwords do not match.")
)

// guessable passwords, lower-cased.
var guessable = func() map[string]struct{} {
	m := map[string]struct{}{}
	for _, p := range strings.Fields(`
		12345678 123456789 1234567890 87654321 11111111 00000000 12341234
		password password1 password123 passw0rd qwertyui qwerty123 1q2w3e4r
		iloveyou sunshine princess football baseball superman starwars
		letmein1 welcome1 trustno1 whatever pinboard pinboard1 abcd1234`) {
		m[p] = struct{}{}
	}
	return m
}()

// PasswordRules is the hint shown beside password fields.
func PasswordRules() string {
	return "At least 8 characters. Avoid common passwords and your username."
}

// ValidatePassword applies the length and guessability rules.
func ValidatePassword(pw string) error {
	switch {
	case len(pw) < MinPasswordLength:
		return ErrPasswordTooShort
	case len(pw) > MaxPasswordLength:
		return ErrPasswordTooLong
	}
	if _, bad := guessable[strings.ToLower(pw)]; bad {
		return ErrPasswordCommon
	}
	return nil
}

// ValidateNewPassword is ValidatePassword for signup and password change:
// confirm must match and pw may not equal the username or email.
func ValidateNewPassword(pw, confirm, username, email string) error {
	if err := ValidatePassword(pw); err != nil {
		return err
	}
	if pw != confirm {
		return ErrPasswordMismatch
	}
	for _, handle := range []string{username, email} {
		if handle != "" && strings.EqualFold(pw, handle) {
			return ErrPasswordIsHandle
		}
	}
	return nil
}

func HashPassword(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), BcryptCost)
	return string(h), err
}

// CheckPassword reports whether pw matches hash. A malformed hash never
// matches.
func CheckPassword(pw, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}
