package authutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		pw   string
		want error
	}{
		{"pinned-it", nil},
		{"eight888", nil},
		{"with some spaces", nil},
		{strings.Repeat("z", MaxPasswordLength), nil},
		{"", ErrPasswordTooShort},
		{"seven77", ErrPasswordTooShort},
		{strings.Repeat("z", MaxPasswordLength+1), ErrPasswordTooLong},
		{"password", ErrPasswordCommon},
		{"PassWord123", ErrPasswordCommon},
		{"12345678", ErrPasswordCommon},
		{"PINBOARD", ErrPasswordCommon},
	}
	for _, tc := range cases {
		assert.ErrorIs(t, ValidatePassword(tc.pw), tc.want, "password %q", tc.pw)
		if tc.want == nil {
			assert.NoError(t, ValidatePassword(tc.pw), "password %q", tc.pw)
		}
	}
}

func TestValidateNewPassword(t *testing.T) {
	cases := map[string]struct {
		pw, confirm, username, email string
		want                         error
	}{
		"ok":                {"corkboard-42", "corkboard-42", "ada", "ada@example.com", nil},
		"mismatch":          {"corkboard-42", "corkboard-43", "ada", "ada@example.com", ErrPasswordMismatch},
		"policy first":      {"short", "other", "ada", "", ErrPasswordTooShort},
		"equals username":   {"lovelace", "lovelace", "Lovelace", "", ErrPasswordIsHandle},
		"equals email":      {"ada@example.com", "ada@example.com", "ada", "ADA@example.com", ErrPasswordIsHandle},
		"blank handles":     {"corkboard-42", "corkboard-42", "", "", nil},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := ValidateNewPassword(tc.pw, tc.confirm, tc.username, tc.email)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("corkboard-42")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2"), "bcrypt hash expected, got %q", hash)

	again, err := HashPassword("corkboard-42")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "hashes must be salted")

	assert.True(t, CheckPassword("corkboard-42", hash))
	assert.False(t, CheckPassword("corkboard-43", hash))
	assert.False(t, CheckPassword("corkboard-42", "not-a-hash"))
	assert.False(t, CheckPassword("", ""))
}

func TestPasswordRulesMentionMinimum(t *testing.T) {
	assert.Contains(t, PasswordRules(), "8 characters")
}
