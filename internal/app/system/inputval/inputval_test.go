package inputval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signupLike struct {
	Name     string `json:"name" validate:"required,max=10" label:"Display name"`
	Username string `json:"username" validate:"required,username" label:"Username"`
	Email    string `json:"email" validate:"required,email" label:"Email"`
}

func TestValidate(t *testing.T) {
	ok := signupLike{Name: "Ada", Username: "ada_l", Email: "ada@example.com"}
	assert.False(t, Validate(ok).HasErrors())
	assert.False(t, Validate(&ok).HasErrors(), "pointers validate too")

	cases := map[string]struct {
		mutate func(*signupLike)
		want   string
	}{
		"missing name":    {func(s *signupLike) { s.Name = "" }, "Display name is required."},
		"long name":       {func(s *signupLike) { s.Name = "Augusta Ada King" }, "Display name must be at most 10 characters."},
		"bad username":    {func(s *signupLike) { s.Username = "ada lovelace" }, "Username must be 3 to 20 letters, digits or underscores."},
		"short username":  {func(s *signupLike) { s.Username = "al" }, "Username must be 3 to 20 letters, digits or underscores."},
		"bad email":       {func(s *signupLike) { s.Email = "ada-at-example" }, "Enter a valid email address."},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in := ok
			tc.mutate(&in)
			res := Validate(in)
			require.True(t, res.HasErrors())
			assert.Equal(t, tc.want, res.First())
		})
	}
}

func TestValidate_FirstFieldFirst(t *testing.T) {
	res := Validate(signupLike{})
	require.True(t, res.HasErrors())
	assert.Equal(t, "Display name", res.Errors[0].Label)
	assert.Equal(t, "name", res.Errors[0].Field)
	assert.Contains(t, res.All(), res.First())
}

func TestValidate_LabelFallsBackToFieldName(t *testing.T) {
	type bare struct {
		Title string `validate:"required"`
	}
	assert.Equal(t, "Title is required.", Validate(bare{}).First())
}

func TestValidate_CustomRules(t *testing.T) {
	type profile struct {
		Site  string `validate:"httpurl" label:"Website"`
		Theme string `validate:"theme" label:"Theme"`
	}
	assert.False(t, Validate(profile{Site: "https://pinboard.example/ada", Theme: "midnight"}).HasErrors())
	assert.Equal(t, "Website must be an http:// or https:// link.", Validate(profile{Site: "ftp://x", Theme: "midnight"}).First())
	assert.Equal(t, "Theme is not a known theme.", Validate(profile{Site: "http://x.org", Theme: "plaid"}).First())
}

func TestValidate_NonStruct(t *testing.T) {
	res := Validate(42)
	require.NotNil(t, res)
	assert.False(t, res.HasErrors())
}

func TestResultHelpers(t *testing.T) {
	var empty *Result
	assert.False(t, empty.HasErrors())
	assert.Equal(t, "", empty.First())
	assert.Equal(t, "", (&Result{}).All())

	r := &Result{Errors: []FieldError{{Message: "one."}, {Message: "two."}}}
	assert.Equal(t, "one.", r.First())
	assert.Equal(t, "one.; two.", r.All())
}

func TestIsValidUsername(t *testing.T) {
	for _, s := range []string{"ada", "Ada_Lovelace", "x_1", "abcdefghijklmnopqrst"} {
		assert.True(t, IsValidUsername(s), s)
	}
	for _, s := range []string{"", "ab", "abcdefghijklmnopqrstu", "ada.l", "ada l", "adà"} {
		assert.False(t, IsValidUsername(s), s)
	}
}

func TestIsValidHTTPURL(t *testing.T) {
	for _, s := range []string{"http://example.com", "https://cdn.example.com/a.png?x=1", "  https://example.com  "} {
		assert.True(t, IsValidHTTPURL(s), s)
	}
	for _, s := range []string{"", "example.com", "ftp://example.com", "javascript:alert(1)", "https://", "/media/a.png"} {
		assert.False(t, IsValidHTTPURL(s), s)
	}
}
