package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func requestAs(u *auth.SessionUser) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/feed", nil)
	if u == nil {
		return r
	}
	return auth.WithTestUser(r, u)
}

func TestViewerOf(t *testing.T) {
	id := primitive.NewObjectID()

	t.Run("anonymous", func(t *testing.T) {
		v := ViewerOf(requestAs(nil))
		assert.False(t, v.SignedIn())
		assert.False(t, v.IsAdmin())
		assert.Equal(t, Viewer{}, v)
	})

	t.Run("member", func(t *testing.T) {
		v := ViewerOf(requestAs(&auth.SessionUser{
			ID: id.Hex(), Name: "Ada Lovelace", Username: "ada", Role: "Member",
			ImageURL: "/media/avatars/ada.png", ThemePreference: "dark",
		}))
		assert.True(t, v.SignedIn())
		assert.Equal(t, id, v.ID)
		assert.Equal(t, "member", v.Role)
		assert.Equal(t, "ada", v.Username)
		assert.Equal(t, "/media/avatars/ada.png", v.ImageURL)
		assert.Equal(t, "dark", v.Theme)
		assert.False(t, v.IsAdmin())
	})

	t.Run("admin role is case-folded", func(t *testing.T) {
		assert.True(t, ViewerOf(requestAs(&auth.SessionUser{ID: id.Hex(), Role: "ADMIN"})).IsAdmin())
	})

	t.Run("malformed id is anonymous", func(t *testing.T) {
		v := ViewerOf(requestAs(&auth.SessionUser{ID: "not-an-id", Role: "admin"}))
		assert.False(t, v.SignedIn())
		assert.False(t, v.IsAdmin())
	})
}

func TestCanModify(t *testing.T) {
	owner := primitive.NewObjectID()
	other := primitive.NewObjectID()

	cases := map[string]struct {
		user *auth.SessionUser
		want bool
	}{
		"owner":            {&auth.SessionUser{ID: owner.Hex(), Role: "member"}, true},
		"other member":     {&auth.SessionUser{ID: other.Hex(), Role: "member"}, false},
		"admin":            {&auth.SessionUser{ID: other.Hex(), Role: "admin"}, true},
		"anonymous":        {nil, false},
		"malformed admin":  {&auth.SessionUser{ID: "zzz", Role: "admin"}, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanModify(requestAs(tc.user), owner))
		})
	}
}
