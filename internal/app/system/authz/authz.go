// Package authz answers who is looking at a page and what they may change.
package authz

import (
	"net/http"
	"strings"

	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Viewer is the request's signed-in user. The zero Viewer is an anonymous
// visitor.
type Viewer struct {
	ID       primitive.ObjectID
	Role     string // lower-cased
	Name     string
	Username string
	ImageURL string
	Theme    string
}

// ViewerOf reads the viewer from r. A session user with a malformed id is
// treated as anonymous.
func ViewerOf(r *http.Request) Viewer {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return Viewer{}
	}
	id, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return Viewer{}
	}
	return Viewer{
		ID:       id,
		Role:     strings.ToLower(u.Role),
		Name:     u.Name,
		Username: u.Username,
		ImageURL: u.ImageURL,
		Theme:    u.ThemePreference,
	}
}

func (v Viewer) SignedIn() bool { return !v.ID.IsZero() }

func (v Viewer) IsAdmin() bool { return v.SignedIn() && v.Role == models.RoleAdmin }

// CanModify reports whether v owns the content or is an admin.
func (v Viewer) CanModify(ownerID primitive.ObjectID) bool {
	return v.SignedIn() && (v.ID == ownerID || v.Role == models.RoleAdmin)
}

// CanModify is ViewerOf(r).CanModify(ownerID).
func CanModify(r *http.Request, ownerID primitive.ObjectID) bool {
	return ViewerOf(r).CanModify(ownerID)
}
