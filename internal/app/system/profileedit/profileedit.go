// Package profileedit validates and applies profile edits made through the
// JSON API or the settings page.
package profileedit

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	userstore "github.com/dalemusser/pinboard/internal/app/store/users"
	"github.com/dalemusser/pinboard/internal/app/system/htmlsanitize"
	"github.com/dalemusser/pinboard/internal/app/system/inputval"
	"github.com/dalemusser/pinboard/internal/app/system/normalize"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MaxNameLen = 100
	MaxBioLen  = 500
)

// ErrUsernameTaken is returned by Apply when another account owns the handle.
var ErrUsernameTaken = errors.New("username is already taken")

// Request carries the optional profile fields. nil fields are unchanged.
type Request struct {
	Name     *string `json:"name"`
	Username *string `json:"username"`
	Bio      *string `json:"bio"`
	Image    *string `json:"image"`
}

// Change is a validated edit and the names of the fields it touches.
type Change struct {
	Update userstore.ProfileUpdate
	Fields []string
}

// Validate cleans req. On failure it returns a message for the user.
func Validate(req Request) (Change, string) {
	var c Change
	if req.Name != nil {
		name := normalize.Name(*req.Name)
		if name == "" || utf8.RuneCountInString(name) > MaxNameLen {
			return c, "Name must be 1-100 characters."
		}
		c.Update.FullName = &name
		c.Fields = append(c.Fields, "name")
	}
	if req.Username != nil {
		un := normalize.Username(*req.Username)
		if !inputval.IsValidUsername(un) {
			return c, "Username must be 3-20 characters using letters, numbers or underscores."
		}
		c.Update.Username = &un
		c.Fields = append(c.Fields, "username")
	}
	if req.Bio != nil {
		bio := htmlsanitize.Text(normalize.Content(*req.Bio))
		if utf8.RuneCountInString(bio) > MaxBioLen {
			return c, "Bio can be at most 500 characters."
		}
		c.Update.Bio = &bio
		c.Fields = append(c.Fields, "bio")
	}
	if req.Image != nil {
		img := strings.TrimSpace(*req.Image)
		if img != "" && !inputval.IsValidHTTPURL(img) {
			return c, "Image must be a valid URL starting with http:// or https://."
		}
		c.Update.ImageURL = &img
		c.Fields = append(c.Fields, "image")
	}
	return c, ""
}

// Apply stores c for userID. It returns ErrUsernameTaken when the new
// handle belongs to someone else, including when a concurrent edit wins
// the unique index.
func Apply(ctx context.Context, users *userstore.Store, userID primitive.ObjectID, c Change) error {
	if c.Update.Username != nil {
		taken, err := users.UsernameTakenByOther(ctx, *c.Update.Username, userID)
		if err != nil {
			return err
		}
		if taken {
			return ErrUsernameTaken
		}
	}
	if _, err := users.UpdateProfile(ctx, userID, c.Update); err != nil {
		if errors.Is(err, userstore.ErrDuplicateUsername) {
			return ErrUsernameTaken
		}
		return err
	}
	return nil
}
