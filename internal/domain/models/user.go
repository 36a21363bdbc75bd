// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a PinBoard account.
//
// Identity fields:
//   - Username: the public handle shown as @username (case preserved)
//   - UsernameCI: folded handle used for lookups and the unique index
//   - Email: login and contact address (stored lowercase, unique)
//   - AuthMethod: password or google
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName   string             `bson:"full_name" json:"name"`
	FullNameCI string             `bson:"full_name_ci" json:"-"`

	Username   string `bson:"username" json:"username"`
	UsernameCI string `bson:"username_ci" json:"-"`
	Email      string `bson:"email" json:"email,omitempty"`
	AuthMethod string `bson:"auth_method" json:"-"`

	PasswordHash *string `bson:"password_hash,omitempty" json:"-"`

	Bio       string `bson:"bio,omitempty" json:"bio,omitempty"`
	ImageURL  string `bson:"image_url,omitempty" json:"image,omitempty"`  // external avatar (Google)
	ImagePath string `bson:"image_path,omitempty" json:"-"`              // uploaded avatar in file storage

	Role   string `bson:"role" json:"role"`
	Status string `bson:"status,omitempty" json:"-"`

	ThemePreference string `bson:"theme_preference,omitempty" json:"theme,omitempty"`

	FollowerCount  int `bson:"follower_count" json:"followers"`
	FollowingCount int `bson:"following_count" json:"following"`
	PostCount      int `bson:"post_count" json:"posts"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// User roles
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// User statuses
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// IsValidStatus reports whether st is a known account status.
func IsValidStatus(st string) bool {
	return st == StatusActive || st == StatusDisabled
}

// Auth methods
const (
	AuthPassword = "password"
	AuthGoogle   = "google"
)

// AllRoles returns all valid user roles.
func AllRoles() []string {
	return []string{RoleMember, RoleAdmin}
}

// IsValidRole checks if a role is valid.
func IsValidRole(role string) bool {
	for _, r := range AllRoles() {
		if r == role {
			return true
		}
	}
	return false
}

// UserSummary is the author/partner card embedded in posts, comments,
// leaderboard rows and conversations.
type UserSummary struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	Name     string             `bson:"full_name" json:"name"`
	Username string             `bson:"username" json:"username"`
	ImageURL string             `bson:"image_url,omitempty" json:"image,omitempty"`
}

// Summary returns the public card for u.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.FullName, Username: u.Username, ImageURL: u.ImageURL}
}

// Initial returns the first letter of the display name for avatar placeholders.
func (s UserSummary) Initial() string {
	for _, r := range s.Name {
		return string(r)
	}
	for _, r := range s.Username {
		return string(r)
	}
	return "?"
}
