package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Board member roles
const (
	BoardRoleAdmin  = "admin"
	BoardRoleMember = "member"
)

// Board is a topical bulletin board that members post into.
type Board struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	NameCI      string             `bson:"name_ci" json:"-"`
	Slug        string             `bson:"slug" json:"slug"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	CreatorID   primitive.ObjectID `bson:"creator_id" json:"creatorId"`
	MemberCount int                `bson:"member_count" json:"members"`
	PostCount   int                `bson:"post_count" json:"posts"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updatedAt"`
}

// BoardMember links a user to a board.
type BoardMember struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	BoardID  primitive.ObjectID `bson:"board_id" json:"boardId"`
	UserID   primitive.ObjectID `bson:"user_id" json:"userId"`
	Role     string             `bson:"role" json:"role"`
	JoinedAt time.Time          `bson:"joined_at" json:"joinedAt"`
}

// Follow records that FollowerID follows FollowingID.
type Follow struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	FollowerID  primitive.ObjectID `bson:"follower_id"`
	FollowingID primitive.ObjectID `bson:"following_id"`
	CreatedAt   time.Time          `bson:"created_at"`
}
