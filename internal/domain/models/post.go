package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Media types accepted on posts.
const (
	MediaImage = "image"
	MediaVideo = "video"
)

// Post is a piece of content on the global feed or inside a board.
type Post struct {
	ID      primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID  primitive.ObjectID  `bson:"user_id" json:"userId"`
	BoardID *primitive.ObjectID `bson:"board_id,omitempty" json:"bulletinBoardId,omitempty"`

	Content  string   `bson:"content" json:"content"`
	Hashtags []string `bson:"hashtags,omitempty" json:"hashtags,omitempty"`

	MediaURL  string `bson:"media_url,omitempty" json:"mediaUrl,omitempty"`
	MediaPath string `bson:"media_path,omitempty" json:"-"`
	MediaType string `bson:"media_type,omitempty" json:"mediaType,omitempty"`

	LikeCount    int `bson:"like_count" json:"likes"`
	CommentCount int `bson:"comment_count" json:"comments"`
	RepostCount  int `bson:"repost_count" json:"reposts"`
	ShareCount   int `bson:"share_count" json:"shares"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// Comment is a reply attached to a post.
type Comment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PostID    primitive.ObjectID `bson:"post_id" json:"postId"`
	UserID    primitive.ObjectID `bson:"user_id" json:"userId"`
	Content   string             `bson:"content" json:"content"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
}

// Like, Repost and Share record a single user's engagement with a post.
type Like struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	PostID    primitive.ObjectID `bson:"post_id"`
	UserID    primitive.ObjectID `bson:"user_id"`
	CreatedAt time.Time          `bson:"created_at"`
}

type Repost struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PostID    primitive.ObjectID `bson:"post_id" json:"postId"`
	UserID    primitive.ObjectID `bson:"user_id" json:"userId"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
}

type Share struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PostID    primitive.ObjectID `bson:"post_id" json:"postId"`
	UserID    primitive.ObjectID `bson:"user_id" json:"userId"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
}
