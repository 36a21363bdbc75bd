package engagementstore

import (
	"errors"
	"testing"

	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/dalemusser/pinboard/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func insertPost(t *testing.T, db *mongo.Database) primitive.ObjectID {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	p := models.Post{ID: primitive.NewObjectID(), UserID: primitive.NewObjectID(), Content: "x"}
	if _, err := db.Collection("posts").InsertOne(ctx, p); err != nil {
		t.Fatalf("insert post: %v", err)
	}
	return p.ID
}

func loadPost(t *testing.T, db *mongo.Database, id primitive.ObjectID) models.Post {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	var p models.Post
	if err := db.Collection("posts").FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		t.Fatalf("load post: %v", err)
	}
	return p
}

func TestStore_ToggleLike(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	postID := insertPost(t, db)
	uid := primitive.NewObjectID()

	liked, err := store.ToggleLike(ctx, uid, postID)
	if err != nil || !liked {
		t.Fatalf("ToggleLike() = %v, %v; want true", liked, err)
	}
	if got := loadPost(t, db, postID).LikeCount; got != 1 {
		t.Errorf("like_count = %d, want 1", got)
	}
	set, err := store.LikedSet(ctx, uid, []primitive.ObjectID{postID, primitive.NewObjectID()})
	if err != nil || !set[postID] || len(set) != 1 {
		t.Errorf("LikedSet() = %v, %v", set, err)
	}

	liked, err = store.ToggleLike(ctx, uid, postID)
	if err != nil || liked {
		t.Fatalf("second ToggleLike() = %v, %v; want false", liked, err)
	}
	if got := loadPost(t, db, postID).LikeCount; got != 0 {
		t.Errorf("like_count after unlike = %d, want 0", got)
	}

	if _, err := store.ToggleLike(ctx, uid, primitive.NewObjectID()); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("ToggleLike(missing post) error = %v, want ErrPostNotFound", err)
	}
}

func TestStore_RepostOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	postID := insertPost(t, db)
	uid := primitive.NewObjectID()

	if _, err := store.Repost(ctx, uid, postID); err != nil {
		t.Fatalf("Repost() error = %v", err)
	}
	if _, err := store.Repost(ctx, uid, postID); !errors.Is(err, ErrAlreadyReposted) {
		t.Fatalf("second Repost() error = %v, want ErrAlreadyReposted", err)
	}
	if got := loadPost(t, db, postID).RepostCount; got != 1 {
		t.Errorf("repost_count = %d, want 1", got)
	}
	set, _ := store.RepostedSet(ctx, uid, []primitive.ObjectID{postID})
	if !set[postID] {
		t.Error("RepostedSet() missing post")
	}
}

func TestStore_ShareRepeats(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	postID := insertPost(t, db)
	uid := primitive.NewObjectID()
	for i := 0; i < 2; i++ {
		if _, err := store.Share(ctx, uid, postID); err != nil {
			t.Fatalf("Share() error = %v", err)
		}
	}
	if got := loadPost(t, db, postID).ShareCount; got != 2 {
		t.Errorf("share_count = %d, want 2", got)
	}
}
