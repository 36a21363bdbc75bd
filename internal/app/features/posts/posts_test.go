package posts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	errorsfeature "github.com/dalemusser/pinboard/internal/app/features/errors"
	streakstore "github.com/dalemusser/pinboard/internal/app/store/streaks"
	"github.com/dalemusser/pinboard/internal/app/system/media"
	"github.com/dalemusser/pinboard/internal/app/system/streaktracker"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/dalemusser/pinboard/internal/domain/streak"
	"github.com/dalemusser/pinboard/internal/testutil"
	"github.com/dalemusser/waffle/pantry/storage"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*Handler, *mongo.Database) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return newHandlerWith(t, db, streaktracker.New(db, zap.NewNop())), db
}

func newHandlerWith(t *testing.T, db *mongo.Database, tracker *streaktracker.Tracker) *Handler {
	t.Helper()
	logger := zap.NewNop()

	store, err := storage.NewLocal(storage.LocalConfig{BasePath: t.TempDir(), BaseURL: "/uploads"})
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	return NewHandler(
		db,
		tracker,
		media.NewUploader(store, 1<<20),
		errorsfeature.NewErrorLogger(logger),
		nil,
		0,
		logger,
	)
}

// refusingStreaks fails every streak write.
type refusingStreaks struct {
	*streakstore.Store
}

func (refusingStreaks) RecordActivity(context.Context, primitive.ObjectID, time.Time) (models.StreakRecord, streak.Outcome, error) {
	return models.StreakRecord{}, streak.Unchanged, errors.New("streaks unavailable")
}

func findOne(t *testing.T, db *mongo.Database, coll string, filter bson.M, out any) {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := db.Collection(coll).FindOne(ctx, filter).Decode(out); err != nil {
		t.Fatalf("find %s: %v", coll, err)
	}
}

func count(t *testing.T, db *mongo.Database, coll string, filter bson.M) int64 {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	n, err := db.Collection(coll).CountDocuments(ctx, filter)
	if err != nil {
		t.Fatalf("count %s: %v", coll, err)
	}
	return n
}

func TestAPICreate_RecordsStreakAndCounters(t *testing.T) {
	h, db := newTestHandler(t)
	uid := testutil.InsertUser(t, db, models.User{Username: "alice"})
	user := testutil.MemberUser(uid, "alice")

	rec := httptest.NewRecorder()
	h.apiCreate(rec, testutil.NewJSONRequest(http.MethodPost, "/api/posts", `{"content":"Hello <b>world</b> #GoLang"}`, user))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body = %s", rec.Code, rec.Body.String())
	}
	var card struct {
		ID       string   `json:"id"`
		Content  string   `json:"content"`
		Hashtags []string `json:"hashtags"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &card); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if card.Content != "Hello world #GoLang" {
		t.Errorf("content = %q, want markup stripped", card.Content)
	}
	if len(card.Hashtags) != 1 || card.Hashtags[0] != "golang" {
		t.Errorf("hashtags = %v, want [golang]", card.Hashtags)
	}

	var rec2 models.StreakRecord
	findOne(t, db, "streaks", bson.M{"user_id": uid}, &rec2)
	if rec2.CurrentStreak != 1 || rec2.LongestStreak != 1 {
		t.Errorf("streak = %d/%d, want 1/1", rec2.CurrentStreak, rec2.LongestStreak)
	}
	if n := count(t, db, "activity_events", bson.M{"user_id": uid, "event_type": "post_created"}); n != 1 {
		t.Errorf("post_created events = %d, want 1", n)
	}

	var u models.User
	findOne(t, db, "users", bson.M{"_id": uid}, &u)
	if u.PostCount != 1 {
		t.Errorf("post_count = %d, want 1", u.PostCount)
	}
}

func TestAPICreate_StreakFailureStillCreatesPost(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandlerWith(t, db, streaktracker.NewWithStreaks(db, refusingStreaks{streakstore.New(db)}, zap.NewNop()))
	uid := testutil.InsertUser(t, db, models.User{Username: "alice"})

	rec := httptest.NewRecorder()
	h.apiCreate(rec, testutil.NewJSONRequest(http.MethodPost, "/api/posts", `{"content":"still here"}`, testutil.MemberUser(uid, "alice")))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body = %s", rec.Code, rec.Body.String())
	}
	if n := count(t, db, "posts", bson.M{"user_id": uid}); n != 1 {
		t.Errorf("posts = %d, want 1", n)
	}
	if n := count(t, db, "streaks", bson.M{"user_id": uid}); n != 0 {
		t.Errorf("streak records = %d, want 0", n)
	}
	if n := count(t, db, "activity_events", bson.M{"user_id": uid}); n != 0 {
		t.Errorf("activity events = %d, want 0", n)
	}
}

func TestAPICreate_SecondPostSameDayKeepsStreak(t *testing.T) {
	h, db := newTestHandler(t)
	uid := testutil.InsertUser(t, db, models.User{Username: "alice"})
	user := testutil.MemberUser(uid, "alice")

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.apiCreate(rec, testutil.NewJSONRequest(http.MethodPost, "/api/posts", `{"content":"again"}`, user))
		if rec.Code != http.StatusCreated {
			t.Fatalf("post %d status = %d", i, rec.Code)
		}
	}
	var s models.StreakRecord
	findOne(t, db, "streaks", bson.M{"user_id": uid}, &s)
	if s.CurrentStreak != 1 {
		t.Errorf("current = %d, want 1 after two posts on one day", s.CurrentStreak)
	}
}

func TestAPICreate_Validation(t *testing.T) {
	h, db := newTestHandler(t)
	uid := testutil.InsertUser(t, db, models.User{Username: "alice"})
	user := testutil.MemberUser(uid, "alice")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty", `{"content":"   "}`, http.StatusBadRequest},
		{"markup only", `{"content":"<script>x</script>"}`, http.StatusBadRequest},
		{"too long", `{"content":"` + strings.Repeat("a", MaxContentLen+1) + `"}`, http.StatusBadRequest},
		{"bad board", `{"content":"x","bulletinBoardId":"nope"}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.apiCreate(rec, testutil.NewJSONRequest(http.MethodPost, "/api/posts", tt.body, user))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
	if n := count(t, db, "streaks", bson.M{}); n != 0 {
		t.Errorf("streak records = %d, want 0 after rejected posts", n)
	}
}

func TestAPICreate_BoardMembership(t *testing.T) {
	h, db := newTestHandler(t)
	owner := testutil.InsertUser(t, db, models.User{Username: "owner"})
	outsider := testutil.InsertUser(t, db, models.User{Username: "outsider"})
	board := testutil.InsertBoard(t, db, "Gophers", "gophers", owner)
	body := `{"content":"hi board","bulletinBoardId":"` + board.ID.Hex() + `"}`

	rec := httptest.NewRecorder()
	h.apiCreate(rec, testutil.NewJSONRequest(http.MethodPost, "/api/posts", body, testutil.MemberUser(outsider, "outsider")))
	if rec.Code != http.StatusForbidden {
		t.Errorf("outsider status = %d, want 403", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.apiCreate(rec, testutil.NewJSONRequest(http.MethodPost, "/api/posts", body, testutil.MemberUser(owner, "owner")))
	if rec.Code != http.StatusCreated {
		t.Fatalf("member status = %d, want 201", rec.Code)
	}
	var b models.Board
	findOne(t, db, "boards", bson.M{"_id": board.ID}, &b)
	if b.PostCount != 1 {
		t.Errorf("board post_count = %d, want 1", b.PostCount)
	}
}

func TestAPIDelete(t *testing.T) {
	h, db := newTestHandler(t)
	author := testutil.InsertUser(t, db, models.User{Username: "author"})
	other := testutil.InsertUser(t, db, models.User{Username: "other"})
	p := testutil.InsertPost(t, db, models.Post{UserID: author})

	del := func(user testutil.TestUser) int {
		req := testutil.NewAuthenticatedRequest(http.MethodDelete, "/api/posts/"+p.ID.Hex(), user)
		req = testutil.WithURLParam(req, "id", p.ID.Hex())
		rec := httptest.NewRecorder()
		h.apiDelete(rec, req)
		return rec.Code
	}

	if code := del(testutil.MemberUser(other, "other")); code != http.StatusForbidden {
		t.Errorf("other user status = %d, want 403", code)
	}
	if code := del(testutil.MemberUser(author, "author")); code != http.StatusOK {
		t.Errorf("author status = %d, want 200", code)
	}
	if code := del(testutil.MemberUser(author, "author")); code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", code)
	}
	if n := count(t, db, "posts", bson.M{"_id": p.ID}); n != 0 {
		t.Error("post still exists")
	}
}

func TestAPIDelete_Admin(t *testing.T) {
	h, db := newTestHandler(t)
	p := testutil.InsertPost(t, db, models.Post{UserID: testutil.InsertUser(t, db, models.User{})})

	req := testutil.NewAuthenticatedRequest(http.MethodDelete, "/api/posts/"+p.ID.Hex(), testutil.AdminUser())
	req = testutil.WithURLParam(req, "id", p.ID.Hex())
	rec := httptest.NewRecorder()
	h.apiDelete(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("admin status = %d, want 200", rec.Code)
	}
}

func TestAPIEngagement(t *testing.T) {
	h, db := newTestHandler(t)
	uid := testutil.InsertUser(t, db, models.User{Username: "fan"})
	user := testutil.MemberUser(uid, "fan")
	p := testutil.InsertPost(t, db, models.Post{UserID: testutil.InsertUser(t, db, models.User{})})
	body := `{"postId":"` + p.ID.Hex() + `"}`

	call := func(fn http.HandlerFunc, b string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		fn(rec, testutil.NewJSONRequest(http.MethodPost, "/api/posts/x", b, user))
		return rec
	}

	rec := call(h.apiLike, body)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"liked":true`) {
		t.Errorf("like = %d %s", rec.Code, rec.Body.String())
	}
	rec = call(h.apiLike, body)
	if !strings.Contains(rec.Body.String(), `"liked":false`) {
		t.Errorf("unlike = %s", rec.Body.String())
	}

	if rec = call(h.apiRepost, body); rec.Code != http.StatusCreated {
		t.Errorf("repost status = %d, want 201", rec.Code)
	}
	rec = call(h.apiRepost, body)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "Already reposted") {
		t.Errorf("second repost = %d %s", rec.Code, rec.Body.String())
	}

	for i := 0; i < 2; i++ {
		if rec = call(h.apiShare, body); rec.Code != http.StatusCreated {
			t.Errorf("share %d status = %d", i, rec.Code)
		}
	}

	if rec = call(h.apiLike, `{"postId":"`+primitive.NewObjectID().Hex()+`"}`); rec.Code != http.StatusNotFound {
		t.Errorf("like missing post = %d, want 404", rec.Code)
	}
	if rec = call(h.apiLike, `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("like without id = %d, want 400", rec.Code)
	}

	var got models.Post
	findOne(t, db, "posts", bson.M{"_id": p.ID}, &got)
	if got.LikeCount != 0 || got.RepostCount != 1 || got.ShareCount != 2 {
		t.Errorf("counters = %d/%d/%d, want 0/1/2", got.LikeCount, got.RepostCount, got.ShareCount)
	}
}

func TestAPIComment(t *testing.T) {
	h, db := newTestHandler(t)
	uid := testutil.InsertUser(t, db, models.User{Username: "commenter", FullName: "Cee"})
	user := testutil.MemberUser(uid, "commenter")
	p := testutil.InsertPost(t, db, models.Post{UserID: uid})

	rec := httptest.NewRecorder()
	h.apiComment(rec, testutil.NewJSONRequest(http.MethodPost, "/api/posts/comment", `{"postId":"`+p.ID.Hex()+`","content":"nice one"}`, user))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"username":"commenter"`) {
		t.Errorf("comment lacks author: %s", rec.Body.String())
	}

	var got models.Post
	findOne(t, db, "posts", bson.M{"_id": p.ID}, &got)
	if got.CommentCount != 1 {
		t.Errorf("comment_count = %d, want 1", got.CommentCount)
	}

	rec = httptest.NewRecorder()
	h.apiComment(rec, testutil.NewJSONRequest(http.MethodPost, "/api/posts/comment", `{"postId":"`+primitive.NewObjectID().Hex()+`","content":"x"}`, user))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing post status = %d, want 404", rec.Code)
	}
	if n := count(t, db, "comments", bson.M{}); n != 1 {
		t.Errorf("comments = %d, want 1", n)
	}
}

func TestShowFeed(t *testing.T) {
	testutil.MustBootTemplates(t)
	h, db := newTestHandler(t)
	me := testutil.InsertUser(t, db, models.User{Username: "me"})
	stranger := testutil.InsertUser(t, db, models.User{Username: "stranger"})
	board := testutil.InsertBoard(t, db, "Club", "club", stranger)

	testutil.InsertPost(t, db, models.Post{UserID: me, Content: "my own words"})
	testutil.InsertPost(t, db, models.Post{UserID: stranger, Content: "not for me"})
	testutil.InsertPost(t, db, models.Post{UserID: stranger, Content: "club news", BoardID: &board.ID})

	req := testutil.NewAuthenticatedRequestWithCSRF(http.MethodGet, "/feed", testutil.MemberUser(me, "me"))
	rec := httptest.NewRecorder()
	h.showFeed(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "my own words") {
		t.Error("feed is missing the user's own post")
	}
	if strings.Contains(body, "not for me") || strings.Contains(body, "club news") {
		t.Error("feed shows posts from outside the user's boards")
	}
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestComposeForm_WithMedia(t *testing.T) {
	h, db := newTestHandler(t)
	uid := testutil.InsertUser(t, db, models.User{Username: "snap"})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("content", "look at this")
	mw.WriteField("return", "/u/snap")
	fw, _ := mw.CreateFormFile("media", "pic.png")
	fw.Write(pngHeader)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/feed/posts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = testutil.WithCSRFToken(testutil.WithUser(req, testutil.MemberUser(uid, "snap")))
	rec := httptest.NewRecorder()
	h.handleComposeForm(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/u/snap" {
		t.Fatalf("redirect = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	var p models.Post
	findOne(t, db, "posts", bson.M{"user_id": uid}, &p)
	if p.MediaType != models.MediaImage || p.MediaPath == "" {
		t.Errorf("media = %q %q", p.MediaType, p.MediaPath)
	}
}

func TestComposeForm_EmptyRedirectsWithCode(t *testing.T) {
	h, db := newTestHandler(t)
	uid := testutil.InsertUser(t, db, models.User{Username: "quiet"})

	rec := httptest.NewRecorder()
	h.handleComposeForm(rec, testutil.NewFormRequest("/feed/posts", map[string][]string{"content": {" "}}, testutil.MemberUser(uid, "quiet")))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/feed?compose=empty" {
		t.Errorf("Location = %q", loc)
	}
}

func TestWithCompose(t *testing.T) {
	if got := withCompose("/boards/go?x=1", "empty"); got != "/boards/go?compose=empty&x=1" {
		t.Errorf("withCompose = %q", got)
	}
}
