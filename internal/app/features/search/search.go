// internal/app/features/search/search.go
package search

import (
	"context"
	"net/http"
	"strings"

	errorsfeature "github.com/dalemusser/pinboard/internal/app/features/errors"
	boardstore "github.com/dalemusser/pinboard/internal/app/store/boards"
	poststore "github.com/dalemusser/pinboard/internal/app/store/posts"
	userstore "github.com/dalemusser/pinboard/internal/app/store/users"
	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/app/system/hashtags"
	"github.com/dalemusser/pinboard/internal/app/system/jsonutil"
	"github.com/dalemusser/pinboard/internal/app/system/postview"
	"github.com/dalemusser/pinboard/internal/app/system/viewdata"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Result sizes.
const (
	trendingBoards = 6
	trendingUsers  = 6
	trendingPosts  = 6
	trendingTags   = 8
	hashtagWindow  = 200
	hashtagLimit   = 20
	userLimit      = 10
	boardLimit     = 10
)

// Mode names which kind of answer a query produced.
const (
	ModeTrending = "trending"
	ModeHashtag  = "hashtag"
	ModeText     = "text"
)

// Handler serves the search page and the search API.
type Handler struct {
	users  *userstore.Store
	boards *boardstore.Store
	posts  *poststore.Store
	cards  *postview.Builder
	errLog *errorsfeature.ErrorLogger
	logger *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		users:  userstore.New(db),
		boards: boardstore.New(db, logger),
		posts:  poststore.New(db),
		cards:  postview.NewBuilder(db, logger),
		errLog: errLog,
		logger: logger,
	}
}

// Routes mounts the search page under /search.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireAuth)
	r.Get("/", h.showSearch)
	return r
}

// APIRoutes mounts the JSON API under /api/search.
func APIRoutes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireAuth)
	r.Get("/", h.apiSearch)
	return r
}

// UserResult is the public card of a matching user.
type UserResult struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	ImageURL  string `json:"image,omitempty"`
	Initial   string `json:"-"`
	Bio       string `json:"bio,omitempty"`
	Followers int    `json:"followers"`
}

// Results is what a query found. Which fields are filled depends on Mode.
type Results struct {
	Query    string           `json:"query"`
	Mode     string           `json:"mode"`
	Tag      string           `json:"tag,omitempty"`
	Users    []UserResult      `json:"users"`
	Boards   []models.Board    `json:"boards"`
	Posts    []postview.PostVM `json:"posts"`
	Hashtags []hashtags.Count  `json:"hashtags"`
}

// run answers q: trending content when empty, tagged posts for "#tag",
// otherwise matching users and boards.
func (h *Handler) run(ctx context.Context, q string, viewer postview.Viewer) (Results, error) {
	q = strings.TrimSpace(q)
	res := Results{
		Query:    q,
		Users:    []UserResult{},
		Boards:   []models.Board{},
		Posts:    []postview.PostVM{},
		Hashtags: []hashtags.Count{},
	}

	switch {
	case q == "":
		res.Mode = ModeTrending
		return res, h.trending(ctx, viewer, &res)

	case strings.HasPrefix(q, "#"):
		res.Mode = ModeHashtag
		res.Tag = hashtags.Normalize(q)
		if res.Tag == "" {
			return res, nil
		}
		posts, err := h.posts.ByHashtag(ctx, res.Tag, hashtagLimit)
		if err != nil {
			return res, err
		}
		res.Posts, err = h.cards.Build(ctx, posts, viewer, false)
		return res, err

	default:
		res.Mode = ModeText
		users, err := h.users.Search(ctx, q, userLimit)
		if err != nil {
			return res, err
		}
		res.Users = userResults(users)
		if res.Boards, err = h.boards.Search(ctx, q, boardLimit); err != nil {
			return res, err
		}
		return res, nil
	}
}

func (h *Handler) trending(ctx context.Context, viewer postview.Viewer, res *Results) error {
	boards, err := h.boards.TopByMembers(ctx, trendingBoards)
	if err != nil {
		return err
	}
	res.Boards = boards

	users, err := h.users.TopByFollowers(ctx, trendingUsers)
	if err != nil {
		return err
	}
	res.Users = userResults(users)

	posts, err := h.posts.TopLiked(ctx, trendingPosts)
	if err != nil {
		return err
	}
	if res.Posts, err = h.cards.Build(ctx, posts, viewer, false); err != nil {
		return err
	}

	recent, err := h.posts.RecentHashtags(ctx, hashtagWindow)
	if err != nil {
		return err
	}
	res.Hashtags = hashtags.Top(recent, trendingTags)
	return nil
}

func userResults(users []models.User) []UserResult {
	out := make([]UserResult, 0, len(users))
	for _, u := range users {
		out = append(out, UserResult{
			ID:        u.ID.Hex(),
			Name:      u.FullName,
			Username:  u.Username,
			ImageURL:  u.ImageURL,
			Initial:   models.UserSummary{Name: u.FullName, Username: u.Username}.Initial(),
			Bio:       u.Bio,
			Followers: u.FollowerCount,
		})
	}
	return out
}

type searchVM struct {
	viewdata.BaseVM
	Results
}

func (h *Handler) showSearch(w http.ResponseWriter, r *http.Request) {
	res, err := h.run(r.Context(), query.Get(r, "q"), postview.ViewerOf(r))
	if err != nil {
		h.errLog.Log(r, "search failed", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	title := "Search"
	if res.Query != "" {
		title = "Search: " + res.Query
	}
	templates.Render(w, r, "search/results", searchVM{
		BaseVM:  viewdata.NewBaseVM(r, title, "/feed"),
		Results: res,
	})
}

func (h *Handler) apiSearch(w http.ResponseWriter, r *http.Request) {
	res, err := h.run(r.Context(), query.Get(r, "q"), postview.ViewerOf(r))
	if err != nil {
		h.errLog.Log(r, "search failed", err)
		jsonutil.InternalError(w, "Search failed")
		return
	}
	jsonutil.OK(w, res)
}
