// internal/app/features/posts/posts.go
package posts

import (
	"context"
	"errors"
	"net/http"
	"unicode/utf8"

	errorsfeature "github.com/dalemusser/pinboard/internal/app/features/errors"
	"github.com/dalemusser/pinboard/internal/app/store/activity"
	boardstore "github.com/dalemusser/pinboard/internal/app/store/boards"
	commentstore "github.com/dalemusser/pinboard/internal/app/store/comments"
	engagementstore "github.com/dalemusser/pinboard/internal/app/store/engagement"
	poststore "github.com/dalemusser/pinboard/internal/app/store/posts"
	userstore "github.com/dalemusser/pinboard/internal/app/store/users"
	"github.com/dalemusser/pinboard/internal/app/system/auditlog"
	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/app/system/hashtags"
	"github.com/dalemusser/pinboard/internal/app/system/htmlsanitize"
	"github.com/dalemusser/pinboard/internal/app/system/media"
	"github.com/dalemusser/pinboard/internal/app/system/normalize"
	"github.com/dalemusser/pinboard/internal/app/system/postview"
	"github.com/dalemusser/pinboard/internal/app/system/streaktracker"
	"github.com/dalemusser/pinboard/internal/app/system/txn"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// MaxContentLen is the longest post or comment, in characters.
const MaxContentLen = 2000

// DefaultFeedLimit applies when the configured limit is not positive.
const DefaultFeedLimit = 50

var (
	errEmptyPost = errors.New("post needs content or media")
	errTooLong   = errors.New("content is too long")
	errNotMember = errors.New("not a member of the board")
)

// Handler serves the feed page and the posts API.
type Handler struct {
	db          *mongo.Database
	posts       *poststore.Store
	users       *userstore.Store
	boards      *boardstore.Store
	comments    *commentstore.Store
	engagement  *engagementstore.Store
	cards       *postview.Builder
	tracker     *streaktracker.Tracker
	uploader    *media.Uploader
	errLog      *errorsfeature.ErrorLogger
	auditLogger *auditlog.Logger
	feedLimit   int64
	logger      *zap.Logger
}

// NewHandler creates a posts Handler. uploader may be nil, in which case
// media attachments are rejected.
func NewHandler(
	db *mongo.Database,
	tracker *streaktracker.Tracker,
	uploader *media.Uploader,
	errLog *errorsfeature.ErrorLogger,
	auditLogger *auditlog.Logger,
	feedLimit int,
	logger *zap.Logger,
) *Handler {
	if feedLimit <= 0 {
		feedLimit = DefaultFeedLimit
	}
	return &Handler{
		db:          db,
		posts:       poststore.New(db),
		users:       userstore.New(db),
		boards:      boardstore.New(db, logger),
		comments:    commentstore.New(db),
		engagement:  engagementstore.New(db, logger),
		cards:       postview.NewBuilder(db, logger),
		tracker:     tracker,
		uploader:    uploader,
		errLog:      errLog,
		auditLogger: auditLogger,
		feedLimit:   int64(feedLimit),
		logger:      logger,
	}
}

// Routes mounts the feed page under /feed.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireAuth)
	r.Get("/", h.showFeed)
	r.Post("/posts", h.handleComposeForm)
	return r
}

// APIRoutes mounts the JSON API under /api/posts.
func APIRoutes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireAuth)
	r.Get("/", h.apiLatest)
	r.Post("/", h.apiCreate)
	r.Delete("/{id}", h.apiDelete)
	r.Post("/like", h.apiLike)
	r.Post("/repost", h.apiRepost)
	r.Post("/share", h.apiShare)
	r.Post("/comment", h.apiComment)
	return r
}

// draft is a post as submitted, before validation.
type draft struct {
	Content string
	BoardID *primitive.ObjectID
	Media   *media.Saved
}

// cleanContent strips markup and normalizes whitespace.
func cleanContent(s string) string {
	return htmlsanitize.Text(normalize.Content(s))
}

// publish validates d, stores the post with its counters, and records the
// author's qualifying activity. A failed streak update does not fail the
// post.
func (h *Handler) publish(ctx context.Context, author primitive.ObjectID, d draft) (models.Post, error) {
	content := cleanContent(d.Content)
	if content == "" && d.Media == nil {
		return models.Post{}, errEmptyPost
	}
	if utf8.RuneCountInString(content) > MaxContentLen {
		return models.Post{}, errTooLong
	}
	if d.BoardID != nil {
		member, err := h.boards.IsMember(ctx, *d.BoardID, author)
		if err != nil {
			return models.Post{}, err
		}
		if !member {
			return models.Post{}, errNotMember
		}
	}

	p := models.Post{
		UserID:   author,
		BoardID:  d.BoardID,
		Content:  content,
		Hashtags: hashtags.Extract(content),
	}
	if d.Media != nil {
		p.MediaURL = d.Media.URL
		p.MediaPath = d.Media.Path
		p.MediaType = d.Media.MediaType
	}

	var created models.Post
	err := txn.Run(ctx, h.db, h.logger, func(ctx context.Context) error {
		var err error
		if created, err = h.posts.Create(ctx, p); err != nil {
			return err
		}
		if err := h.users.AdjustPostCount(ctx, author, 1); err != nil {
			return err
		}
		if d.BoardID != nil {
			return h.boards.IncPostCount(ctx, *d.BoardID, 1)
		}
		return nil
	})
	if err != nil {
		return models.Post{}, err
	}

	// Logged inside Record.
	_, _, _ = h.tracker.Record(ctx, author, activity.EventPostCreated, &created.ID)
	return created, nil
}

// remove deletes a post with its counters and stored media.
func (h *Handler) remove(ctx context.Context, p *models.Post) error {
	err := txn.Run(ctx, h.db, h.logger, func(ctx context.Context) error {
		if err := h.posts.Delete(ctx, p.ID); err != nil {
			return err
		}
		if err := h.users.AdjustPostCount(ctx, p.UserID, -1); err != nil {
			return err
		}
		if p.BoardID != nil {
			return h.boards.IncPostCount(ctx, *p.BoardID, -1)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if p.MediaPath != "" && h.uploader != nil {
		if err := h.uploader.Delete(ctx, p.MediaPath); err != nil {
			h.logger.Warn("failed to delete post media",
				zap.String("post_id", p.ID.Hex()),
				zap.String("path", p.MediaPath),
				zap.Error(err))
		}
	}
	return nil
}

// addComment stores a comment and bumps the post's comment counter.
func (h *Handler) addComment(ctx context.Context, postID, author primitive.ObjectID, content string) (models.Comment, error) {
	var c models.Comment
	err := txn.Run(ctx, h.db, h.logger, func(ctx context.Context) error {
		if err := h.posts.IncCounter(ctx, postID, poststore.CounterComments, 1); err != nil {
			return err
		}
		var err error
		c, err = h.comments.Create(ctx, postID, author, content)
		return err
	})
	return c, err
}

func composeCode(err error) string {
	switch {
	case errors.Is(err, errEmptyPost):
		return postview.ComposeEmpty
	case errors.Is(err, errTooLong):
		return postview.ComposeTooLong
	case errors.Is(err, errNotMember):
		return postview.ComposeNotMember
	case errors.Is(err, media.ErrTooLarge):
		return postview.ComposeTooLarge
	case errors.Is(err, media.ErrUnsupportedType):
		return postview.ComposeMediaType
	default:
		return postview.ComposeFailed
	}
}
