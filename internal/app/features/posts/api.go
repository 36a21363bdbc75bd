// internal/app/features/posts/api.go
package posts

import (
	"errors"
	"net/http"
	"unicode/utf8"

	engagementstore "github.com/dalemusser/pinboard/internal/app/store/engagement"
	poststore "github.com/dalemusser/pinboard/internal/app/store/posts"
	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/app/system/authz"
	"github.com/dalemusser/pinboard/internal/app/system/jsonutil"
	"github.com/dalemusser/pinboard/internal/app/system/postview"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type createRequest struct {
	Content string `json:"content"`
	BoardID string `json:"bulletinBoardId"`
}

type postRequest struct {
	PostID  string `json:"postId"`
	Content string `json:"content"`
}

// apiLatest returns the newest posts across the site.
func (h *Handler) apiLatest(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.Latest(r.Context(), h.feedLimit)
	if err != nil {
		h.errLog.Log(r, "failed to load latest posts", err)
		jsonutil.InternalError(w, "Failed to fetch posts")
		return
	}
	cards, err := h.cards.Build(r.Context(), posts, postview.ViewerOf(r), true)
	if err != nil {
		h.errLog.Log(r, "failed to build post cards", err)
		jsonutil.InternalError(w, "Failed to fetch posts")
		return
	}
	jsonutil.OK(w, cards)
}

// apiCreate publishes a text post, optionally into a board.
func (h *Handler) apiCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)

	var req createRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		jsonutil.BadRequest(w, "Invalid request body")
		return
	}
	d := draft{Content: req.Content}
	if req.BoardID != "" {
		oid, err := primitive.ObjectIDFromHex(req.BoardID)
		if err != nil {
			jsonutil.BadRequest(w, "Invalid board id")
			return
		}
		d.BoardID = &oid
	}

	p, err := h.publish(r.Context(), user.UserID(), d)
	switch {
	case errors.Is(err, errEmptyPost):
		jsonutil.BadRequest(w, "Content is required")
		return
	case errors.Is(err, errTooLong):
		jsonutil.BadRequest(w, "Content is too long")
		return
	case errors.Is(err, errNotMember):
		jsonutil.Forbidden(w, "You must be a member of the board to post")
		return
	case err != nil:
		h.errLog.Log(r, "failed to create post", err)
		jsonutil.InternalError(w, "Failed to create post")
		return
	}

	cards, err := h.cards.Build(r.Context(), []models.Post{p}, postview.ViewerOf(r), false)
	if err != nil {
		h.errLog.Log(r, "failed to build post card", err)
		jsonutil.Created(w, p)
		return
	}
	jsonutil.Created(w, cards[0])
}

// apiDelete removes a post. Only its author or an admin may delete it.
func (h *Handler) apiDelete(w http.ResponseWriter, r *http.Request) {
	viewer := postview.ViewerOf(r)
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.BadRequest(w, "Invalid post id")
		return
	}

	p, err := h.posts.GetByID(r.Context(), id)
	if errors.Is(err, poststore.ErrNotFound) {
		jsonutil.NotFound(w, "Post not found")
		return
	}
	if err != nil {
		h.errLog.Log(r, "failed to load post", err)
		jsonutil.InternalError(w, "Failed to delete post")
		return
	}
	if !authz.CanModify(r, p.UserID) {
		jsonutil.Forbidden(w, "You can only delete your own posts")
		return
	}

	if err := h.remove(r.Context(), p); err != nil {
		if errors.Is(err, poststore.ErrNotFound) {
			jsonutil.NotFound(w, "Post not found")
			return
		}
		h.errLog.Log(r, "failed to delete post", err)
		jsonutil.InternalError(w, "Failed to delete post")
		return
	}
	h.auditLogger.PostDeleted(r, viewer.ID, p.UserID, p.ID)
	jsonutil.OK(w, map[string]bool{"success": true})
}

// decodePostRequest reads a {postId} body; it writes the error response
// and returns false when the body is unusable.
func decodePostRequest(w http.ResponseWriter, r *http.Request) (postRequest, primitive.ObjectID, bool) {
	var req postRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		jsonutil.BadRequest(w, "Invalid request body")
		return req, primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(req.PostID)
	if err != nil {
		jsonutil.BadRequest(w, "Post ID is required")
		return req, primitive.NilObjectID, false
	}
	return req, id, true
}

// apiLike toggles the caller's like.
func (h *Handler) apiLike(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	_, postID, ok := decodePostRequest(w, r)
	if !ok {
		return
	}
	liked, err := h.engagement.ToggleLike(r.Context(), user.UserID(), postID)
	if errors.Is(err, engagementstore.ErrPostNotFound) {
		jsonutil.NotFound(w, "Post not found")
		return
	}
	if err != nil {
		h.errLog.Log(r, "failed to toggle like", err)
		jsonutil.InternalError(w, "Failed to like post")
		return
	}
	jsonutil.OK(w, map[string]bool{"liked": liked})
}

// apiRepost records a repost; a second repost of the same post is refused.
func (h *Handler) apiRepost(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	_, postID, ok := decodePostRequest(w, r)
	if !ok {
		return
	}
	rp, err := h.engagement.Repost(r.Context(), user.UserID(), postID)
	switch {
	case errors.Is(err, engagementstore.ErrAlreadyReposted):
		jsonutil.BadRequest(w, "Already reposted")
		return
	case errors.Is(err, engagementstore.ErrPostNotFound):
		jsonutil.NotFound(w, "Post not found")
		return
	case err != nil:
		h.errLog.Log(r, "failed to repost", err)
		jsonutil.InternalError(w, "Failed to repost")
		return
	}
	jsonutil.Created(w, rp)
}

// apiShare records a share. Shares are not unique per user.
func (h *Handler) apiShare(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	_, postID, ok := decodePostRequest(w, r)
	if !ok {
		return
	}
	sh, err := h.engagement.Share(r.Context(), user.UserID(), postID)
	if errors.Is(err, engagementstore.ErrPostNotFound) {
		jsonutil.NotFound(w, "Post not found")
		return
	}
	if err != nil {
		h.errLog.Log(r, "failed to share", err)
		jsonutil.InternalError(w, "Failed to share post")
		return
	}
	jsonutil.Created(w, sh)
}

// apiComment adds a comment and returns it with its author card.
func (h *Handler) apiComment(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	req, postID, ok := decodePostRequest(w, r)
	if !ok {
		return
	}
	content := cleanContent(req.Content)
	if content == "" {
		jsonutil.BadRequest(w, "Content is required")
		return
	}
	if utf8.RuneCountInString(content) > MaxContentLen {
		jsonutil.BadRequest(w, "Content is too long")
		return
	}

	c, err := h.addComment(r.Context(), postID, user.UserID(), content)
	if errors.Is(err, poststore.ErrNotFound) {
		jsonutil.NotFound(w, "Post not found")
		return
	}
	if err != nil {
		h.errLog.Log(r, "failed to add comment", err)
		jsonutil.InternalError(w, "Failed to add comment")
		return
	}

	author, err := h.users.GetByID(r.Context(), user.UserID())
	if err != nil {
		h.errLog.Log(r, "failed to load comment author", err)
		jsonutil.Created(w, postview.Comment(c, models.UserSummary{ID: user.UserID(), Name: user.Name, Username: user.Username}))
		return
	}
	jsonutil.Created(w, postview.Comment(c, author.Summary()))
}
