// internal/app/features/posts/feed.go
package posts

import (
	"errors"
	"net/http"
	"net/url"
	"sort"

	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/app/system/media"
	"github.com/dalemusser/pinboard/internal/app/system/postview"
	"github.com/dalemusser/pinboard/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FeedVM is the view model for the feed page.
type FeedVM struct {
	viewdata.BaseVM
	postview.Composer
	Posts []postview.PostVM
}

// showFeed renders the signed-in user's posts plus posts in their boards.
func (h *Handler) showFeed(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	uid := user.UserID()
	ctx := r.Context()

	boardIDs, err := h.boards.MemberBoardIDs(ctx, uid)
	if err != nil {
		h.errLog.Log(r, "failed to load board memberships", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	posts, err := h.posts.Feed(ctx, uid, boardIDs, h.feedLimit)
	if err != nil {
		h.errLog.Log(r, "failed to load feed", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	cards, err := h.cards.Build(ctx, posts, postview.ViewerOf(r), true)
	if err != nil {
		h.errLog.Log(r, "failed to build feed cards", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	boards, err := h.boards.GetByIDs(ctx, boardIDs)
	if err != nil {
		h.errLog.Log(r, "failed to load member boards", err)
	}
	options := make([]postview.BoardRef, 0, len(boards))
	for _, b := range boards {
		options = append(options, postview.BoardRef{ID: b.ID.Hex(), Name: b.Name, Slug: b.Slug})
	}
	sort.Slice(options, func(i, j int) bool { return options[i].Name < options[j].Name })

	vm := FeedVM{
		BaseVM: viewdata.New(r),
		Composer: postview.Composer{
			PostBoards:   options,
			ComposeError: postview.ComposeMessage(r.URL.Query().Get("compose")),
		},
		Posts: cards,
	}
	vm.Title = "Feed"

	templates.Render(w, r, "posts/feed", vm)
}

// handleComposeForm publishes a post from the shared post form, with an
// optional image or video, and returns to the page it came from.
func (h *Handler) handleComposeForm(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	back := "/feed"

	var maxMemory int64 = 32 << 20
	if h.uploader != nil {
		maxMemory = h.uploader.MaxBytes() + 1<<20
		r.Body = http.MaxBytesReader(w, r.Body, maxMemory)
	}
	if err := r.ParseMultipartForm(maxMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Redirect(w, r, withCompose(back, postview.ComposeTooLarge), http.StatusSeeOther)
			return
		}
		h.errLog.Log(r, "failed to parse post form", err)
		http.Redirect(w, r, withCompose(back, postview.ComposeFailed), http.StatusSeeOther)
		return
	}
	back = urlutil.SafeReturn(r.FormValue("return"), "", "/feed")

	d := draft{Content: r.FormValue("content")}
	if raw := r.FormValue("board_id"); raw != "" {
		oid, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			http.Redirect(w, r, withCompose(back, postview.ComposeNotMember), http.StatusSeeOther)
			return
		}
		d.BoardID = &oid
	}

	file, header, err := r.FormFile("media")
	switch {
	case err == nil:
		defer file.Close()
		if h.uploader == nil {
			http.Redirect(w, r, withCompose(back, postview.ComposeMediaType), http.StatusSeeOther)
			return
		}
		saved, err := h.uploader.Save(r.Context(), media.KindPost, file, header)
		if err != nil {
			if !errors.Is(err, media.ErrTooLarge) && !errors.Is(err, media.ErrUnsupportedType) {
				h.errLog.Log(r, "failed to store post media", err)
			}
			http.Redirect(w, r, withCompose(back, composeCode(err)), http.StatusSeeOther)
			return
		}
		d.Media = &saved
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		h.errLog.Log(r, "failed to read post media", err)
		http.Redirect(w, r, withCompose(back, postview.ComposeFailed), http.StatusSeeOther)
		return
	}

	if _, err := h.publish(r.Context(), user.UserID(), d); err != nil {
		if d.Media != nil {
			_ = h.uploader.Delete(r.Context(), d.Media.Path)
		}
		code := composeCode(err)
		if code == postview.ComposeFailed {
			h.errLog.Log(r, "failed to publish post", err)
		}
		http.Redirect(w, r, withCompose(back, code), http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, back, http.StatusSeeOther)
}

// withCompose adds the compose error code to a local URL.
func withCompose(back, code string) string {
	u, err := url.Parse(back)
	if err != nil {
		return "/feed?compose=" + url.QueryEscape(code)
	}
	q := u.Query()
	q.Set("compose", code)
	u.RawQuery = q.Encode()
	return u.String()
}
