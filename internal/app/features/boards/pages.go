// internal/app/features/boards/pages.go
package boards

import (
	"errors"
	"net/http"

	boardstore "github.com/dalemusser/pinboard/internal/app/store/boards"
	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/app/system/postview"
	"github.com/dalemusser/pinboard/internal/app/system/viewdata"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type listVM struct {
	viewdata.BaseVM
	Boards []BoardItem
}

type newVM struct {
	viewdata.BaseVM
	Name        string
	Description string
	Error       string
	Success     string
}

// MemberVM is one row of a board's member list.
type MemberVM struct {
	Username string
	Name     string
	ImageURL string
	Initial  string
	Role     string
}

type showVM struct {
	viewdata.BaseVM
	postview.Composer
	Board    models.Board
	IsMember bool
	Members  []MemberVM
	Posts    []postview.PostVM
}

func (h *Handler) showList(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	items, err := h.list(r.Context(), user.UserID())
	if err != nil {
		h.errLog.Log(r, "failed to list boards", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	templates.Render(w, r, "boards/list", listVM{
		BaseVM: viewdata.NewBaseVM(r, "Boards", "/feed"),
		Boards: items,
	})
}

func (h *Handler) showNew(w http.ResponseWriter, r *http.Request) {
	templates.Render(w, r, "boards/new", newVM{BaseVM: viewdata.NewBaseVM(r, "New board", "/boards")})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	in := boardInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
	}

	b, msg, err := h.create(r, in, user.UserID())
	if err != nil {
		h.errLog.Log(r, "failed to create board", err)
		msg = "Could not create the board. Please try again."
	}
	if msg != "" {
		vm := newVM{
			BaseVM:      viewdata.NewBaseVM(r, "New board", "/boards"),
			Name:        in.Name,
			Description: in.Description,
			Error:       msg,
		}
		w.WriteHeader(http.StatusBadRequest)
		templates.Render(w, r, "boards/new", vm)
		return
	}
	http.Redirect(w, r, "/boards/"+b.Slug, http.StatusSeeOther)
}

// showBoard renders a board by slug or id with its members and posts.
func (h *Handler) showBoard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := auth.CurrentUser(r)
	uid := user.UserID()

	b, err := h.boards.GetBySlugOrID(ctx, chi.URLParam(r, "key"))
	if errors.Is(err, boardstore.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.errLog.Log(r, "failed to load board", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	members, err := h.boards.Members(ctx, b.ID)
	if err != nil {
		h.errLog.Log(r, "failed to load board members", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	ids := make([]primitive.ObjectID, 0, len(members))
	isMember := false
	for _, m := range members {
		ids = append(ids, m.UserID)
		if m.UserID == uid {
			isMember = true
		}
	}
	summaries, err := h.users.Summaries(ctx, ids)
	if err != nil {
		h.errLog.Log(r, "failed to load member names", err)
	}
	memberVMs := make([]MemberVM, 0, len(members))
	for _, m := range members {
		s, ok := summaries[m.UserID]
		if !ok {
			continue
		}
		memberVMs = append(memberVMs, MemberVM{
			Username: s.Username,
			Name:     s.Name,
			ImageURL: s.ImageURL,
			Initial:  s.Initial(),
			Role:     m.Role,
		})
	}

	posts, err := h.posts.ByBoard(ctx, b.ID, postsLimit)
	if err != nil {
		h.errLog.Log(r, "failed to load board posts", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	cards, err := h.cards.Build(ctx, posts, postview.ViewerOf(r), true)
	if err != nil {
		h.errLog.Log(r, "failed to build board cards", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	vm := showVM{
		BaseVM:   viewdata.NewBaseVM(r, b.Name, "/boards"),
		Board:    *b,
		IsMember: isMember,
		Members:  memberVMs,
		Posts:    cards,
	}
	if isMember {
		vm.Composer = postview.Composer{
			PostBoardID:  b.ID.Hex(),
			ComposeError: postview.ComposeMessage(r.URL.Query().Get("compose")),
		}
	}
	templates.Render(w, r, "boards/show", vm)
}
