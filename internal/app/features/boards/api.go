// internal/app/features/boards/api.go
package boards

import (
	"errors"
	"net/http"

	boardstore "github.com/dalemusser/pinboard/internal/app/store/boards"
	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/app/system/jsonutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (h *Handler) apiList(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	items, err := h.list(r.Context(), user.UserID())
	if err != nil {
		h.errLog.Log(r, "failed to list boards", err)
		jsonutil.InternalError(w, "Failed to load boards")
		return
	}
	jsonutil.OK(w, items)
}

func (h *Handler) apiCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	var in boardInput
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "Invalid request body")
		return
	}
	b, msg, err := h.create(r, in, user.UserID())
	if err != nil {
		h.errLog.Log(r, "failed to create board", err)
		jsonutil.InternalError(w, "Failed to create board")
		return
	}
	if msg != "" {
		jsonutil.BadRequest(w, msg)
		return
	}
	jsonutil.Created(w, BoardItem{Board: b, IsMember: true})
}

// apiJoin toggles the caller's membership and reports the new state.
func (h *Handler) apiJoin(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.BadRequest(w, "Invalid board id")
		return
	}

	joined, err := h.boards.ToggleMembership(r.Context(), id, user.UserID())
	switch {
	case errors.Is(err, boardstore.ErrNotFound):
		jsonutil.NotFound(w, "Board not found")
		return
	case errors.Is(err, boardstore.ErrLastAdmin):
		jsonutil.BadRequest(w, err.Error())
		return
	case err != nil:
		h.errLog.Log(r, "failed to toggle board membership", err)
		jsonutil.InternalError(w, "Failed to update membership")
		return
	}
	jsonutil.OK(w, map[string]bool{"joined": joined})
}
