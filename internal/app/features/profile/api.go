// internal/app/features/profile/api.go
package profile

import (
	"errors"
	"net/http"
	"strings"

	followstore "github.com/dalemusser/pinboard/internal/app/store/follows"
	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/app/system/jsonutil"
	"github.com/dalemusser/pinboard/internal/app/system/profileedit"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FollowRoutes mounts POST /api/follow.
func FollowRoutes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireAuth)
	r.Post("/", h.apiFollow)
	return r
}

// APIRoutes mounts PATCH /api/profile.
func APIRoutes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireAuth)
	r.Patch("/", h.apiUpdate)
	return r
}

type followRequest struct {
	UserID string `json:"userId"`
}

// apiFollow toggles following and reports the new state.
func (h *Handler) apiFollow(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	var req followRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		jsonutil.BadRequest(w, "Invalid request body")
		return
	}
	target, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		jsonutil.BadRequest(w, "Invalid user id")
		return
	}

	following, err := h.follows.Toggle(r.Context(), user.UserID(), target)
	switch {
	case errors.Is(err, followstore.ErrSelfFollow):
		jsonutil.BadRequest(w, "You cannot follow yourself")
		return
	case errors.Is(err, followstore.ErrUserNotFound):
		jsonutil.NotFound(w, "User not found")
		return
	case err != nil:
		h.errLog.Log(r, "failed to toggle follow", err)
		jsonutil.InternalError(w, "Failed to update follow")
		return
	}
	jsonutil.OK(w, map[string]bool{"following": following})
}

// apiUpdate edits the caller's profile and returns the updated user.
func (h *Handler) apiUpdate(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	uid := user.UserID()

	var req profileedit.Request
	if err := jsonutil.Decode(r, &req); err != nil {
		jsonutil.BadRequest(w, "Invalid request body")
		return
	}
	change, msg := profileedit.Validate(req)
	if msg != "" {
		jsonutil.BadRequest(w, msg)
		return
	}

	if err := profileedit.Apply(r.Context(), h.users, uid, change); err != nil {
		if errors.Is(err, profileedit.ErrUsernameTaken) {
			jsonutil.Conflict(w, "Username is already taken")
			return
		}
		h.errLog.Log(r, "failed to update profile", err)
		jsonutil.InternalError(w, "Failed to update profile")
		return
	}

	if len(change.Fields) > 0 {
		h.auditLogger.ProfileUpdated(r, uid, strings.Join(change.Fields, ","))
	}

	u, err := h.users.GetByID(r.Context(), uid)
	if err != nil {
		h.errLog.Log(r, "failed to reload profile", err)
		jsonutil.InternalError(w, "Failed to load profile")
		return
	}
	jsonutil.OK(w, u)
}
