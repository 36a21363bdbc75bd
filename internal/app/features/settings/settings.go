// internal/app/features/settings/settings.go
package settings

import (
	"errors"
	"net/http"
	"strings"

	errorsfeature "github.com/dalemusser/pinboard/internal/app/features/errors"
	"github.com/dalemusser/pinboard/internal/app/store/sessions"
	userstore "github.com/dalemusser/pinboard/internal/app/store/users"
	"github.com/dalemusser/pinboard/internal/app/system/auditlog"
	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/app/system/authutil"
	"github.com/dalemusser/pinboard/internal/app/system/media"
	"github.com/dalemusser/pinboard/internal/app/system/profileedit"
	"github.com/dalemusser/pinboard/internal/app/system/viewdata"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the account settings page.
type Handler struct {
	users       *userstore.Store
	sessions    *sessions.Store
	uploader    *media.Uploader
	errLog      *errorsfeature.ErrorLogger
	auditLogger *auditlog.Logger
	logger      *zap.Logger
}

// NewHandler creates a settings Handler. uploader may be nil, in which case
// avatar uploads are refused.
func NewHandler(
	db *mongo.Database,
	uploader *media.Uploader,
	errLog *errorsfeature.ErrorLogger,
	auditLogger *auditlog.Logger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		users:       userstore.New(db),
		sessions:    sessions.New(db),
		uploader:    uploader,
		errLog:      errLog,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// Routes mounts the settings page under /settings.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireAuth)
	r.Get("/", h.show)
	r.Post("/profile", h.handleProfile)
	r.Post("/avatar", h.handleAvatar)
	r.Post("/theme", h.handleTheme)
	r.Post("/password", h.handlePassword)
	r.Post("/sessions/{id}/revoke", h.handleRevokeSession)
	r.Post("/sessions/revoke-all", h.handleRevokeAll)
	return r
}

// SettingsVM is the view model for the settings page.
type SettingsVM struct {
	viewdata.BaseVM

	FullName    string
	Handle      string
	Bio         string
	AvatarURL   string
	Initial     string
	AuthMethod  string
	HasPassword bool

	PasswordRules string
	Themes        []models.Theme
	Theme         string
	Sessions      []sessionRow

	Success string
	Error   string
}

// sessionRow is one open session in the list.
type sessionRow struct {
	ID           string
	IPAddress    string
	Device       string
	LastActivity string
	IsCurrent    bool
}

var successMessages = map[string]string{
	"profile":     "Profile saved.",
	"avatar":      "Photo updated.",
	"theme":       "Theme saved.",
	"password":    "Password changed. Your other sessions were signed out.",
	"revoked":     "Session signed out.",
	"revoked_all": "All other sessions were signed out.",
}

var errorMessages = map[string]string{
	"use_logout": "Use Log out to end your current session.",
	"failed":     "Something went wrong. Please try again.",
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	u, err := h.users.GetByID(r.Context(), user.UserID())
	if err != nil {
		h.errLog.Log(r, "failed to load settings user", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	q := r.URL.Query()
	vm := h.buildVM(r, u)
	vm.Success = successMessages[q.Get("success")]
	vm.Error = errorMessages[q.Get("error")]
	templates.Render(w, r, "settings/show", vm)
}

func (h *Handler) buildVM(r *http.Request, u *models.User) SettingsVM {
	vm := SettingsVM{
		BaseVM:        viewdata.NewBaseVM(r, "Settings", "/profile"),
		FullName:      u.FullName,
		Handle:        u.Username,
		Bio:           u.Bio,
		AvatarURL:     u.ImageURL,
		Initial:       models.UserSummary{Name: u.FullName, Username: u.Username}.Initial(),
		AuthMethod:    formatAuthMethod(u.AuthMethod),
		HasPassword:   u.AuthMethod == models.AuthPassword,
		PasswordRules: authutil.PasswordRules(),
		Themes:        models.AllThemes,
		Theme:         u.ThemePreference,
	}

	user, _ := auth.CurrentUser(r)
	current := user.SessionToken()
	list, err := h.sessions.ListActiveByUser(r.Context(), u.ID)
	if err != nil {
		h.logger.Warn("session list failed", zap.Error(err))
	}
	for _, s := range list {
		vm.Sessions = append(vm.Sessions, sessionRow{
			ID:           s.ID.Hex(),
			IPAddress:    s.IPAddress,
			Device:       parseDevice(s.UserAgent),
			LastActivity: s.LastActivity.UTC().Format("Jan 2, 2006 3:04 PM"),
			IsCurrent:    current != "" && s.Token == current,
		})
	}
	return vm
}

// renderError re-renders the page with msg and status.
func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	user, _ := auth.CurrentUser(r)
	u, err := h.users.GetByID(r.Context(), user.UserID())
	if err != nil {
		h.errLog.Log(r, "failed to load settings user", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	vm := h.buildVM(r, u)
	vm.Error = msg
	w.WriteHeader(status)
	templates.Render(w, r, "settings/show", vm)
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	uid := user.UserID()

	name := r.FormValue("full_name")
	handle := r.FormValue("username")
	bio := r.FormValue("bio")
	change, msg := profileedit.Validate(profileedit.Request{Name: &name, Username: &handle, Bio: &bio})
	if msg != "" {
		h.renderError(w, r, http.StatusBadRequest, msg)
		return
	}
	if err := profileedit.Apply(r.Context(), h.users, uid, change); err != nil {
		if errors.Is(err, profileedit.ErrUsernameTaken) {
			h.renderError(w, r, http.StatusConflict, "That username is already taken.")
			return
		}
		h.errLog.Log(r, "failed to update profile", err)
		h.renderError(w, r, http.StatusInternalServerError, "Failed to save your profile.")
		return
	}
	h.auditLogger.ProfileUpdated(r, uid, strings.Join(change.Fields, ","))
	http.Redirect(w, r, "/settings?success=profile", http.StatusSeeOther)
}

// handleAvatar stores an uploaded photo and removes the previous one.
func (h *Handler) handleAvatar(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	uid := user.UserID()
	ctx := r.Context()

	if h.uploader == nil {
		h.renderError(w, r, http.StatusBadRequest, "Photo uploads are not available.")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.uploader.MaxBytes()+(1<<20))
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "That file is too large.")
		return
	}
	file, header, err := r.FormFile("avatar")
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, "Choose a photo to upload.")
		return
	}
	defer file.Close()

	saved, err := h.uploader.Save(ctx, media.KindAvatar, file, header)
	switch {
	case errors.Is(err, media.ErrTooLarge):
		h.renderError(w, r, http.StatusBadRequest, "That file is too large.")
		return
	case errors.Is(err, media.ErrUnsupportedType):
		h.renderError(w, r, http.StatusBadRequest, "Profile photos must be images.")
		return
	case err != nil:
		h.errLog.Log(r, "failed to store avatar", err)
		h.renderError(w, r, http.StatusInternalServerError, "Failed to upload your photo.")
		return
	}

	old, err := h.users.GetByID(ctx, uid)
	if err != nil {
		h.errLog.Log(r, "failed to load user for avatar", err)
		_ = h.uploader.Delete(ctx, saved.Path)
		h.renderError(w, r, http.StatusInternalServerError, "Failed to upload your photo.")
		return
	}
	if err := h.users.SetAvatar(ctx, uid, saved.Path, saved.URL); err != nil {
		h.errLog.Log(r, "failed to set avatar", err)
		_ = h.uploader.Delete(ctx, saved.Path)
		h.renderError(w, r, http.StatusInternalServerError, "Failed to upload your photo.")
		return
	}
	if err := h.uploader.Delete(ctx, old.ImagePath); err != nil {
		h.logger.Warn("old avatar cleanup failed", zap.String("path", old.ImagePath), zap.Error(err))
	}
	h.auditLogger.ProfileUpdated(r, uid, "avatar")
	http.Redirect(w, r, "/settings?success=avatar", http.StatusSeeOther)
}

func (h *Handler) handleTheme(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	theme := strings.TrimSpace(r.FormValue("theme"))
	if !models.IsValidTheme(theme) {
		h.renderError(w, r, http.StatusBadRequest, "That theme is not available.")
		return
	}
	if err := h.users.UpdateThemePreference(r.Context(), user.UserID(), theme); err != nil {
		h.errLog.Log(r, "failed to update theme", err)
		h.renderError(w, r, http.StatusInternalServerError, "Failed to save your theme.")
		return
	}

	// Readable by the page script so the next load paints in the new theme.
	http.SetCookie(w, &http.Cookie{
		Name:     "theme_pref",
		Value:    theme,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/settings?success=theme", http.StatusSeeOther)
}

// handlePassword changes the password and signs out every other session.
func (h *Handler) handlePassword(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	uid := user.UserID()
	ctx := r.Context()

	u, err := h.users.GetByID(ctx, uid)
	if err != nil {
		h.errLog.Log(r, "failed to load user for password change", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if u.AuthMethod != models.AuthPassword || u.PasswordHash == nil {
		h.renderError(w, r, http.StatusBadRequest, "Your account signs in with Google and has no password.")
		return
	}

	current := r.FormValue("current_password")
	next := r.FormValue("new_password")
	if !authutil.CheckPassword(current, *u.PasswordHash) {
		h.renderError(w, r, http.StatusBadRequest, "Current password is incorrect.")
		return
	}
	if err := authutil.ValidateNewPassword(next, r.FormValue("confirm_password"), u.Username, u.Email); err != nil {
		h.renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if authutil.CheckPassword(next, *u.PasswordHash) {
		h.renderError(w, r, http.StatusBadRequest, "New password cannot be the same as your current password.")
		return
	}

	hash, err := authutil.HashPassword(next)
	if err != nil {
		h.errLog.Log(r, "failed to hash password", err)
		h.renderError(w, r, http.StatusInternalServerError, "Failed to update your password.")
		return
	}
	if err := h.users.UpdatePassword(ctx, uid, hash); err != nil {
		h.errLog.Log(r, "failed to update password", err)
		h.renderError(w, r, http.StatusInternalServerError, "Failed to update your password.")
		return
	}
	if n, err := h.sessions.CloseByUserExcept(ctx, uid, user.SessionToken(), sessions.EndReasonPasswordChanged); err != nil {
		h.logger.Warn("closing other sessions failed", zap.Error(err))
	} else if n > 0 {
		h.logger.Info("closed other sessions after password change", zap.String("user_id", uid.Hex()), zap.Int64("count", n))
	}
	h.auditLogger.PasswordChanged(r, uid)
	http.Redirect(w, r, "/settings?success=password", http.StatusSeeOther)
}

func (h *Handler) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	list, err := h.sessions.ListActiveByUser(r.Context(), user.UserID())
	if err != nil {
		h.errLog.Log(r, "failed to list sessions", err)
		http.Redirect(w, r, "/settings?error=failed", http.StatusSeeOther)
		return
	}
	for _, s := range list {
		if s.ID == id && s.Token == user.SessionToken() {
			http.Redirect(w, r, "/settings?error=use_logout", http.StatusSeeOther)
			return
		}
	}

	err = h.sessions.CloseByID(r.Context(), id, user.UserID(), sessions.EndReasonRevoked)
	if errors.Is(err, mongo.ErrNoDocuments) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.errLog.Log(r, "failed to revoke session", err)
		http.Redirect(w, r, "/settings?error=failed", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/settings?success=revoked", http.StatusSeeOther)
}

func (h *Handler) handleRevokeAll(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	if _, err := h.sessions.CloseByUserExcept(r.Context(), user.UserID(), user.SessionToken(), sessions.EndReasonRevoked); err != nil {
		h.errLog.Log(r, "failed to revoke sessions", err)
		http.Redirect(w, r, "/settings?error=failed", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/settings?success=revoked_all", http.StatusSeeOther)
}

func formatAuthMethod(method string) string {
	switch method {
	case models.AuthPassword:
		return "Password"
	case models.AuthGoogle:
		return "Google"
	default:
		return method
	}
}

// parseDevice names the browser and platform of a user agent.
func parseDevice(userAgent string) string {
	ua := strings.ToLower(userAgent)
	platform := ""
	switch {
	case ua == "":
		return "Unknown device"
	case strings.Contains(ua, "iphone"):
		return "iPhone"
	case strings.Contains(ua, "ipad"):
		return "iPad"
	case strings.Contains(ua, "android"):
		if strings.Contains(ua, "mobile") {
			return "Android phone"
		}
		return "Android tablet"
	case strings.Contains(ua, "windows"):
		platform = "Windows"
	case strings.Contains(ua, "macintosh"), strings.Contains(ua, "mac os"):
		platform = "Mac"
	case strings.Contains(ua, "linux"):
		platform = "Linux"
	default:
		return "Unknown device"
	}

	switch {
	case strings.Contains(ua, "edg"):
		return platform + " (Edge)"
	case strings.Contains(ua, "firefox"):
		return platform + " (Firefox)"
	case strings.Contains(ua, "chrome"):
		return platform + " (Chrome)"
	case strings.Contains(ua, "safari"):
		return platform + " (Safari)"
	}
	return platform
}

