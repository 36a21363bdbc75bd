// internal/app/features/login/login.go
package login

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	errorsfeature "github.com/dalemusser/pinboard/internal/app/features/errors"
	"github.com/dalemusser/pinboard/internal/app/store/ratelimit"
	userstore "github.com/dalemusser/pinboard/internal/app/store/users"
	"github.com/dalemusser/pinboard/internal/app/system/auditlog"
	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/app/system/authutil"
	"github.com/dalemusser/pinboard/internal/app/system/signin"
	"github.com/dalemusser/pinboard/internal/app/system/viewdata"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler provides login handlers.
type Handler struct {
	users         *userstore.Store
	rateLimit     *ratelimit.Store // nil if rate limiting disabled
	starter       *signin.Starter
	errLog        *errorsfeature.ErrorLogger
	auditLogger   *auditlog.Logger
	googleEnabled bool
	logger        *zap.Logger
}

// NewHandler creates a new login Handler. rateLimit can be nil to disable
// rate limiting.
func NewHandler(
	db *mongo.Database,
	starter *signin.Starter,
	rateLimit *ratelimit.Store,
	errLog *errorsfeature.ErrorLogger,
	auditLogger *auditlog.Logger,
	googleEnabled bool,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		users:         userstore.New(db),
		rateLimit:     rateLimit,
		starter:       starter,
		errLog:        errLog,
		auditLogger:   auditLogger,
		googleEnabled: googleEnabled,
		logger:        logger,
	}
}

// LoginVM is the view model for the login page.
type LoginVM struct {
	viewdata.BaseVM
	Error         string
	Success       string
	Identifier    string
	ReturnURL     string
	GoogleEnabled bool
}

// Routes returns a chi.Router with login routes mounted.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.showLogin)
	r.Post("/", h.handleLogin)
	return r
}

// Messages for the ?error= codes other handlers redirect here with.
var errorMessages = map[string]string{
	"account_disabled":    "Account is disabled.",
	"google_failed":       "Google sign-in failed. Please try again.",
	"google_state":        "Google sign-in expired. Please try again.",
	"service_unavailable": "Service temporarily unavailable. Please try again.",
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, vm LoginVM) {
	vm.BaseVM = viewdata.NewBaseVM(r, "Log in", "/")
	vm.GoogleEnabled = h.googleEnabled
	templates.Render(w, r, "login/index", vm)
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.CurrentUser(r); ok {
		http.Redirect(w, r, "/feed", http.StatusSeeOther)
		return
	}
	h.render(w, r, LoginVM{
		Error:     errorMessages[query.Get(r, "error")],
		ReturnURL: query.Get(r, "return"),
	})
}

// handleLogin checks an email-or-username plus password.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.errLog.Log(r, "failed to parse form", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	identifier := strings.TrimSpace(r.FormValue("identifier"))
	password := r.FormValue("password")
	returnURL := r.FormValue("return")
	vm := LoginVM{Identifier: identifier, ReturnURL: returnURL}

	if identifier == "" || password == "" {
		vm.Error = "Please enter your email or username and password."
		h.render(w, r, vm)
		return
	}

	key := ratelimit.LoginKey(identifier)
	if h.rateLimit != nil {
		if allowed, _, lockedUntil := h.rateLimit.CheckAllowed(r.Context(), key); !allowed {
			h.auditLogger.LoginLockedOut(r, identifier)
			vm.Error = lockoutMessage(lockedUntil)
			h.render(w, r, vm)
			return
		}
	}

	user, err := h.users.GetByLogin(r.Context(), identifier)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			h.errLog.Log(r, "database error during login lookup", err)
			vm.Error = errorMessages["service_unavailable"]
			h.render(w, r, vm)
			return
		}
		h.recordFailure(r, key)
		h.auditLogger.LoginFailedUserNotFound(r, identifier)
		vm.Error = "Invalid credentials"
		h.render(w, r, vm)
		return
	}

	if user.Status != models.StatusActive {
		h.recordFailure(r, key)
		h.auditLogger.LoginFailedUserDisabled(r, user.ID, identifier)
		vm.Error = errorMessages["account_disabled"]
		h.render(w, r, vm)
		return
	}

	if user.AuthMethod == models.AuthGoogle && user.PasswordHash == nil {
		vm.Error = "This account signs in with Google."
		h.render(w, r, vm)
		return
	}

	if user.PasswordHash == nil || !authutil.CheckPassword(password, *user.PasswordHash) {
		if locked, lockedUntil := h.recordFailure(r, key); locked {
			h.auditLogger.LoginLockedOut(r, identifier)
			vm.Error = lockoutMessage(lockedUntil)
			h.render(w, r, vm)
			return
		}
		h.auditLogger.LoginFailedWrongPassword(r, user.ID, identifier)
		vm.Error = "Invalid credentials"
		h.render(w, r, vm)
		return
	}

	if h.rateLimit != nil {
		if err := h.rateLimit.ClearOnSuccess(r.Context(), key); err != nil {
			h.logger.Warn("failed to clear login attempts", zap.Error(err))
		}
	}

	if err := h.starter.Start(w, r, user.ID, user.Role); err != nil {
		h.errLog.Log(r, "failed to create session", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	h.auditLogger.LoginSuccess(r, user.ID, models.AuthPassword, identifier)

	http.Redirect(w, r, urlutil.SafeReturn(returnURL, "", "/feed"), http.StatusSeeOther)
}

func (h *Handler) recordFailure(r *http.Request, key string) (bool, *time.Time) {
	if h.rateLimit == nil {
		return false, nil
	}
	return h.rateLimit.RecordFailure(r.Context(), key)
}

func lockoutMessage(lockedUntil *time.Time) string {
	if lockedUntil == nil {
		return "Too many failed login attempts. Please try again later."
	}
	remaining := time.Until(*lockedUntil)
	if remaining > time.Minute {
		return fmt.Sprintf("Too many failed login attempts. Please try again in %d minute(s).", int(remaining.Minutes())+1)
	}
	return fmt.Sprintf("Too many failed login attempts. Please try again in %d second(s).", int(remaining.Seconds())+1)
}
