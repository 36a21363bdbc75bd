// internal/app/features/signup/signup.go
package signup

import (
	"errors"
	"net/http"
	"strings"

	errorsfeature "github.com/dalemusser/pinboard/internal/app/features/errors"
	"github.com/dalemusser/pinboard/internal/app/store/ratelimit"
	userstore "github.com/dalemusser/pinboard/internal/app/store/users"
	"github.com/dalemusser/pinboard/internal/app/system/auditlog"
	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/app/system/authutil"
	"github.com/dalemusser/pinboard/internal/app/system/inputval"
	"github.com/dalemusser/pinboard/internal/app/system/jsonutil"
	"github.com/dalemusser/pinboard/internal/app/system/network"
	"github.com/dalemusser/pinboard/internal/app/system/signin"
	"github.com/dalemusser/pinboard/internal/app/system/viewdata"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// MsgUserExists is returned for a duplicate email or username.
const MsgUserExists = "User already exists"

const msgTooMany = "Too many signups from this address. Please try again later."

var (
	errExists  = errors.New(MsgUserExists)
	errLimited = errors.New(msgTooMany)
)

// Handler creates accounts and signs the new user in.
type Handler struct {
	users       *userstore.Store
	rateLimit   *ratelimit.Store // nil if rate limiting disabled
	starter     *signin.Starter
	errLog      *errorsfeature.ErrorLogger
	auditLogger *auditlog.Logger
	logger      *zap.Logger
}

func NewHandler(
	db *mongo.Database,
	starter *signin.Starter,
	rateLimit *ratelimit.Store,
	errLog *errorsfeature.ErrorLogger,
	auditLogger *auditlog.Logger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		users:       userstore.New(db),
		rateLimit:   rateLimit,
		starter:     starter,
		errLog:      errLog,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// Routes mounts the signup page under /signup.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.showSignup)
	r.Post("/", h.handleSignup)
	return r
}

// APIRoutes mounts POST /api/auth/signup.
func APIRoutes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/signup", h.apiSignup)
	return r
}

// Input is a signup request from either the form or the JSON API.
type Input struct {
	Name     string `json:"name" validate:"required,max=100" label:"Name"`
	Username string `json:"username" validate:"required,username" label:"Username"`
	Email    string `json:"email" validate:"required,email,max=254" label:"Email"`
	Password string `json:"password" validate:"required" label:"Password"`
	Confirm  string `json:"-"`
}

// validationError carries a message safe to show the user.
type validationError struct{ msg string }

func (e validationError) Error() string { return e.msg }

// register validates in, creates the user and reports who was created.
// Returned errors other than validationError, errExists and errLimited are
// internal.
func (h *Handler) register(r *http.Request, in Input) (models.User, error) {
	ctx := r.Context()
	in.Name = strings.TrimSpace(in.Name)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	if res := inputval.Validate(in); res.HasErrors() {
		return models.User{}, validationError{res.First()}
	}
	if err := authutil.ValidateNewPassword(in.Password, in.Confirm, in.Username, in.Email); err != nil {
		return models.User{}, validationError{err.Error()}
	}

	key := ratelimit.SignupKey(network.ClientIP(r))
	if h.rateLimit != nil {
		if allowed, _, _ := h.rateLimit.CheckAllowed(ctx, key); !allowed {
			return models.User{}, errLimited
		}
	}

	exists, err := h.users.Exists(ctx, in.Email, in.Username)
	if err != nil {
		return models.User{}, err
	}
	if exists {
		return models.User{}, errExists
	}

	hash, err := authutil.HashPassword(in.Password)
	if err != nil {
		return models.User{}, err
	}
	u, err := h.users.Create(ctx, models.User{
		FullName:     in.Name,
		Username:     in.Username,
		Email:        in.Email,
		AuthMethod:   models.AuthPassword,
		PasswordHash: &hash,
		Role:         models.RoleMember,
	})
	if errors.Is(err, userstore.ErrDuplicateEmail) || errors.Is(err, userstore.ErrDuplicateUsername) {
		return models.User{}, errExists
	}
	if err != nil {
		return models.User{}, err
	}

	// Each created account counts against the address.
	if h.rateLimit != nil {
		h.rateLimit.RecordFailure(ctx, key)
	}
	h.auditLogger.Signup(r, u.ID, models.AuthPassword)
	return u, nil
}

// publicMessage returns the text to show for err, or "" for internal errors.
func publicMessage(err error) string {
	var ve validationError
	switch {
	case errors.As(err, &ve):
		return ve.msg
	case errors.Is(err, errExists), errors.Is(err, errLimited):
		return err.Error()
	}
	return ""
}

// SignupVM is the view model for the signup page.
type SignupVM struct {
	viewdata.BaseVM
	Error         string
	Success       string
	Name          string
	Username      string
	Email         string
	PasswordRules string
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, vm SignupVM) {
	vm.BaseVM = viewdata.NewBaseVM(r, "Sign up", "/")
	vm.PasswordRules = authutil.PasswordRules()
	templates.Render(w, r, "signup/index", vm)
}

func (h *Handler) showSignup(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.CurrentUser(r); ok {
		http.Redirect(w, r, "/feed", http.StatusSeeOther)
		return
	}
	h.render(w, r, SignupVM{})
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.errLog.Log(r, "failed to parse form", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	in := Input{
		Name:     r.FormValue("name"),
		Username: r.FormValue("username"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
		Confirm:  r.FormValue("confirm"),
	}

	u, err := h.register(r, in)
	if err != nil {
		msg := publicMessage(err)
		if msg == "" {
			h.errLog.Log(r, "signup failed", err)
			msg = "Something went wrong. Please try again."
		}
		w.WriteHeader(http.StatusBadRequest)
		h.render(w, r, SignupVM{Error: msg, Name: in.Name, Username: in.Username, Email: in.Email})
		return
	}

	if err := h.starter.Start(w, r, u.ID, u.Role); err != nil {
		h.errLog.Log(r, "failed to create session after signup", err)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/feed", http.StatusSeeOther)
}

func (h *Handler) apiSignup(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "Invalid request body")
		return
	}
	in.Confirm = in.Password

	u, err := h.register(r, in)
	if err != nil {
		if msg := publicMessage(err); msg != "" {
			jsonutil.BadRequest(w, msg)
			return
		}
		h.errLog.Log(r, "signup failed", err)
		jsonutil.InternalError(w, "Signup failed")
		return
	}

	if err := h.starter.Start(w, r, u.ID, u.Role); err != nil {
		h.errLog.Log(r, "failed to create session after signup", err)
	}
	jsonutil.Created(w, u)
}
