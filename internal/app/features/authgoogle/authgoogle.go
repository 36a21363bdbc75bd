// internal/app/features/authgoogle/authgoogle.go
package authgoogle

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	errorsfeature "github.com/dalemusser/pinboard/internal/app/features/errors"
	"github.com/dalemusser/pinboard/internal/app/store/oauthstate"
	userstore "github.com/dalemusser/pinboard/internal/app/store/users"
	"github.com/dalemusser/pinboard/internal/app/system/auditlog"
	"github.com/dalemusser/pinboard/internal/app/system/signin"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var errDisabled = errors.New("account disabled")

// Handler runs the Google OAuth sign-in flow.
type Handler struct {
	users       *userstore.Store
	states      *oauthstate.Store
	starter     *signin.Starter
	errLog      *errorsfeature.ErrorLogger
	auditLogger *auditlog.Logger
	oauthConfig *oauth2.Config
	userInfoURL string
	logger      *zap.Logger
}

func NewHandler(
	db *mongo.Database,
	starter *signin.Starter,
	states *oauthstate.Store,
	errLog *errorsfeature.ErrorLogger,
	auditLogger *auditlog.Logger,
	clientID, clientSecret, baseURL string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		users:       userstore.New(db),
		states:      states,
		starter:     starter,
		errLog:      errLog,
		auditLogger: auditLogger,
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  strings.TrimRight(baseURL, "/") + "/auth/google/callback",
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: defaultUserInfoURL,
		logger:      logger,
	}
}

// Routes mounts the flow under /auth/google.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.startAuth)
	r.Get("/callback", h.handleCallback)
	return r
}

func fail(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, "/login?error="+code, http.StatusSeeOther)
}

// startAuth stores a single-use state and sends the browser to Google.
func (h *Handler) startAuth(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		h.errLog.Log(r, "failed to generate oauth state", err)
		fail(w, r, "google_failed")
		return
	}
	returnTo := urlutil.SafeReturn(query.Get(r, "return"), "", "/feed")
	if err := h.states.Create(r.Context(), state, returnTo); err != nil {
		h.errLog.Log(r, "failed to store oauth state", err)
		fail(w, r, "google_failed")
		return
	}
	http.Redirect(w, r, h.oauthConfig.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	st, err := h.states.Consume(r.Context(), query.Get(r, "state"))
	if err != nil {
		h.logger.Warn("invalid oauth state", zap.Error(err))
		fail(w, r, "google_state")
		return
	}

	if e := query.Get(r, "error"); e != "" {
		h.logger.Info("google sign-in declined", zap.String("error", e))
		fail(w, r, "google_failed")
		return
	}

	token, err := h.oauthConfig.Exchange(r.Context(), query.Get(r, "code"))
	if err != nil {
		h.errLog.Log(r, "failed to exchange oauth code", err)
		fail(w, r, "google_failed")
		return
	}

	info, err := h.getUserInfo(r.Context(), token)
	if err != nil {
		h.errLog.Log(r, "failed to fetch google profile", err)
		fail(w, r, "google_failed")
		return
	}
	if info.Email == "" || !info.VerifiedEmail {
		h.logger.Warn("google account without a verified email", zap.String("google_id", info.ID))
		fail(w, r, "google_failed")
		return
	}

	user, created, err := h.resolveUser(r.Context(), *info)
	switch {
	case errors.Is(err, errDisabled):
		h.auditLogger.LoginFailedUserDisabled(r, user.ID, info.Email)
		fail(w, r, "account_disabled")
		return
	case err != nil:
		h.errLog.Log(r, "failed to resolve google user", err)
		fail(w, r, "service_unavailable")
		return
	}

	if err := h.starter.Start(w, r, user.ID, user.Role); err != nil {
		h.errLog.Log(r, "failed to create session", err)
		fail(w, r, "service_unavailable")
		return
	}
	if created {
		h.auditLogger.Signup(r, user.ID, models.AuthGoogle)
	}
	h.auditLogger.LoginSuccess(r, user.ID, models.AuthGoogle, info.Email)

	http.Redirect(w, r, urlutil.SafeReturn(st.ReturnTo, "", "/feed"), http.StatusSeeOther)
}

// resolveUser matches the Google account to a user by email, creating a
// member account with a free handle when none exists.
func (h *Handler) resolveUser(ctx context.Context, info GoogleUserInfo) (models.User, bool, error) {
	existing, err := h.users.GetByEmail(ctx, info.Email)
	if err == nil {
		if existing.Status != models.StatusActive {
			return *existing, false, errDisabled
		}
		return *existing, false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, false, err
	}

	username, err := h.users.AvailableUsername(ctx, handleBase(info))
	if err != nil {
		return models.User{}, false, err
	}
	name := strings.TrimSpace(info.Name)
	if name == "" {
		name = username
	}
	u, err := h.users.Create(ctx, models.User{
		FullName:   name,
		Username:   username,
		Email:      info.Email,
		AuthMethod: models.AuthGoogle,
		ImageURL:   info.Picture,
		Role:       models.RoleMember,
	})
	if errors.Is(err, userstore.ErrDuplicateEmail) {
		// Signed up concurrently; use that account.
		existing, err := h.users.GetByEmail(ctx, info.Email)
		if err != nil {
			return models.User{}, false, err
		}
		return *existing, false, nil
	}
	if err != nil {
		return models.User{}, false, fmt.Errorf("create google user: %w", err)
	}
	return u, true, nil
}

var nonHandle = regexp.MustCompile(`[^A-Za-z0-9_]`)

// handleBase picks the seed for a new handle: the Google display name when
// it has enough usable characters, otherwise the email's local part.
func handleBase(info GoogleUserInfo) string {
	if base := nonHandle.ReplaceAllString(info.Name, ""); len(base) >= 3 {
		return strings.ToLower(base)
	}
	local, _, _ := strings.Cut(info.Email, "@")
	return strings.ToLower(nonHandle.ReplaceAllString(local, ""))
}

// GoogleUserInfo is the userinfo endpoint response.
type GoogleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (h *Handler) getUserInfo(ctx context.Context, token *oauth2.Token) (*GoogleUserInfo, error) {
	client := h.oauthConfig.Client(ctx, token)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo: status %d", resp.StatusCode)
	}

	var info GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
