package auth

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/dalemusser/pinboard/internal/app/system/jsonutil"
	"github.com/dalemusser/pinboard/internal/app/system/normalize"
	"go.uber.org/zap"
)

// LoadSessionUser puts the cookie's user in the request context. With a
// UserFetcher installed the user is re-read every request; a user it no
// longer returns (deleted or disabled) has the cookie cleared.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := sm.store.Get(r, sm.name)
		if err != nil {
			level, reason := cookieFailure(err)
			if ce := sm.logger.Check(level, "unreadable session cookie"); ce != nil {
				ce.Write(zap.String("reason", reason), zap.String("path", r.URL.Path), zap.String("ip", r.RemoteAddr))
			}
		}

		uid := stringValue(sess, keyUserID)
		if uid == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := stringValue(sess, keyToken)

		if sm.fetcher == nil {
			next.ServeHTTP(w, withUser(r, &SessionUser{ID: uid, Role: stringValue(sess, keyRole), Token: token}))
			return
		}
		u := sm.fetcher.FetchUser(r.Context(), uid)
		if u == nil {
			sm.logger.Info("signed out: account gone or disabled", zap.String("user_id", uid))
			clear(sess.Values)
			_ = sess.Save(r, w)
			next.ServeHTTP(w, r)
			return
		}
		u.Token = token
		next.ServeHTTP(w, withUser(r, u))
	})
}

// RequireAuth lets signed-in requests through. Browsers are sent to /login
// with a return path; scripts get a JSON 401.
func (sm *SessionManager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			denyAnonymous(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole lets through signed-in users holding one of roles (compared
// case-insensitively).
func (sm *SessionManager) RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := map[string]bool{}
	for _, role := range roles {
		allowed[normalize.Role(role)] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			switch {
			case !ok:
				denyAnonymous(w, r)
			case !allowed[normalize.Role(u.Role)]:
				if browser(r) {
					http.Redirect(w, r, "/forbidden", http.StatusSeeOther)
				} else {
					jsonutil.Forbidden(w, "forbidden")
				}
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func denyAnonymous(w http.ResponseWriter, r *http.Request) {
	if browser(r) {
		http.Redirect(w, r, "/login?return="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
		return
	}
	jsonutil.Unauthorized(w, "Unauthorized")
}

// browser reports a page navigation, as opposed to a call under /api/ or a
// client that does not accept HTML.
func browser(r *http.Request) bool {
	return !strings.HasPrefix(r.URL.Path, "/api/") && strings.Contains(r.Header.Get("Accept"), "text/html")
}
