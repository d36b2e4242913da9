// internal/app/system/auth/auth.go

// Package auth manages admin dashboard sessions and the per-request
// resolution of authorization records.
//
// The session cookie carries only identity (account id, name, email).
// Role and branch scope are re-resolved from the admins collection on
// every request, so edits to an authorization record take effect
// immediately instead of living until the cookie expires.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/branchrate/branchrate/internal/app/system/authz"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	isAuthKey  = "is_authenticated"
	accountKey = "account_id"
	nameKey    = "account_name"
	emailKey   = "account_email"
)

// SessionUser is the identity cached in the session cookie.
type SessionUser struct {
	ID    string
	Name  string
	Email string
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// AccountResolver looks up the authorization record for a session
// identity. A missing record returns (nil, nil); that is a normal
// business outcome, distinct from a transient store error.
type AccountResolver interface {
	Resolve(ctx context.Context, accountID primitive.ObjectID) (*authz.AuthContext, error)
}

// SessionManager owns the cookie store and the auth middleware chain.
type SessionManager struct {
	store    *sessions.CookieStore
	name     string
	resolver AccountResolver
	log      *zap.Logger
}

// NewSessionManager builds a cookie-backed session manager. The secure
// flag controls Secure/SameSite cookie attributes: production uses
// Secure + SameSite=None, local dev over http uses Lax.
func NewSessionManager(sessionKey, cookieName, domain string, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide >=32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts

	logger.Info("session store initialized",
		zap.Bool("secure", secure),
		zap.String("domain", domain))

	return &SessionManager{store: store, name: cookieName, log: logger}, nil
}

// SetAccountResolver wires the admins store in so LoadSessionUser can
// resolve a fresh AuthContext on each request.
func (sm *SessionManager) SetAccountResolver(r AccountResolver) {
	sm.resolver = r
}

// SignIn writes the session cookie for the given identity.
func (sm *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, u SessionUser) error {
	sess, _ := sm.store.Get(r, sm.name)
	sess.Values[isAuthKey] = true
	sess.Values[accountKey] = u.ID
	sess.Values[nameKey] = u.Name
	sess.Values[emailKey] = u.Email
	return sess.Save(r, w)
}

// SignOut clears the session cookie.
func (sm *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, _ := sm.store.Get(r, sm.name)
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// CurrentUser returns the session identity and a found flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

// LoadSessionUser injects the session identity into the request context
// and, when a resolver is wired, the freshly resolved AuthContext.
//
// A transient resolver failure is answered 503 retryable here rather
// than letting handlers mistake it for "no authorization record".
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := sm.store.Get(r, sm.name)
		if err != nil {
			// A cookie signed with a rotated key decodes as garbage;
			// treat the request as signed out rather than erroring.
			if scErr, ok := err.(securecookie.Error); ok && scErr.IsDecode() {
				sm.log.Warn("session cookie invalid, treating as signed out", zap.Error(err))
			} else {
				sm.log.Error("session store error", zap.Error(err))
			}
			next.ServeHTTP(w, r)
			return
		}

		isAuth, _ := sess.Values[isAuthKey].(bool)
		if !isAuth {
			next.ServeHTTP(w, r)
			return
		}

		u := &SessionUser{
			ID:    getString(sess, accountKey),
			Name:  getString(sess, nameKey),
			Email: getString(sess, emailKey),
		}
		r = r.WithContext(context.WithValue(r.Context(), currentUserKey, u))

		if sm.resolver != nil {
			accountID, err := primitive.ObjectIDFromHex(u.ID)
			if err != nil {
				// Session corruption; fail closed and continue signed out.
				sm.log.Warn("malformed account id in session", zap.String("id", u.ID))
				next.ServeHTTP(w, r)
				return
			}
			authCtx, err := sm.resolver.Resolve(r.Context(), accountID)
			if err != nil {
				sm.log.Error("authorization resolve failed", zap.Error(err))
				writeJSONError(w, http.StatusServiceUnavailable, "authorization lookup unavailable", true)
				return
			}
			if authCtx != nil {
				r = authz.WithRequest(r, authCtx)
			}
		}

		next.ServeHTTP(w, r)
	})
}

// RequireSignedIn rejects requests without a session identity (401).
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			writeJSONError(w, http.StatusUnauthorized, "sign in required", false)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuthorized rejects signed-out callers (401) and signed-in
// callers without an authorization record (403). Having a session but
// no record means "access denied", never partial access.
func (sm *SessionManager) RequireAuthorized(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			writeJSONError(w, http.StatusUnauthorized, "sign in required", false)
			return
		}
		if _, ok := authz.FromRequest(r); !ok {
			writeJSONError(w, http.StatusForbidden, "no authorization record", false)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAction gates a route group on one permission-matrix action.
func (sm *SessionManager) RequireAction(action authz.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := CurrentUser(r); !ok {
				writeJSONError(w, http.StatusUnauthorized, "sign in required", false)
				return
			}
			authCtx, ok := authz.FromRequest(r)
			if !ok || !authCtx.CanPerform(action) {
				writeJSONError(w, http.StatusForbidden, "forbidden", false)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithTestUser injects a session identity directly, bypassing the
// cookie store. Test helper for handler tests.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}

func writeJSONError(w http.ResponseWriter, status int, msg string, retryable bool) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":     msg,
		"retryable": retryable,
	})
}
