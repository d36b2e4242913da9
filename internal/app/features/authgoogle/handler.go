// internal/app/features/authgoogle/handler.go

// Package authgoogle signs admins in through Google OAuth2. Accounts
// are matched by email; there is no self-service sign-up, so an
// unknown Google identity is turned away.
package authgoogle

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	adminstore "github.com/branchrate/branchrate/internal/app/store/admins"
	"github.com/branchrate/branchrate/internal/app/store/oauthstate"
	"github.com/branchrate/branchrate/internal/app/system/auditlog"
	"github.com/branchrate/branchrate/internal/app/system/auth"
	"github.com/branchrate/branchrate/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const stateExpiry = 10 * time.Minute

type Handler struct {
	Admins     *adminstore.Store
	SessionMgr *auth.SessionManager
	StateStore *oauthstate.Store
	AuditLog   *auditlog.Logger
	Log        *zap.Logger

	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// IsConfigured reports whether Google sign-in credentials are set.
func (h *Handler) IsConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /api/auth/google                                                         |
| Redirects the browser to Google's consent screen.                            |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		h.Log.Warn("google sign-in requested but not configured")
		redirectWithError(w, r, "google_not_configured")
		return
	}

	state, err := generateState()
	if err != nil {
		h.Log.Error("generate oauth state", zap.Error(err))
		redirectWithError(w, r, "internal")
		return
	}

	returnURL := query.Get(r, "return")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	expiresAt := time.Now().UTC().Add(stateExpiry)
	if err := h.StateStore.Save(ctx, state, returnURL, expiresAt); err != nil {
		h.Log.Error("save oauth state", zap.Error(err))
		redirectWithError(w, r, "internal")
		return
	}

	http.Redirect(w, r, h.oauth2Config().AuthCodeURL(state), http.StatusTemporaryRedirect)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /api/auth/google/callback                                                |
| Validates state, exchanges the code, matches the admin by email and          |
| creates a session.                                                           |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if errParam := query.Get(r, "error"); errParam != "" {
		h.Log.Warn("google oauth error",
			zap.String("error", errParam),
			zap.String("description", query.Get(r, "error_description")))
		redirectWithError(w, r, "google_denied")
		return
	}

	state := query.Get(r, "state")
	if state == "" {
		redirectWithError(w, r, "invalid_state")
		return
	}

	ctxShort, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	returnURL, valid, err := h.StateStore.Validate(ctxShort, state)
	if err != nil {
		h.Log.Error("validate oauth state", zap.Error(err))
		redirectWithError(w, r, "internal")
		return
	}
	if !valid {
		h.Log.Warn("invalid or expired oauth state")
		redirectWithError(w, r, "invalid_state")
		return
	}

	code := query.Get(r, "code")
	if code == "" {
		redirectWithError(w, r, "invalid_code")
		return
	}

	token, err := h.oauth2Config().Exchange(ctx, code)
	if err != nil {
		h.Log.Error("exchange oauth code", zap.Error(err))
		redirectWithError(w, r, "token_exchange")
		return
	}

	googleUser, err := fetchGoogleUserInfo(ctx, token)
	if err != nil {
		h.Log.Error("fetch google user info", zap.Error(err))
		redirectWithError(w, r, "user_info")
		return
	}

	a, err := h.Admins.GetByEmail(ctxShort, googleUser.Email)
	if errors.Is(err, adminstore.ErrNotFound) {
		h.Log.Info("google sign-in for unknown account",
			zap.String("email", googleUser.Email))
		h.AuditLog.OAuthLogin(ctx, r, nil, googleUser.Email, false, "no_account")
		redirectWithError(w, r, "no_account")
		return
	}
	if err != nil {
		h.Log.Error("look up admin for google sign-in", zap.Error(err))
		redirectWithError(w, r, "internal")
		return
	}

	if err := h.SessionMgr.SignIn(w, r, auth.SessionUser{
		ID:    a.ID.Hex(),
		Name:  a.Name,
		Email: a.Email,
	}); err != nil {
		h.Log.Error("save session after google sign-in", zap.Error(err))
		redirectWithError(w, r, "internal")
		return
	}

	h.AuditLog.OAuthLogin(ctx, r, &a.ID, a.Email, true, "")
	h.Log.Info("admin signed in via google",
		zap.String("admin_id", a.ID.Hex()),
		zap.String("role", a.Role))

	if returnURL == "" || returnURL[0] != '/' {
		returnURL = "/"
	}
	http.Redirect(w, r, returnURL, http.StatusSeeOther)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func fetchGoogleUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo endpoint returned %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	return &info, nil
}

// generateState creates a cryptographically secure random state string.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func redirectWithError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, "/login?error="+code, http.StatusSeeOther)
}
