package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"github.com/sakif/notebox/internal/auth"
	"github.com/sakif/notebox/internal/model"
	"github.com/sakif/notebox/internal/service"
)

// AuthService is the part of service.AuthService the handler uses.
type AuthService interface {
	LoginOrRegister(ctx context.Context, id *auth.Identity) (*service.AuthResult, error)
	Refresh(ctx context.Context, sess *auth.Session) (*service.AuthResult, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	SessionTTL() int
}

const stateCookie = "oauth_state"

// AuthHandler runs the OAuth login flow for every configured provider and
// manages the session cookie.
type AuthHandler struct {
	providers map[string]auth.Provider
	service   AuthService
	secure    bool // set Secure on cookies (HTTPS deployments)
	logger    *slog.Logger
}

func NewAuthHandler(providers []auth.Provider, svc AuthService, secure bool, logger *slog.Logger) *AuthHandler {
	byName := make(map[string]auth.Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &AuthHandler{
		providers: byName,
		service:   svc,
		secure:    secure,
		logger:    logger,
	}
}

// HandleProviders serves GET /auth/providers, the names the sign-in page
// should offer.
func (h *AuthHandler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.providers))
	for name := range h.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	writeJSON(w, http.StatusOK, map[string][]string{"providers": names})
}

// HandleLogin serves GET /auth/{provider}/login: it sets a single-use state
// cookie and redirects to the provider's consent page.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w, r)
	if !ok {
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, p.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleCallback serves GET /auth/{provider}/callback.
//
// After the state check and code exchange, sign-in is handed to the
// AuthService, which also provisions the user's tenant. A failed provisioning
// still lands the user on "/" with a valid session.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w, r)
	if !ok {
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie", slog.String("provider", p.Name()))
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("auth callback: state mismatch", slog.String("provider", p.Name()))
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:   stateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization",
			slog.String("provider", p.Name()),
			slog.String("error", errParam),
		)
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	identity, err := p.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: exchange failed",
			slog.String("provider", p.Name()),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	result, err := h.service.LoginOrRegister(r.Context(), identity)
	if err != nil {
		h.logger.Error("auth callback: sign-in failed",
			slog.String("provider", p.Name()),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	h.setSession(w, result.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleRefresh serves POST /auth/refresh (auth required). It re-issues the
// session token and retries tenant provisioning if it has not succeeded yet.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "valid authentication required"})
		return
	}

	result, err := h.service.Refresh(r.Context(), sess)
	if err != nil {
		h.logger.Error("session refresh failed",
			slog.String("userID", sess.UserID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	h.setSession(w, result.Token)
	writeJSON(w, http.StatusOK, map[string]any{
		"user":        result.User,
		"tenantReady": result.TenantReady,
	})
}

// HandleLogout serves POST /auth/logout. Tokens are stateless, so this only
// deletes the cookie.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe serves GET /api/me (auth required).
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "valid authentication required"})
		return
	}

	user, err := h.service.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("HandleMe: user lookup failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) provider(w http.ResponseWriter, r *http.Request) (auth.Provider, bool) {
	name := chi.URLParam(r, "provider")
	p, ok := h.providers[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "unknown sign-in provider " + name,
		})
	}
	return p, ok
}

func (h *AuthHandler) setSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   h.service.SessionTTL(),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
