package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/notebox/internal/apperror"
	"github.com/sakif/notebox/internal/auth"
	"github.com/sakif/notebox/internal/handler"
	"github.com/sakif/notebox/internal/model"
	"github.com/sakif/notebox/internal/service"
)

type fakeProvider struct {
	name     string
	identity *auth.Identity
	err      error
	code     string
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) AuthURL(state string) string {
	return "https://idp.example/authorize?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (*auth.Identity, error) {
	p.code = code
	return p.identity, p.err
}

type fakeAuthService struct {
	result       *service.AuthResult
	err          error
	user         *model.User
	lastIdentity *auth.Identity
	lastSession  *auth.Session
}

func (s *fakeAuthService) LoginOrRegister(_ context.Context, id *auth.Identity) (*service.AuthResult, error) {
	s.lastIdentity = id
	return s.result, s.err
}

func (s *fakeAuthService) Refresh(_ context.Context, sess *auth.Session) (*service.AuthResult, error) {
	s.lastSession = sess
	return s.result, s.err
}

func (s *fakeAuthService) GetUserByID(_ context.Context, _ string) (*model.User, error) {
	return s.user, s.err
}

func (s *fakeAuthService) SessionTTL() int { return 3600 }

func newAuthRouter(p auth.Provider, svc handler.AuthService, userID string) http.Handler {
	h := handler.NewAuthHandler([]auth.Provider{p}, svc, false, testLogger())
	r := chi.NewRouter()
	r.Get("/auth/providers", h.HandleProviders)
	r.Get("/auth/{provider}/login", h.HandleLogin)
	r.Get("/auth/{provider}/callback", h.HandleCallback)
	r.Post("/auth/logout", h.HandleLogout)
	r.Group(func(r chi.Router) {
		if userID != "" {
			r.Use(withUser(userID))
		}
		r.Post("/auth/refresh", h.HandleRefresh)
		r.Get("/api/me", h.HandleMe)
	})
	return r
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuthHandler_Providers(t *testing.T) {
	h := handler.NewAuthHandler([]auth.Provider{
		&fakeProvider{name: "google"},
		&fakeProvider{name: "discord"},
		&fakeProvider{name: "github"},
	}, &fakeAuthService{}, false, testLogger())

	rr := httptest.NewRecorder()
	h.HandleProviders(rr, httptest.NewRequest(http.MethodGet, "/auth/providers", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"providers":["discord","github","google"]}`, rr.Body.String())
}

func TestAuthHandler_Login(t *testing.T) {
	r := newAuthRouter(&fakeProvider{name: "github"}, &fakeAuthService{}, "")

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/auth/github/login", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	state := findCookie(rr, "oauth_state")
	require.NotNil(t, state)
	assert.NotEmpty(t, state.Value)
	assert.True(t, state.HttpOnly)

	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, state.Value, loc.Query().Get("state"))
}

func TestAuthHandler_UnknownProvider(t *testing.T) {
	r := newAuthRouter(&fakeProvider{name: "github"}, &fakeAuthService{}, "")

	for _, path := range []string{"/auth/gitlab/login", "/auth/gitlab/callback"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
	}
}

func callback(r http.Handler, query, stateCookie string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/auth/github/callback?"+query, nil)
	if stateCookie != "" {
		req.AddCookie(&http.Cookie{Name: "oauth_state", Value: stateCookie})
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestAuthHandler_Callback(t *testing.T) {
	identity := &auth.Identity{Provider: "github", ProviderID: "42", Login: "octocat"}

	t.Run("signs in and sets the session cookie", func(t *testing.T) {
		p := &fakeProvider{name: "github", identity: identity}
		svc := &fakeAuthService{result: &service.AuthResult{
			User:  &model.User{ID: "u1"},
			Token: "signed.jwt.token",
		}}

		rr := callback(newAuthRouter(p, svc, ""), "state=s1&code=c1", "s1")

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/", rr.Header().Get("Location"))
		assert.Equal(t, "c1", p.code)
		assert.Same(t, identity, svc.lastIdentity)

		tok := findCookie(rr, auth.CookieName)
		require.NotNil(t, tok)
		assert.Equal(t, "signed.jwt.token", tok.Value)
		assert.Equal(t, 3600, tok.MaxAge)
		assert.True(t, tok.HttpOnly)
	})

	t.Run("state mismatch", func(t *testing.T) {
		svc := &fakeAuthService{}
		rr := callback(newAuthRouter(&fakeProvider{name: "github"}, svc, ""), "state=evil&code=c1", "s1")

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Nil(t, svc.lastIdentity)
	})

	t.Run("missing state cookie", func(t *testing.T) {
		rr := callback(newAuthRouter(&fakeProvider{name: "github"}, &fakeAuthService{}, ""), "state=s1&code=c1", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("user denied", func(t *testing.T) {
		rr := callback(newAuthRouter(&fakeProvider{name: "github"}, &fakeAuthService{}, ""), "state=s1&error=access_denied", "s1")

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/?auth=denied", rr.Header().Get("Location"))
		assert.Nil(t, findCookie(rr, auth.CookieName))
	})

	t.Run("missing code", func(t *testing.T) {
		rr := callback(newAuthRouter(&fakeProvider{name: "github"}, &fakeAuthService{}, ""), "state=s1", "s1")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("exchange fails", func(t *testing.T) {
		p := &fakeProvider{name: "github", err: errors.New("bad code")}
		rr := callback(newAuthRouter(p, &fakeAuthService{}, ""), "state=s1&code=c1", "s1")
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})

	t.Run("sign-in fails", func(t *testing.T) {
		p := &fakeProvider{name: "github", identity: identity}
		svc := &fakeAuthService{err: errors.New("accounts db down")}
		rr := callback(newAuthRouter(p, svc, ""), "state=s1&code=c1", "s1")

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Nil(t, findCookie(rr, auth.CookieName))
	})
}

func TestAuthHandler_Refresh(t *testing.T) {
	svc := &fakeAuthService{result: &service.AuthResult{
		User:        &model.User{ID: "u1", Login: "octocat"},
		Token:       "fresh.jwt.token",
		TenantReady: true,
	}}
	r := newAuthRouter(&fakeProvider{name: "github"}, svc, "u1")

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/refresh", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, svc.lastSession)
	assert.Equal(t, "u1", svc.lastSession.UserID)

	var body struct {
		User        model.User `json:"user"`
		TenantReady bool       `json:"tenantReady"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "octocat", body.User.Login)
	assert.True(t, body.TenantReady)

	tok := findCookie(rr, auth.CookieName)
	require.NotNil(t, tok)
	assert.Equal(t, "fresh.jwt.token", tok.Value)
}

func TestAuthHandler_RefreshUnknownUser(t *testing.T) {
	svc := &fakeAuthService{err: apperror.NotFound("user", "u1")}
	r := newAuthRouter(&fakeProvider{name: "github"}, svc, "u1")

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/refresh", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Nil(t, findCookie(rr, auth.CookieName))
}

func TestAuthHandler_Me(t *testing.T) {
	t.Run("signed in", func(t *testing.T) {
		svc := &fakeAuthService{user: &model.User{ID: "u1", Login: "octocat"}}
		rr := httptest.NewRecorder()
		newAuthRouter(&fakeProvider{name: "github"}, svc, "u1").
			ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/me", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"login":"octocat"`)
	})

	t.Run("anonymous", func(t *testing.T) {
		rr := httptest.NewRecorder()
		newAuthRouter(&fakeProvider{name: "github"}, &fakeAuthService{}, "").
			ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/me", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	rr := httptest.NewRecorder()
	newAuthRouter(&fakeProvider{name: "github"}, &fakeAuthService{}, "").
		ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	tok := findCookie(rr, auth.CookieName)
	require.NotNil(t, tok)
	assert.Empty(t, tok.Value)
	assert.Negative(t, tok.MaxAge)
}
