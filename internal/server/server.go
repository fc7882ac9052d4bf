// Package server wires the application together and runs the HTTP server.
//
// It is the composition root: every dependency is built in New, so
// handlers, services and repositories never construct each other.
//
//	accounts DB ─→ AuthService ─→ AuthHandler
//	control plane ─→ Provisioner ─→ SessionHook ─↗
//	tenant Router ─→ NoteRepository ─→ NoteService ─→ NoteHandler
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/sakif/notebox/internal/auth"
	"github.com/sakif/notebox/internal/config"
	"github.com/sakif/notebox/internal/handler"
	"github.com/sakif/notebox/internal/middleware"
	sqliteRepo "github.com/sakif/notebox/internal/repository/sqlite"
	"github.com/sakif/notebox/internal/service"
	"github.com/sakif/notebox/internal/tenant"
)

// Server owns the accounts database and the tenant store handles; both are
// closed when Start returns.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	tenants *sqliteRepo.Router
}

// New builds every dependency from cfg. cfg is expected to have passed
// Validate.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if dir := filepath.Dir(cfg.Server.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqliteRepo.New(cfg.Server.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening accounts database: %w", err)
	}

	tenants, err := sqliteRepo.NewRouter(sqliteRepo.RouterConfig{
		Driver:      cfg.Turso.TenantDriver,
		URLTemplate: cfg.Turso.DatabaseURL,
		Placeholder: cfg.Turso.TemplateDB,
		AuthToken:   cfg.Turso.AuthToken,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configuring tenant router: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		tenants: tenants,
	}

	if err := s.setupRoutes(); err != nil {
		_ = s.close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes wires the dependency chain and the routes:
//
//	GET    /healthz                   liveness of the accounts DB
//	GET    /metrics                   Prometheus
//	GET    /auth/providers            configured sign-in providers
//	GET    /auth/{provider}/login     start OAuth
//	GET    /auth/{provider}/callback  finish OAuth, provision tenant
//	POST   /auth/logout
//	POST   /auth/refresh              (auth) re-issue token, retry provisioning
//	GET    /api/me                    (auth)
//	GET    /api/notes                 (auth)
//	POST   /api/notes                 (auth)
//	GET    /api/notes/{id}            (auth)
//	PUT    /api/notes/{id}            (auth)
//	DELETE /api/notes/{id}            (auth)
func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.Auth.JWTSecret, s.config.Auth.SessionTTL)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	provisioner := tenant.NewProvisioner(
		tenant.NewClient(s.config.ClientConfig()),
		s.tenants,
		s.config.ProvisionerOptions(),
		tenant.NewMetrics(reg),
		s.logger,
	)
	hook := tenant.NewSessionHook(provisioner, s.logger)

	authService := service.NewAuthService(s.db, tokens, hook, s.logger)
	noteService := service.NewNoteService(sqliteRepo.NewNoteRepository(s.tenants), s.logger)

	secure := strings.HasPrefix(s.config.Server.PublicURL, "https://")
	authHandler := handler.NewAuthHandler(s.providers(), authService, secure, s.logger)
	noteHandler := handler.NewNoteHandler(noteService, s.logger)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Method(http.MethodGet, "/healthz", handler.NewHealthHandler(s.db, s.logger))
	s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/providers", authHandler.HandleProviders)
		r.Get("/{provider}/login", authHandler.HandleLogin)
		r.Get("/{provider}/callback", authHandler.HandleCallback)
		r.Post("/logout", authHandler.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens), middleware.RecordUser)
			r.Post("/refresh", authHandler.HandleRefresh)
		})
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens), middleware.RecordUser)

		r.Get("/me", authHandler.HandleMe)
		r.Get("/notes", noteHandler.HandleList)
		r.Post("/notes", noteHandler.HandleCreate)
		r.Get("/notes/{id}", noteHandler.HandleGet)
		r.Put("/notes/{id}", noteHandler.HandleUpdate)
		r.Delete("/notes/{id}", noteHandler.HandleDelete)
	})

	return nil
}

// providers returns the OAuth providers that have credentials configured.
func (s *Server) providers() []auth.Provider {
	a := s.config.Auth
	var out []auth.Provider
	if a.GitHub.Enabled() {
		out = append(out, auth.NewGitHubProvider(a.GitHub.ClientID, a.GitHub.ClientSecret, s.config.CallbackURL("github")))
	}
	if a.Google.Enabled() {
		out = append(out, auth.NewGoogleProvider(a.Google.ClientID, a.Google.ClientSecret, s.config.CallbackURL("google")))
	}
	if a.Discord.Enabled() {
		out = append(out, auth.NewDiscordProvider(a.Discord.ClientID, a.Discord.ClientSecret, s.config.CallbackURL("discord")))
	}
	for _, p := range out {
		s.logger.Info("sign-in provider enabled", slog.String("provider", p.Name()))
	}
	return out
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for
// up to 30 seconds and closes the databases.
func (s *Server) Start() error {
	defer func() {
		if err := s.close(); err != nil {
			s.logger.Error("closing databases", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // sign-in may wait on provisioning
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("url", s.config.Server.PublicURL),
			slog.String("database", s.config.Server.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

func (s *Server) close() error {
	return multierr.Append(s.tenants.Close(), s.db.Close())
}
