package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/kekarecall/apiserver/config"
	"github.com/kekarecall/apiserver/internal/calendar"
	"github.com/kekarecall/apiserver/internal/db"
	"github.com/kekarecall/apiserver/internal/handlers"
	"github.com/kekarecall/apiserver/internal/identity"
	"github.com/kekarecall/apiserver/internal/logging"
	"github.com/kekarecall/apiserver/internal/services"
	"github.com/kekarecall/apiserver/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	db         *sqlx.DB
	logger     *slog.Logger
}

// Dependencies are the collaborators a router is built from. Nil external
// collaborators are derived from the configuration.
type Dependencies struct {
	DB       *sqlx.DB
	Logger   *slog.Logger
	Notifier calendar.Notifier
	Provider identity.Provider
}

// New opens the database, applies migrations and constructs a Server.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(dbConn, cfg.Database); err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	router, err := NewRouter(cfg, Dependencies{DB: dbConn, Logger: logger})
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		db:         dbConn,
		logger:     logger,
	}, nil
}

// NewRouter wires repositories, services and handlers for the configured
// authentication mode.
func NewRouter(cfg config.Config, deps Dependencies) (*chi.Mux, error) {
	if deps.DB == nil {
		return nil, errors.New("database is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	accountRepo := store.NewAccountRepository(deps.DB)
	reviewRepo := store.NewReviewRepository(deps.DB)

	notifier := deps.Notifier
	provider := deps.Provider
	if cfg.AuthMode == config.AuthModeGoogle && (notifier == nil || provider == nil) {
		oauthCfg := identity.NewGoogleOAuthConfig(cfg.Google)
		if provider == nil {
			provider = identity.NewGoogleProvider(oauthCfg)
		}
		if notifier == nil {
			googleNotifier, err := calendar.NewGoogleNotifier(oauthCfg, cfg.Calendar)
			if err != nil {
				return nil, err
			}
			notifier = googleNotifier
		}
	}

	accountService := services.NewAccountService(accountRepo)
	reviewService := services.NewReviewService(reviewRepo, accountRepo, notifier, logger, cfg.Calendar.Timeout)
	sessions := handlers.NewSessions(cfg.SecretKey, cfg.SessionTTL, cfg.SecureCookies)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.Middleware(logger),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)

	handlers.PageRouter(router, accountService, sessions)
	switch cfg.AuthMode {
	case config.AuthModeGoogle:
		handlers.GoogleAuthRouter(router, provider, accountService, sessions, logger)
	default:
		handlers.PasswordAuthRouter(router, accountService, sessions)
	}
	router.Route("/api/reviews", func(r chi.Router) {
		handlers.ReviewRouter(r, reviewService, sessions.RequireAuth)
	})

	return router, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		_ = s.db.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	_ = s.db.Close()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}
