// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/folio/internal/api"
	"github.com/starford/folio/internal/credentials"
	"github.com/starford/folio/internal/docservice"
	"github.com/starford/folio/internal/history"
	"github.com/starford/folio/internal/metrics"
	"github.com/starford/folio/internal/session"
	"github.com/starford/folio/internal/sse"
	"github.com/starford/folio/internal/storage"
	"github.com/starford/folio/internal/watcher"
	"github.com/starford/folio/internal/web"
)

// stores groups everything built from the content, credentials and history
// sections of the config.
type stores struct {
	content     *storage.FS
	history     *history.Store
	credentials *credentials.Store
	docs        *docservice.Service
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

func openStores(cfg *Config) (*stores, error) {
	if err := os.MkdirAll(cfg.Content.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create content dir: %w", err)
	}
	content, err := storage.NewFS(cfg.Content.Dir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	hist := history.NewStore(cfg.History.Path)
	return &stores{
		content:     content,
		history:     hist,
		credentials: credentials.NewStore(cfg.Credentials.Path, cfg.Credentials.BcryptCost),
		docs:        docservice.NewService(content, hist),
	}, nil
}

// seedUsers registers the bootstrap users that do not exist yet.
func seedUsers(creds *credentials.Store, users []BootstrapUser, logger *slog.Logger) error {
	for _, u := range users {
		exists, err := creds.Exists(u.Username)
		if err != nil {
			return fmt.Errorf("bootstrap %s: %w", u.Username, err)
		}
		if exists {
			continue
		}
		if err := creds.Register(u.Username, u.Password); err != nil {
			return fmt.Errorf("bootstrap %s: %w", u.Username, err)
		}
		logger.Info("Bootstrap user registered", slog.String("username", u.Username))
	}
	return nil
}

func sessionSecret(cfg SessionConfig, logger *slog.Logger) ([]byte, error) {
	if cfg.Secret != "" {
		return []byte(cfg.Secret), nil
	}
	logger.Warn("session.secret is empty, using a random secret; sessions end on restart")
	return session.RandomSecret()
}

// routes bundles the handlers mounted by newRouter.
type routes struct {
	site    *web.Handler
	api     chi.Router
	broker  *sse.Broker
	metrics *metrics.Collector // nil disables /metrics
}

// newRouter builds the HTTP handler: operational endpoints, the SSE stream,
// the JSON API and the site itself.
func newRouter(rt routes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if rt.metrics != nil {
		r.Use(rt.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/events", rt.broker.ServeHTTP)

	r.Mount("/api", rt.api)
	r.Mount("/", web.NewRouter(rt.site))
	return r
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{
		shutdownTimeout: 10 * time.Second,
		listingThrottle: 2 * time.Second,
	}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(os.Stdout, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("content_dir", cfg.Content.Dir),
		slog.String("credentials_path", cfg.Credentials.Path),
		slog.String("history_path", cfg.History.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	st, err := openStores(cfg)
	if err != nil {
		return err
	}

	if err := seedUsers(st.credentials, cfg.Bootstrap.Users, logger); err != nil {
		return err
	}

	secret, err := sessionSecret(cfg.Session, logger)
	if err != nil {
		return err
	}
	sessions, err := session.NewManager(secret, cfg.Session.CookieName, cfg.Session.MaxAge)
	if err != nil {
		return fmt.Errorf("init sessions: %w", err)
	}

	handler, err := web.NewHandler(st.docs, st.credentials, sessions)
	if err != nil {
		return fmt.Errorf("init web: %w", err)
	}

	// SSE broker.
	broker := sse.NewBroker(app.listingThrottle)
	defer broker.Close()

	onChange := broker.PublishChange
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector("folio")
		onChange = func(kind, name string) {
			collector.ObserveChange(kind, name)
			broker.PublishChange(kind, name)
		}
	}

	httpServer := &http.Server{
		Addr: cfg.App.HTTP.Address(),
		Handler: newRouter(routes{
			site:    handler,
			api:     api.NewRouter(st.docs, sessions, cfg.API.AllowedOrigins),
			broker:  broker,
			metrics: collector,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Open event streams end when the broker closes.
	httpServer.RegisterOnShutdown(broker.Close)

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start content watcher with SSE callback.
	g.Go(func() error {
		err := watcher.Watch(gCtx, st.content.Root(), logger, onChange)
		if err != nil {
			logger.Warn("content watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group once the server has been shut down so the
// watcher stops too.
var errShutdown = errors.New("shutdown")
