// Package server is the composition root: it opens the store, builds the
// services and handlers, mounts the routes and runs the HTTP server.
//
// DEPENDENCY FLOW:
//
//	config.Config → gormdb.DB (repository.Store)
//	             → auth.TokenService / auth.PasswordService
//	             → llm.Client (optional, needs chat.api-key)
//	             → service.{Auth,Note,Chat}Service
//	             → handler.{Auth,Notes,Chat,Health}Handler
//
// Every layer receives only what it needs; handlers never see the store.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/mindflow/internal/auth"
	"github.com/sakif/mindflow/internal/config"
	"github.com/sakif/mindflow/internal/handler"
	"github.com/sakif/mindflow/internal/llm"
	"github.com/sakif/mindflow/internal/metrics"
	"github.com/sakif/mindflow/internal/middleware"
	"github.com/sakif/mindflow/internal/repository/gormdb"
	"github.com/sakif/mindflow/internal/service"
)

// Server owns the router and the database connection. The connection is
// closed when Start returns or Close is called.
type Server struct {
	router   *chi.Mux
	cfg      *config.Config
	logger   *slog.Logger
	db       *gormdb.DB
	registry *prometheus.Registry
	tokens   *auth.TokenService
}

// New wires every dependency from cfg. It fails fast on a bad database
// configuration; a missing chat API key only disables /api/chat.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	// === DATABASE ===
	db, err := gormdb.New(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// === AUTH ===
	secret := cfg.Security.JWTSecret
	if secret == "" {
		secret, err = auth.RandomSecret()
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("generating jwt secret: %w", err)
		}
		logger.Warn("security.jwt-secret not set; using a random secret, tokens will not survive a restart")
	}
	tokens, err := auth.NewTokenService(secret, cfg.Security.TokenExpiry)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	s := &Server{
		router:   chi.NewRouter(),
		cfg:      cfg,
		logger:   logger,
		db:       db,
		registry: prometheus.NewRegistry(),
		tokens:   tokens,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// newStreamer returns nil (chat unavailable) when no API key is set.
func (s *Server) newStreamer() (llm.Streamer, error) {
	client, err := llm.NewClient(llm.Config{
		APIKey:  s.cfg.Chat.APIKey,
		BaseURL: s.cfg.Chat.BaseURL,
		Model:   s.cfg.Chat.Model,
	}, s.logger)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		s.logger.Warn("chat.api-key not set; /api/chat will answer 500")
		return nil, nil
	case err != nil:
		return nil, err
	}
	return client, nil
}

// setupRoutes mounts middleware and routes.
//
// ROUTES:
//
//	POST   /api/auth/register
//	POST   /api/auth/login
//	DELETE /api/auth/account       (auth)
//	GET    /api/notes              (auth)
//	POST   /api/notes              (auth)
//	GET    /api/notes/search       (auth)
//	GET    /api/notes/tags         (auth)
//	GET    /api/notes/graph        (auth)
//	GET    /api/notes/{id}         (auth)
//	PUT    /api/notes/{id}         (auth)
//	DELETE /api/notes/{id}         (auth)
//	POST   /api/chat               (auth, rate limited, SSE)
//	GET    /healthz
//	GET    /metrics
func (s *Server) setupRoutes() error {
	// === METRICS ===
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(s.registry)

	// === SERVICES ===
	streamer, err := s.newStreamer()
	if err != nil {
		return fmt.Errorf("creating chat client: %w", err)
	}

	passwords := auth.NewPasswordService(s.cfg.Security.BcryptCost)
	authService := service.NewAuthService(s.db.Users(), s.tokens, passwords, s.cfg.Chat.InitialCredits, s.logger)
	noteService := service.NewNoteService(s.db, service.NewLinkProcessor(s.logger), m, s.logger)
	chatService := service.NewChatService(s.db, streamer, service.ChatOptions{
		ContextLimit:  s.cfg.Chat.ContextLimit,
		PreviewLength: s.cfg.Chat.PreviewLength,
	}, m, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	notesHandler := handler.NewNotesHandler(noteService, s.logger)
	chatHandler := handler.NewChatHandler(chatService, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	limiter := middleware.NewUserRateLimiter(s.cfg.Chat.RateLimit, m)
	requireAuth := auth.RequireAuth(s.tokens)

	// === GLOBAL MIDDLEWARE ===
	// Order matters: the request id must exist before the logger reads it,
	// and Recoverer must sit inside the logger so panics are logged as 500s.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Metrics(m))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// === OPERATIONAL ROUTES ===
	s.router.Get("/healthz", healthHandler.HandleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	if dir := s.cfg.Server.StaticDir; dir != "" {
		fileServer := http.FileServer(http.Dir(dir))
		s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))
	}

	// === API ROUTES ===
	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.With(requireAuth).Delete("/account", authHandler.HandleDeleteAccount)
		})

		r.Route("/notes", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", notesHandler.HandleList)
			r.Post("/", notesHandler.HandleCreate)
			r.Get("/search", notesHandler.HandleSearch)
			r.Get("/tags", notesHandler.HandleTags)
			r.Get("/graph", notesHandler.HandleGraph)
			r.Get("/{id}", notesHandler.HandleGet)
			r.Put("/{id}", notesHandler.HandleUpdate)
			r.Delete("/{id}", notesHandler.HandleDelete)
		})

		r.With(requireAuth, limiter.Middleware).Post("/chat", chatHandler.HandleChat)
	})

	return nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database connection.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for
// up to server.shutdown-timeout and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	sc := s.cfg.Server
	srv := &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("database", s.cfg.Database.Type),
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

		ctx, cancel := context.WithTimeout(context.Background(), sc.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
