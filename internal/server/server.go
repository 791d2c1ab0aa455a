// Package server is the composition root: it opens the database, builds the
// services and handlers, mounts routes and runs the HTTP server until a
// shutdown signal arrives.
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
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/puffing-runner/internal/auth"
	"github.com/sakif/puffing-runner/internal/config"
	"github.com/sakif/puffing-runner/internal/executor"
	"github.com/sakif/puffing-runner/internal/handler"
	"github.com/sakif/puffing-runner/internal/metrics"
	"github.com/sakif/puffing-runner/internal/middleware"
	sqliteRepo "github.com/sakif/puffing-runner/internal/repository/sqlite"
	"github.com/sakif/puffing-runner/internal/service"
)

// Version is reported by / and /health.
const Version = "1.0.0"

// sweepInterval is how often idle rate limiter entries are dropped.
const sweepInterval = time.Minute

// Server owns the router and the database connection.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	metrics *metrics.Metrics
	limiter *middleware.RateLimiter
}

// New opens the database and wires every layer. exec is owned by the caller.
func New(cfg *config.Config, exec executor.Executor, tokens *auth.TokenService, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		metrics: metrics.New(),
	}
	if cfg.RateLimit.Rate > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimit.Rate, cfg.RateLimit.Burst, logger)
	}

	s.setupRoutes(exec, tokens)
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Close releases the database.
func (s *Server) Close() error { return s.db.Close() }

// setupRoutes mounts:
//
//	GET    /                          service info
//	GET    /health                    liveness + database check
//	GET    /metrics                   Prometheus exposition
//	POST   /execute                   run code (rate limited)
//	POST   /validate                  tokenize + parse only (rate limited)
//	POST   /api/token                 exchange an API key for a bearer token
//	GET    /api/programs              list saved programs
//	POST   /api/programs              save a program          (auth)
//	GET    /api/programs/{id}         fetch one
//	PUT    /api/programs/{id}         update                  (auth, owner)
//	DELETE /api/programs/{id}         delete                  (auth, owner)
//	POST   /api/programs/{id}/run     run a saved program (rate limited)
//	GET    /api/programs/{id}/runs    run history
func (s *Server) setupRoutes(exec executor.Executor, tokens *auth.TokenService) {
	r := s.router

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.Metrics(s.metrics))
	r.Use(middleware.CORS(middleware.AllowedOrigins(s.config.IsDevelopment())))

	programSvc := service.NewProgramService(s.db.Programs(), s.logger)
	execSvc := service.NewExecutionService(exec, s.config.Executor.Backend, s.db.Programs(), s.db.Runs(), s.metrics, s.logger)
	authSvc := service.NewAuthService(s.db.Clients(), tokens, auth.NewKeyService(), s.logger)

	infoH := handler.NewInfoHandler(Version, s.db, s.logger)
	execH := handler.NewExecuteHandler(execSvc, s.logger)
	progH := handler.NewProgramHandler(programSvc, execSvc, s.logger)
	tokenH := handler.NewTokenHandler(authSvc, s.logger)

	limited := func(r chi.Router) chi.Router {
		if s.limiter == nil {
			return r
		}
		return r.With(s.limiter.Middleware)
	}

	r.Get("/", infoH.HandleRoot)
	r.Get("/health", infoH.HandleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	limited(r).Post("/execute", execH.HandleExecute)
	limited(r).Post("/validate", execH.HandleValidate)
	limited(r).Post("/api/token", tokenH.HandleToken)

	r.Route("/api/programs", func(r chi.Router) {
		r.Use(auth.OptionalAuth(tokens))
		r.Get("/", progH.HandleList)
		r.Get("/{id}", progH.HandleGet)
		r.Get("/{id}/runs", progH.HandleRuns)
		limited(r).Post("/{id}/run", progH.HandleRun)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Post("/", progH.HandleCreate)
			r.Put("/{id}", progH.HandleUpdate)
			r.Delete("/{id}", progH.HandleDelete)
		})
	})
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests within
// the configured shutdown timeout and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// a run may take MaxTimeout seconds plus sandbox overhead
		WriteTimeout: time.Duration(executor.MaxTimeout)*time.Second + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stopSweep := s.startSweeper()
	defer stopSweep()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("environment", s.config.Server.Environment),
			slog.String("executor", s.config.Executor.Backend),
			slog.String("database", s.config.DBPath),
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

		ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

func (s *Server) startSweeper() (stop func()) {
	if s.limiter == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.limiter.Sweep()
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
