// Command server runs the Puffing execution API.
//
// Configuration comes from environment variables (PORT, EXECUTOR, JWT_SECRET,
// DB_PATH, ...) or an optional puffing.yaml; see internal/config.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/sakif/puffing-runner/internal/auth"
	"github.com/sakif/puffing-runner/internal/config"
	"github.com/sakif/puffing-runner/internal/executor"
	"github.com/sakif/puffing-runner/internal/executor/docker"
	"github.com/sakif/puffing-runner/internal/executor/local"
	"github.com/sakif/puffing-runner/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if cfg.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			return fmt.Errorf("creating database directory %s: %w", dbDir, err)
		}
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		if !cfg.IsDevelopment() {
			return fmt.Errorf("JWT_SECRET must be set outside development")
		}
		secret = uuid.NewString() + uuid.NewString()
		logger.Warn("JWT_SECRET not set, using a random secret; tokens will not survive a restart")
	}
	tokens, err := auth.NewTokenService(secret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	exec, closeExec, err := newExecutor(cfg, logger)
	if err != nil {
		return err
	}
	defer closeExec()

	srv, err := server.New(cfg, exec, tokens, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// blocks until SIGINT/SIGTERM
	return srv.Start()
}

func newExecutor(cfg *config.Config, logger *slog.Logger) (executor.Executor, func(), error) {
	switch cfg.Executor.Backend {
	case config.BackendDocker:
		exec, err := docker.New(docker.Config{
			Image:          cfg.Docker.Image,
			MemoryLimit:    cfg.Docker.MemoryLimit,
			CPULimit:       cfg.Docker.CPULimit,
			PoolSize:       cfg.Docker.PoolSize,
			Grace:          cfg.Docker.Grace,
			MaxOutputBytes: cfg.Executor.MaxOutputBytes,
			MaxDepth:       cfg.Executor.MaxDepth,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("starting docker executor: %w", err)
		}
		return exec, func() {
			if err := exec.Close(); err != nil {
				logger.Error("closing docker executor", slog.String("error", err.Error()))
			}
		}, nil
	default:
		exec := local.New(local.Config{
			MaxOutputBytes: cfg.Executor.MaxOutputBytes,
			MaxDepth:       cfg.Executor.MaxDepth,
		}, logger)
		return exec, func() {}, nil
	}
}

func newLogger(cfg config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("config: invalid LOG_LEVEL %q", cfg.Level)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
	default:
		return nil, fmt.Errorf("config: invalid LOG_FORMAT %q (want text or json)", cfg.Format)
	}
}
