package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/puffing-runner/internal/config"
	"github.com/sakif/puffing-runner/internal/executor/local"
)

func TestNewLogger(t *testing.T) {
	for _, cfg := range []config.LogConfig{
		{Level: "debug", Format: "text"},
		{Level: "INFO", Format: "json"},
		{Level: "warn", Format: ""},
	} {
		logger, err := newLogger(cfg)
		require.NoError(t, err, "%+v", cfg)
		assert.NotNil(t, logger)
	}

	_, err := newLogger(config.LogConfig{Level: "loud", Format: "text"})
	assert.Error(t, err)
	_, err = newLogger(config.LogConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestNewExecutor_Local(t *testing.T) {
	logger, err := newLogger(config.LogConfig{Level: "error"})
	require.NoError(t, err)

	exec, closeExec, err := newExecutor(&config.Config{
		Executor: config.ExecutorConfig{Backend: config.BackendLocal, MaxOutputBytes: 1024},
	}, logger)
	require.NoError(t, err)
	defer closeExec()
	assert.IsType(t, &local.Executor{}, exec)
}

func TestRun_RequiresSecretInProduction(t *testing.T) {
	logger, err := newLogger(config.LogConfig{Level: "error"})
	require.NoError(t, err)

	cfg := &config.Config{
		Server:   config.ServerConfig{Environment: "production"},
		Executor: config.ExecutorConfig{Backend: config.BackendLocal},
		DBPath:   ":memory:",
	}
	err = run(cfg, logger)
	assert.ErrorContains(t, err, "JWT_SECRET")
}
