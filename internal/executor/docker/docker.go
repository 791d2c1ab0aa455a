// Package docker runs programs inside pre-warmed, network-less containers.
//
// Each run execs `puffing run --json` in a container taken from the Pool. The
// in-container harness enforces the request timeout and output cap and
// prints one ExecutionResult as JSON on stdout; this side only adds an outer
// deadline for a wedged container and throws the container away afterwards.
package docker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"

	"github.com/sakif/puffing-runner/internal/apperror"
	"github.com/sakif/puffing-runner/internal/executor"
	"github.com/sakif/puffing-runner/internal/executor/local"
)

const stderrLimit = 64 * 1024

// Executor implements executor.Executor on top of the Docker engine.
type Executor struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pool   *Pool
	local  *local.Executor
}

var _ executor.Executor = (*Executor)(nil)

// New connects to the engine from the environment, makes sure the image is
// present and starts the warm pool.
func New(cfg Config, logger *slog.Logger) (*Executor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := ensureImage(ctx, cli, cfg.Image, logger); err != nil {
		cli.Close()
		return nil, err
	}

	exec := &Executor{
		cli:    cli,
		config: cfg,
		logger: logger,
		local:  local.New(local.Config{MaxOutputBytes: cfg.MaxOutputBytes, MaxDepth: cfg.MaxDepth}, logger),
	}

	exec.pool = NewPool(cli, cfg, logger)
	exec.pool.Start()

	return exec, nil
}

func ensureImage(ctx context.Context, cli *client.Client, ref string, logger *slog.Logger) error {
	if _, err := cli.ImageInspect(ctx, ref); err == nil {
		logger.Info("docker image present", slog.String("image", ref))
		return nil
	}

	logger.Info("pulling docker image", slog.String("image", ref))
	reader, err := cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	defer reader.Close()
	// the pull only completes once the progress stream is drained
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	logger.Info("docker image is ready", slog.String("image", ref))
	return nil
}

// Close shuts down the pool and the docker client.
func (e *Executor) Close() error {
	e.pool.Stop()
	return e.cli.Close()
}

// Execute runs req in a sandbox container.
func (e *Executor) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	if req.Timeout <= 0 {
		return nil, apperror.ValidationFailed("timeout",
			fmt.Sprintf("timeout must be a positive number of seconds, got %d", req.Timeout))
	}

	cmd, err := buildCommand(req, e.config)
	if err != nil {
		return nil, err
	}

	log := e.logger.With(slog.String("run_id", uuid.NewString()))
	start := time.Now()
	budget := time.Duration(req.Timeout) * time.Second

	waitCtx, cancelWait := context.WithTimeout(ctx, budget)
	containerID, err := e.pool.Get(waitCtx)
	cancelWait()
	if err != nil {
		if ctx.Err() != nil {
			res := executor.Cancelled()
			res.ExecutionTime = executor.Seconds(time.Since(start))
			return res, nil
		}
		log.Warn("no sandbox container available", slog.String("error", err.Error()))
		return nil, apperror.Unavailable("no sandbox container available, try again shortly")
	}
	defer e.pool.Remove(containerID)

	runCtx, cancel := context.WithTimeout(ctx, budget+e.config.Grace)
	defer cancel()

	execResp, err := e.cli.ContainerExecCreate(runCtx, containerID, container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          cmd,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exec: %w", err)
	}

	attach, err := e.cli.ContainerExecAttach(runCtx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach to exec: %w", err)
	}
	defer attach.Close()

	stdout := executor.NewSink(e.config.stdoutLimit())
	stderr := executor.NewSink(stderrLimit)

	done := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(stdout, stderr, attach.Reader)
		done <- err
	}()

	var res *executor.ExecutionResult
	select {
	case copyErr := <-done:
		res = decodeResult(stdout.String(), stderr.String(), copyErr)
	case <-runCtx.Done():
		attach.Close()
		if ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			res = executor.TimedOut(req.Timeout)
		} else {
			res = executor.Cancelled()
		}
	}
	stdout.Close()
	stderr.Close()

	elapsed := time.Since(start)
	if res.ExecutionTime == 0 {
		res.ExecutionTime = executor.Seconds(elapsed)
	}

	log.Debug("container execution finished",
		slog.String("container", shortID(containerID)),
		slog.Duration("duration", elapsed),
		slog.Bool("success", res.Success),
		slog.String("error_type", res.ErrorType),
		slog.Int("pool_idle", e.pool.Idle()),
	)
	return res, nil
}

// Validate never needs isolation, so it runs in-process.
func (e *Executor) Validate(ctx context.Context, code string) (*executor.ValidationResult, error) {
	return e.local.Validate(ctx, code)
}

// buildCommand renders the in-container invocation. Code and inputs are
// passed as argv, never through a shell.
func buildCommand(req executor.ExecutionRequest, cfg Config) ([]string, error) {
	inputs := req.InputValues
	if inputs == nil {
		inputs = []any{}
	}
	raw, err := json.Marshal(inputs)
	if err != nil {
		return nil, apperror.ValidationFailed("input_values", "input values must be JSON encodable")
	}

	cmd := []string{
		"puffing", "run", "--json",
		"--timeout", strconv.Itoa(req.Timeout),
		"--max-output", strconv.Itoa(cfg.MaxOutputBytes),
	}
	if cfg.MaxDepth > 0 {
		cmd = append(cmd, "--max-depth", strconv.Itoa(cfg.MaxDepth))
	}
	return append(cmd, "--inputs", string(raw), "-e", req.Code), nil
}

// decodeResult turns the harness's stdout back into a result. Anything other
// than a single JSON document is the sandbox's fault, not the program's.
func decodeResult(stdout, stderr string, copyErr error) *executor.ExecutionResult {
	if errors.Is(copyErr, executor.ErrOutputLimit) {
		return executor.OutputLimitExceeded(copyErr)
	}

	var res executor.ExecutionResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(stdout)), &res); err != nil {
		trace := stderr
		if trace == "" {
			trace = stdout
		}
		return executor.Unexpected(fmt.Errorf("sandbox returned a malformed result: %w", err), trace)
	}
	if !res.Success && res.ErrorType == "" {
		return executor.Unexpected(errors.New("sandbox reported failure without an error kind"), res.Error)
	}
	return &res
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
