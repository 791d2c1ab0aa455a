package cmd

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sakif/puffing-runner/internal/executor"
	"github.com/sakif/puffing-runner/internal/executor/local"
)

type runOptions struct {
	code      string
	asJSON    bool
	timeout   int
	inputs    string
	maxOutput int
	maxDepth  int
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Execute a program under a timeout",
		Long: `Execute a program under a wall-clock timeout.

Output goes to stdout; a failure is printed to stderr and exits 1. With
--json a single result document is printed instead, exiting 0 only when
the program succeeded.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readSource(cmd, opts.code, args)
			if err != nil {
				return err
			}
			return runProgram(cmd, code, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.code, "eval", "e", "", "program source to run instead of a file")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the execution result as JSON")
	cmd.Flags().IntVar(&opts.timeout, "timeout", executor.DefaultTimeout, "timeout in seconds")
	cmd.Flags().StringVar(&opts.inputs, "inputs", "", `input values as a JSON array, e.g. '["ada", 3]'`)
	cmd.Flags().IntVar(&opts.maxOutput, "max-output", local.DefaultConfig().MaxOutputBytes, "output cap in bytes (0 = unlimited)")
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", 0, "call depth cap (0 = interpreter default)")
	return cmd
}

func runProgram(cmd *cobra.Command, code string, opts *runOptions) error {
	var inputs []any
	if opts.inputs != "" {
		if err := json.Unmarshal([]byte(opts.inputs), &inputs); err != nil {
			return fmt.Errorf("--inputs must be a JSON array: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exec := local.New(local.Config{MaxOutputBytes: opts.maxOutput, MaxDepth: opts.maxDepth}, cliLogger(cmd.ErrOrStderr()))
	res, err := exec.Execute(ctx, executor.ExecutionRequest{
		Code:        code,
		Timeout:     opts.timeout,
		InputValues: inputs,
	})
	if err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		// keeps the document close to the output size; the docker backend caps it
		enc.SetEscapeHTML(false)
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else if res.Success {
		fmt.Fprint(cmd.OutOrStdout(), res.Output)
		if res.Output != "" && res.Output[len(res.Output)-1] != '\n' {
			fmt.Fprintln(cmd.OutOrStdout())
		}
	} else {
		fmt.Fprintln(cmd.ErrOrStderr(), res.Error)
	}

	if !res.Success {
		return &ExitError{Code: 1}
	}
	return nil
}
