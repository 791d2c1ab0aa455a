package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// ExitError carries a process exit code out of a command without printing
// anything further.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

// NewRootCmd builds the command tree. Each call returns fresh flag state.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "puffing",
		Short: "Run and check Puffing programs",
		Long: `puffing is the command-line harness for the Puffing language.

  Run a file:
    puffing run hello.puff

  Run inline code with input values, printing a JSON result:
    puffing run --json --inputs '["ada"]' -e 'print("hi " + input());'

  Check syntax without running:
    puffing check hello.puff

  Register an API client for the HTTP server:
    puffing client create --name ci-bot`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd(), newCheckCmd(), newClientCmd())
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	err := root.Execute()
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	return 2
}

// cliLogger only surfaces warnings; the CLI's real output is on stdout.
func cliLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// readSource returns inline code when given, otherwise the file named by
// the single positional argument ("-" reads stdin).
func readSource(cmd *cobra.Command, inline string, args []string) (string, error) {
	if inline != "" {
		if len(args) > 0 {
			return "", errors.New("pass either a file or -e, not both")
		}
		return inline, nil
	}
	if len(args) != 1 {
		return "", errors.New("a source file or -e CODE is required")
	}
	if args[0] == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(b), nil
}
