package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sakif/puffing-runner/internal/executor/local"
)

func newCheckCmd() *cobra.Command {
	var (
		code   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "check [file]",
		Short: "Tokenize and parse a program without running it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(cmd, code, args)
			if err != nil {
				return err
			}

			exec := local.New(local.DefaultConfig(), cliLogger(cmd.ErrOrStderr()))
			res, err := exec.Validate(cmd.Context(), src)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetEscapeHTML(false)
				if err := enc.Encode(res); err != nil {
					return err
				}
			} else if res.Valid {
				fmt.Fprintf(cmd.OutOrStdout(), "ok (%d tokens)\n", len(res.Tokens))
			} else {
				fmt.Fprintln(cmd.ErrOrStderr(), res.Error)
			}

			if !res.Valid {
				return &ExitError{Code: 1}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&code, "eval", "e", "", "program source to check instead of a file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the validation result, including tokens, as JSON")
	return cmd
}
