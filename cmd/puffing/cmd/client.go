package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sakif/puffing-runner/internal/auth"
	sqliteRepo "github.com/sakif/puffing-runner/internal/repository/sqlite"
	"github.com/sakif/puffing-runner/internal/service"
)

func newClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Manage API clients of the HTTP server",
	}
	cmd.AddCommand(newClientCreateCmd())
	return cmd
}

func newClientCreateCmd() *cobra.Command {
	v := viper.New()
	v.SetDefault("db_path", "data/puffing.db")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a client and print its API key",
		Long: `Register a client and print its API key.

The key is shown once. Exchange it for a bearer token with
POST /api/token (header X-API-Key).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dbPath := v.GetString("db_path")
			if dbPath != ":memory:" {
				if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
					return err
				}
			}

			db, err := sqliteRepo.New(dbPath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			svc := service.NewAuthService(db.Clients(), nil, auth.NewKeyService(), cliLogger(cmd.ErrOrStderr()))
			client, key, err := svc.CreateClient(cmd.Context(), name)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "client id: %s\n", client.ID)
			fmt.Fprintf(out, "api key:   %s\n", key)
			fmt.Fprintln(out, "store the key now; it cannot be shown again")
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "client name")
	cmd.Flags().String("db-path", "", "SQLite database path (env DB_PATH)")
	cmd.MarkFlagRequired("name")
	v.BindPFlag("db_path", cmd.Flags().Lookup("db-path"))
	return cmd
}
