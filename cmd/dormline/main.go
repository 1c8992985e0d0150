package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dormline/dormline/internal/config"
	"github.com/dormline/dormline/internal/db"
)

func main() {
	root := &cobra.Command{
		Use:           "dormline",
		Short:         "Conversational campus marketplace over messaging webhooks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), migrateCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server and background jobs",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

// migrateCmd applies schema migrations and exits. serve applies them too on
// startup; this exists for deploy pipelines that migrate before rollout.
func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return db.Migrate(cfg.Postgres)
		},
	}
}
