package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/AnshRaj112/agentdesk-backend/internal/config"
	"github.com/AnshRaj112/agentdesk-backend/internal/logger"
)

// cfg is loaded once by the root command before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "agentdesk",
	Short: "AgentDesk API server",
	Long: `agentdesk serves the AgentDesk API: accounts and sessions, Twitter
account linking, and the YouTube, research and Twitter agents.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			slog.Info("No .env file found")
		}
		c, err := config.Load()
		if err != nil {
			return err
		}
		cfg = c
		logger.SetupDefault(os.Stdout, cfg.IsProduction())
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func main() {
	rootCmd.AddCommand(serveCmd, migrateCmd, indexesCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
