// cmd/service/main.go
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"snapdocs/internal/config"
	"snapdocs/internal/database"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("Application error", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "snapdocs",
		Short:         "Pull request sync and documentation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), migrateCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server, queue workers and scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, _ := newLogger()
			dbURL, err := config.LoadDBURL()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if err := database.Migrate(dbURL); err != nil {
				return fmt.Errorf("failed to run database migrations: %w", err)
			}
			logger.Info("Database migrations applied successfully")
			return nil
		},
	}
}

// newLogger installs the JSON logger as the default and returns its level.
func newLogger() (*slog.Logger, *slog.LevelVar) {
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, logLevel
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
