// Command server runs the MindFlow API.
//
//	mindflow [-c config.yaml] [-p 8080]
//
// Configuration comes from struct defaults, the optional YAML file and the
// environment (PORT, DB_PATH, DATABASE_DSN, JWT_SECRET, PERPLEXITY_API_KEY),
// in that order. --port overrides all of them.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/mindflow/internal/config"
	"github.com/sakif/mindflow/internal/server"
)

type flags struct {
	config string
	port   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := new(flags)

	cmd := &cobra.Command{
		Use:           "mindflow",
		Short:         "MindFlow second-brain API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(f)
		},
	}
	cmd.Flags().StringVarP(&f.config, "config", "c", "", "path to a YAML config file")
	cmd.Flags().StringVarP(&f.port, "port", "p", "", "listen port (overrides config and PORT)")
	return cmd
}

func run(f *flags) error {
	// bootstrap logger until the configured one exists
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := loadConfig(f)
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		return err
	}

	logger = newLogger(cfg.Log)

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		return err
	}

	// Start blocks until SIGINT/SIGTERM
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// loadConfig applies flag overrides on top of config.Load and validates
// the result again, so a bad flag fails here rather than at listen time.
func loadConfig(f *flags) (*config.Config, error) {
	cfg, err := config.Load(f.config)
	if err != nil {
		return nil, err
	}
	if f.port != "" {
		cfg.Server.Port = f.port
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(c config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
