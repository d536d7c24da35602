package main

import (
	"fmt"
	"io"
	"os"

	"echovia/internal/config"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "echovia",
		Short:         "Self-hosted music streaming server and terminal player",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "./config.toml", "path to the TOML config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newPlayCmd(&configPath),
		newConfigCmd(&configPath),
	)
	return root
}

// loadConfig reads .env (when present) before the config file so secrets
// kept there override the file.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}
	return config.LoadConfig(path)
}

// newLogger builds the process logger from the logging section. The
// returned closer releases the log file, if any.
func newLogger(cfg config.LoggingConfig) (*logrus.Logger, func() error, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	closer := func() error { return nil }
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logger.SetOutput(io.MultiWriter(os.Stderr, f))
		closer = f.Close
	}
	return logger, closer, nil
}
