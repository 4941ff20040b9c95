package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cheerhou/DevoLight/internal/infra/config"
	"github.com/cheerhou/DevoLight/internal/infra/logger"
)

const defaultConfigPath = "config.yaml"

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "devolight",
		Short:         "DevoLight: route devotional messages to persona agents",
		Long:          "devolight picks which persona agents (teacher, historian, mentor, companion) should answer a devotional message, dispatches them, and serves the same routing over HTTP.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $DEVOLIGHT_CONFIG or ./config.yaml)")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newRouteCmd(opts),
		newAgentsCmd(),
		newEncryptCmd(),
		newDoctorCmd(opts),
	)
	return rootCmd
}

// path resolves the config file location: flag, then env, then default.
func (o *rootOptions) path() string {
	if o.configPath != "" {
		return o.configPath
	}
	if p := os.Getenv("DEVOLIGHT_CONFIG"); p != "" {
		return p
	}
	return defaultConfigPath
}

func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.path())
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (o *rootOptions) loadWithLogger() (*config.Config, *slog.Logger, func() error, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, nil, nil, err
	}
	log, closer, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, log, closer, nil
}
