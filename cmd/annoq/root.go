package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/USCbiostats/annoq-api-v2/internal/config"
	logpkg "github.com/USCbiostats/annoq-api-v2/internal/logger"
)

// globalOptions are the persistent flags every subcommand reads.
type globalOptions struct {
	env        string
	configPath string
}

// Execute is the entry point for the CLI, extracted for testing.
func Execute(version string, args []string) error {
	root := newRootCmd(version)
	root.SetArgs(args)
	return root.Execute()
}

func newRootCmd(version string) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:          "annoq",
		Short:        "AnnoQ SNP annotation query service",
		Long:         "Query, count, page and export annotated SNP records stored in a search engine.",
		Version:      version,
		SilenceUsage: true,
	}
	root.SetVersionTemplate(`{{.Version}}
`)

	root.PersistentFlags().StringVar(&opts.env, "env", config.GetEnv(), "environment name; selects config/<env>.yaml")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "explicit config file path (overrides --env)")

	root.AddCommand(
		newServeCmd(opts),
		newExportCmd(opts),
		newAttributesCmd(opts),
		newIndexCmd(opts),
	)
	return root
}

// load reads configuration and builds the logger for a subcommand.
func (o *globalOptions) load() (config.Config, *zap.Logger, error) {
	var (
		cfg config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load(o.env)
	}
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(o.env, cfg.Logging.Level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}

// withApp loads configuration, wires the app and runs fn, releasing everything afterwards.
func (o *globalOptions) withApp(ctx context.Context, fn func(*app) error) error {
	cfg, logger, err := o.load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
