package cli

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"demos-to-discord/core/internal/config"
	"demos-to-discord/core/internal/logging"
	"demos-to-discord/core/internal/version"
)

type rootOptions struct {
	configPath string
	debug      bool
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "demos-to-discord",
		Short:         "Match player reports to server demos and post them to a Discord webhook",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultFileName, "Config file (.json, .jsonc, .yaml)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(NewServeCmd(opts))
	cmd.AddCommand(NewMatchCmd(opts))
	cmd.AddCommand(NewPingCmd(opts))
	cmd.AddCommand(NewInitConfigCmd(opts))
	cmd.AddCommand(NewVersionCmd())

	cmd.SetVersionTemplate(fmt.Sprintf("%s (%s/%s)\n", version.Version, runtime.GOOS, runtime.GOARCH))
	cmd.Version = version.Version

	return cmd
}

// load reads the config file and builds the logger. A missing file is not
// fatal: the defaults are used and a warning is logged.
func (o *rootOptions) load() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	missing := errors.Is(err, config.ErrNoConfig)
	if err != nil && !missing {
		return config.Config{}, nil, err
	}
	if o.debug {
		cfg.Debug = true
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("build logger: %w", err)
	}
	if missing {
		logger.Warn("Config file not found, using defaults", zap.String("path", o.configPath))
	}
	return cfg, logger, nil
}
