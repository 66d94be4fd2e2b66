package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"demos-to-discord/core/internal/app"
	"demos-to-discord/core/internal/serverapp"
)

func NewServeCmd(root *rootOptions) *cobra.Command {
	var listen string
	var psk string
	var webhook string
	var tlsCert string
	var tlsKey string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the report ingest server and demo delivery pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if cmd.Flags().Changed("webhook") {
				cfg.Webhook = webhook
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			srv := serverapp.New(logger, serverapp.Config{PSK: psk, CertFile: tlsCert, KeyFile: tlsKey})
			a, err := app.Build(logger, cfg, srv)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runErr := srv.Run(ctx, listen)
			logger.Info("Shutting down, waiting for running workflows")
			if err := a.Shutdown(); err != nil {
				logger.Warn("Shutdown incomplete", zap.Error(err))
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":8080", "Listen address")
	cmd.Flags().StringVar(&psk, "psk", "", "Pre-shared key required on /v1 endpoints (X-PSK)")
	cmd.Flags().StringVar(&webhook, "webhook", "", "Webhook URL (overrides the config file)")
	cmd.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate (PEM)")
	cmd.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS private key (PEM)")
	return cmd
}
