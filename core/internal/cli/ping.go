package cli

import (
	"github.com/spf13/cobra"

	"demos-to-discord/core/internal/version"
	"demos-to-discord/delivery"
)

func NewPingCmd(root *rootOptions) *cobra.Command {
	var webhook string

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Send the startup test message to the webhook",
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

			client := delivery.New(logger, delivery.Config{
				WebhookURL:  cfg.Webhook,
				WebfrontURL: cfg.WebfrontURL,
				Version:     version.Version,
			})
			return client.SendStartup(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&webhook, "webhook", "", "Webhook URL (overrides the config file)")
	return cmd
}
