package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"demos-to-discord/core/internal/config"
	"demos-to-discord/core/internal/evidence"
)

func NewInitConfigCmd(root *rootOptions) *cobra.Command {
	var path string
	var force bool

	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a config file with default values",
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = root.configPath
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			data, err := config.Marshal(path, config.Default())
			if err != nil {
				return err
			}
			if err := evidence.WriteFileAtomic(path, data, 0o600); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Destination file (default: --config)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
