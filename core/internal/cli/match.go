package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"demos-to-discord/demos"
	"demos-to-discord/host"
)

var atLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02T15:04"}

func NewMatchCmd(root *rootOptions) *cobra.Command {
	var game string
	var mapName string
	var mode string
	var at string
	var dir string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Show which demo a report would be matched to",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			family := host.NormalizeGame(game)
			kind, ok := demos.KindFor(family)
			if !ok {
				return fmt.Errorf("unsupported game %q (want T5 or T6)", game)
			}
			if dir == "" {
				dir, _ = cfg.DemoPath(family)
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			reportedAt, err := parseAt(at, loc)
			if err != nil {
				return err
			}

			rc := demos.ReportContext{
				RunID:      uuid.NewString(),
				Game:       family,
				Map:        mapName,
				Mode:       mode,
				ReportedAt: reportedAt,
			}
			cand, found, err := demos.NewMatcher(logger, cfg.Lookback(), loc).Match(dir, rc, kind)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"found": found, "candidate": cand})
			}
			if !found {
				fmt.Fprintln(out, "no match")
				return nil
			}
			fmt.Fprintf(out, "%s (started %s, modified %s, %d bytes)\n",
				cand.Path, cand.Meta.Start.Format(time.RFC3339), cand.ModTime.Format(time.RFC3339), cand.SizeBytes)
			if cand.SidecarPath != "" {
				fmt.Fprintf(out, "sidecar: %s\n", cand.SidecarPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&game, "game", "T6", "Game family (T5|T6)")
	cmd.Flags().StringVar(&mapName, "map", "", "Map name at report time")
	cmd.Flags().StringVar(&mode, "mode", "", "Mode name at report time (empty accepts any)")
	cmd.Flags().StringVar(&at, "at", "", "Report time, RFC 3339 or \"YYYY-MM-DD HH:MM\" (default: now)")
	cmd.Flags().StringVar(&dir, "dir", "", "Demo directory (default: from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	_ = cmd.MarkFlagRequired("map")
	return cmd
}

// parseAt reads a report time. Layouts without a zone are taken in loc.
func parseAt(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	for _, layout := range atLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --at %q", s)
}
