package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"ticket-market/config"
	"ticket-market/internal/expiration"
)

func sweepCmd() *cobra.Command {
	var batch int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire overdue orders once and print the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			sw := expiration.NewSweeper(a.orders, cfg.SweepInterval, a.sources, expiration.WithBatch(batch))
			res, err := sw.RunOnce(cmd.Context())
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(res); encErr != nil {
				return encErr
			}
			return err
		},
	}
	cmd.Flags().IntVar(&batch, "batch", 500, "maximum orders taken from each source")
	return cmd
}
