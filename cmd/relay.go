package cmd

import (
	"github.com/spf13/cobra"

	"ticket-market/config"
	"ticket-market/internal/relay"
)

func relayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Run the browser-facing session relay in front of the API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			up, err := relay.NewUpstream(cfg.UpstreamURL, 0)
			if err != nil {
				return err
			}
			r := relay.New(up, cfg.IsProduction())
			return serveHTTP(cmd.Context(), "relay", ":"+cfg.RelayPort, relay.NewServer(r, up.URL()))()
		},
	}
}
