package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ticket-market/config"
	"ticket-market/internal/store"
	"ticket-market/migrations"
)

func migrateCmd() *cobra.Command {
	var down int
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations, or revert the last N with --down",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer st.Close()

			var files []string
			if down > 0 {
				files, err = migrations.Revert(cmd.Context(), st.DB(), down)
			} else {
				files, err = migrations.Run(cmd.Context(), st.DB())
			}
			if err != nil {
				return err
			}

			verb := "applied"
			if down > 0 {
				verb = "reverted"
			}
			if len(files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to do")
			}
			for _, f := range files {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, f)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&down, "down", 0, "revert the last N migrations")
	return cmd
}
