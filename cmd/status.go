package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fedresearch-cli/internal/research"
)

var statusShowFailed bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored entities and batch ledger state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initContacts(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate contacts store")
		}

		window := time.Duration(cfg.Research.FreshnessDays) * 24 * time.Hour
		stats, err := st.Stats(ctx, window)
		if err != nil {
			return eris.Wrap(err, "load stats")
		}

		ledger := research.LoadLedger(cfg.Research.LedgerPath)
		completed, failed := ledger.Counts()

		fmt.Printf("entities       %d (%d contacts, %d organizations)\n",
			stats.Total, stats.Contacts, stats.Organizations)
		fmt.Printf("profiled       %d (%d stale, freshness window %dd)\n",
			stats.Profiled, stats.Stale, cfg.Research.FreshnessDays)
		fmt.Printf("ledger         %d completed, %d failed\n", completed, failed)

		if statusShowFailed && failed > 0 {
			_, failedKeys := ledger.Snapshot()
			fmt.Println("\nfailed entities:")
			for _, k := range failedKeys {
				fmt.Printf("  %s\n", k)
			}
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusShowFailed, "failed", false, "list entities with failed attempts")
	rootCmd.AddCommand(statusCmd)
}
