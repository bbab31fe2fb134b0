package main

import (
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/fedresearch-cli/internal/extract"
	"github.com/sells-group/fedresearch-cli/pkg/sam"
)

var (
	fetchDays  int
	fetchNAICS []string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Pull recent opportunities from SAM.gov and extract entities",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.SAM.Key == "" {
			return eris.New("SAM API key is required (FEDRESEARCH_SAM_KEY)")
		}

		st, err := initContacts(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate contacts store")
		}

		client := sam.NewClient(cfg.SAM.Key,
			sam.WithBaseURL(cfg.SAM.BaseURL),
			sam.WithRateLimit(cfg.SAM.RatePerSec),
		)

		days := fetchDays
		if days <= 0 {
			days = cfg.SAM.LookbackDays
		}
		codes := fetchNAICS
		if len(codes) == 0 {
			codes = cfg.SAM.NAICS
		}
		if len(codes) == 0 {
			return eris.New("at least one NAICS code is required (--naics or sam.naics)")
		}

		now := time.Now()
		var notices, created, total atomic.Int64

		// One goroutine per NAICS code; the client's shared limiter keeps the
		// combined request rate under the SAM.gov quota.
		g, gctx := errgroup.WithContext(ctx)
		for _, code := range codes {
			g.Go(func() error {
				q := sam.Query{
					NAICS:      code,
					PostedFrom: now.AddDate(0, 0, -days),
					PostedTo:   now,
					Limit:      cfg.SAM.PageSize,
				}
				return client.SearchAll(gctx, q, func(page *sam.SearchResponse) error {
					notices.Add(int64(len(page.OpportunitiesData)))

					recs := extract.Records(page.OpportunitiesData)
					if len(recs) == 0 {
						return nil
					}
					n, err := st.BulkUpsert(gctx, recs)
					if err != nil {
						return eris.Wrapf(err, "upsert records for naics %s", code)
					}
					created.Add(n)
					total.Add(int64(len(recs)))
					return nil
				})
			})
		}
		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "fetch opportunities")
		}

		zap.L().Info("fetch complete",
			zap.Strings("naics", codes),
			zap.Int("lookback_days", days),
			zap.Int64("notices", notices.Load()),
			zap.Int64("entities", total.Load()),
			zap.Int64("created", created.Load()),
		)
		return nil
	},
}

func init() {
	fetchCmd.Flags().IntVar(&fetchDays, "days", 0, "lookback window in days (default from config)")
	fetchCmd.Flags().StringSliceVar(&fetchNAICS, "naics", nil, "NAICS codes to fetch (default from config)")
	rootCmd.AddCommand(fetchCmd)
}
