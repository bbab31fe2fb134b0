package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fedresearch-cli/internal/contacts"
	"github.com/sells-group/fedresearch-cli/internal/cost"
	"github.com/sells-group/fedresearch-cli/internal/model"
	"github.com/sells-group/fedresearch-cli/internal/research"
	anthropicpkg "github.com/sells-group/fedresearch-cli/pkg/anthropic"
)

var (
	researchAll         bool
	researchLimit       int
	researchFilter      string
	researchKind        string
	researchSkipDone    bool
	researchDelay       float64
	researchStopOnError bool
	researchDryRun      bool
)

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Research stored entities and cache their profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		// SIGINT finishes the in-flight entity, flushes the ledger, and still
		// prints a summary.
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if !researchAll && researchLimit <= 0 {
			return eris.New("specify --all or --limit N")
		}

		st, err := initContacts(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate contacts store")
		}

		records, err := st.List(ctx, contacts.Filter{
			Kind:     model.EntityKind(researchKind),
			Contains: researchFilter,
			Limit:    researchLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list entities")
		}
		if len(records) == 0 {
			fmt.Println("no entities match")
			return nil
		}

		entities := make([]model.Entity, len(records))
		for i, r := range records {
			entities[i] = r.Entity()
		}

		if researchDryRun {
			calc := cost.NewCalculator(cost.DefaultRates())
			fmt.Printf("%d entities selected; worst-case spend $%.3f at $%.3f/call\n",
				len(entities), calc.Projection(len(entities)), calc.PerCall())
			return nil
		}

		profiles, err := initProfileStore(ctx)
		if err != nil {
			return err
		}
		defer profiles.Close()

		gateway := research.NewGateway(profiles,
			time.Duration(cfg.Research.FreshnessDays)*24*time.Hour)

		var focus *research.Focus
		if cfg.Research.FocusPath != "" {
			focus, err = research.LoadFocus(cfg.Research.FocusPath)
			if err != nil {
				return eris.Wrap(err, "load research focus")
			}
		}

		var client anthropicpkg.Client
		if cfg.Anthropic.Key != "" {
			client = anthropicpkg.NewClient(cfg.Anthropic.Key)
		} else {
			zap.L().Warn("no Anthropic key configured; entities will get fallback profiles")
		}

		invoker := research.NewInvoker(client, research.InvokerOpts{
			Model:         cfg.Anthropic.Model,
			MaxTokens:     int64(cfg.Anthropic.MaxTokens),
			MaxSearchUses: int64(cfg.Anthropic.MaxSearchUses),
			Timeout:       time.Duration(cfg.Research.TimeoutSecs) * time.Second,
			Focus:         focus,
		})

		ledger := research.LoadLedger(cfg.Research.LedgerPath)
		orch := research.NewOrchestrator(gateway, invoker, profiles, ledger)

		delay := researchDelay
		if delay <= 0 {
			delay = cfg.Research.DelaySecs
		}

		summary, err := orch.Run(ctx, entities, research.Options{
			Delay:         time.Duration(delay * float64(time.Second)),
			MaxDelay:      time.Duration(cfg.Research.MaxDelaySecs * float64(time.Second)),
			AbortAfter:    cfg.Research.AbortAfter,
			StopOnError:   researchStopOnError,
			SkipCompleted: researchSkipDone,
			CostPerCall:   cfg.Research.CostPerCall,
			OnResult:      printResult,
		})
		if err != nil {
			return eris.Wrap(err, "run batch")
		}

		printSummary(summary)
		if path, err := writeSummary(summary); err != nil {
			zap.L().Warn("summary file write failed", zap.Error(err))
		} else {
			fmt.Printf("summary written to %s\n", path)
		}

		// Per-entity failures are reported in the summary, not the exit code;
		// only setup problems abort with an error.
		return nil
	},
}

// printResult writes one status line per entity as the batch progresses.
func printResult(e model.Entity, r research.EntityResult) {
	var glyph, note string
	switch {
	case r.Outcome == research.OutcomeSuccess && r.Method == model.MethodCached:
		glyph, note = "=", "cached"
	case r.Outcome == research.OutcomeSuccess:
		glyph, note = "+", fmt.Sprintf("researched in %s", r.Duration.Round(100*time.Millisecond))
	case r.Outcome == research.OutcomeFallback:
		glyph, note = "~", "fallback profile"
	default:
		glyph, note = "x", "error"
		if r.Err != nil {
			note = "error: " + r.Err.Error()
		}
	}
	fmt.Printf("%s %-50s %s\n", glyph, e.Key(), note)
}

func printSummary(s *model.Summary) {
	fmt.Printf("\nrun %s finished in %s\n", s.RunID, s.Elapsed.Round(time.Second))
	fmt.Printf("  total      %d\n", s.Total)
	fmt.Printf("  researched %d\n", s.Researched)
	fmt.Printf("  cached     %d\n", s.Cached)
	fmt.Printf("  errors     %d\n", s.Errors)
	fmt.Printf("  skipped    %d\n", s.Skipped)
	fmt.Printf("  est. cost  $%.3f\n", s.TotalCost)
	if s.Aborted {
		fmt.Println("  run aborted early")
	}
}

// writeSummary saves the run summary as a timestamped JSON file.
func writeSummary(s *model.Summary) (string, error) {
	dir := cfg.Research.SummaryDir
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, fmt.Sprintf("research_summary_%s.json", s.Started.Format("20060102_150405")))

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "marshal summary")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrap(err, "write summary")
	}
	return path, nil
}

func init() {
	researchCmd.Flags().BoolVar(&researchAll, "all", false, "research every stored entity")
	researchCmd.Flags().IntVar(&researchLimit, "limit", 0, "research at most N entities")
	researchCmd.Flags().StringVar(&researchFilter, "filter", "", "substring match on name or organization")
	researchCmd.Flags().StringVar(&researchKind, "kind", "", "restrict to 'contact' or 'organization'")
	researchCmd.Flags().BoolVar(&researchSkipDone, "skip-cached", false, "skip entities already completed in the ledger")
	researchCmd.Flags().Float64Var(&researchDelay, "delay", 0, "baseline delay between entities in seconds (default from config)")
	researchCmd.Flags().BoolVar(&researchStopOnError, "stop-on-error", false, "abort the batch on the first unexpected error")
	researchCmd.Flags().BoolVar(&researchDryRun, "dry-run", false, "print selection and cost projection without researching")
	rootCmd.AddCommand(researchCmd)
}
