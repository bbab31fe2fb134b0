package research

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fedresearch-cli/internal/model"
	"github.com/sells-group/fedresearch-cli/internal/store"
)

// EntityResearcher is the invoker seam; it always returns a profile.
type EntityResearcher interface {
	Invoke(ctx context.Context, e model.Entity) *model.Profile
}

// Options control one batch run.
type Options struct {
	// Delay is the baseline inter-request delay.
	Delay time.Duration

	// MaxDelay caps backoff growth.
	MaxDelay time.Duration

	// AbortAfter is the consecutive-failure abort threshold (0 = default).
	AbortAfter int

	// StopOnError aborts the whole run after the first unexpected error
	// instead of continuing with the next entity.
	StopOnError bool

	// SkipCompleted filters out entities already in the ledger's completed
	// set before starting. Explicit caller choice: a caller may want to
	// re-attempt long-ago successes once the cache window has elapsed.
	SkipCompleted bool

	// CostPerCall is the fixed estimate accumulated per fresh success.
	CostPerCall float64

	// OnResult, when set, is called after each entity finishes. The cmd
	// layer uses it to print per-entity status lines.
	OnResult func(e model.Entity, r EntityResult)
}

// EntityResult is the per-entity outcome handed to OnResult.
type EntityResult struct {
	Key     string
	Outcome Outcome
	Method  model.Method

	// Stored is the method the profile was persisted with. It differs from
	// Method only for cache hits, where Method reads "cached" and Stored
	// keeps the underlying fresh or fallback method.
	Stored model.Method

	Err      error
	Cost     float64
	Duration time.Duration
}

// Orchestrator runs a batch of entities through cache check, research
// invocation, profile persistence, ledger bookkeeping, and adaptive rate
// control. Strictly sequential: one entity in flight at a time, because both
// the research API and the stores rate-limit by caller, and the only
// suspension point is the inter-entity delay.
type Orchestrator struct {
	gateway *Gateway
	invoker EntityResearcher
	writer  store.ProfileStore
	ledger  *Ledger
	sleep   func(ctx context.Context, d time.Duration)
}

// NewOrchestrator composes the engine from its collaborators. All mutable
// run state (delay, error counts) lives in per-run values created inside
// Run, never in package-level state.
func NewOrchestrator(gateway *Gateway, invoker EntityResearcher, writer store.ProfileStore, ledger *Ledger) *Orchestrator {
	return &Orchestrator{
		gateway: gateway,
		invoker: invoker,
		writer:  writer,
		ledger:  ledger,
		sleep:   sleepCtx,
	}
}

// WithSleep replaces the blocking sleep for testing.
func (o *Orchestrator) WithSleep(fn func(ctx context.Context, d time.Duration)) *Orchestrator {
	o.sleep = fn
	return o
}

// Run processes the entities in input order. It always returns a Summary,
// even on early abort or interruption; the ledger is flushed before return
// in every path.
func (o *Orchestrator) Run(ctx context.Context, entities []model.Entity, opts Options) (*model.Summary, error) {
	start := time.Now()
	summary := &model.Summary{
		RunID:   uuid.New().String(),
		Started: start.UTC(),
	}

	if opts.SkipCompleted {
		var kept []model.Entity
		for _, e := range entities {
			if o.ledger.Completed(e.Key()) {
				summary.Skipped++
				continue
			}
			kept = append(kept, e)
		}
		entities = kept
	}
	summary.Total = len(entities) + summary.Skipped

	controller := NewController(opts.Delay, opts.MaxDelay, opts.AbortAfter)
	log := zap.L().With(zap.String("run_id", summary.RunID))

	// Partial progress must never be lost, including on panic or interrupt.
	defer func() {
		if err := o.ledger.Persist(); err != nil {
			log.Error("run: final ledger persist failed", zap.Error(err))
		}
	}()

	log.Info("run: starting batch",
		zap.Int("entities", len(entities)),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("delay", opts.Delay),
	)

	for i, entity := range entities {
		if ctx.Err() != nil {
			log.Warn("run: interrupted, flushing ledger", zap.Int("remaining", len(entities)-i))
			break
		}

		res := o.processOne(ctx, entity, opts.CostPerCall)

		switch res.Outcome {
		case OutcomeSuccess:
			if res.Method == model.MethodCached {
				summary.Cached++
				// A cached fallback is servable but stays uncompleted in
				// the ledger so a later run retries it.
				if res.Stored == model.MethodFallback {
					break
				}
			} else {
				summary.Researched++
				summary.TotalCost += res.Cost
			}
			o.ledger.MarkCompleted(res.Key)
			if err := o.ledger.Persist(); err != nil {
				log.Warn("run: ledger persist failed", zap.Error(err))
			}
		case OutcomeFallback:
			summary.Errors++
			o.ledger.MarkFailed(res.Key)
		case OutcomeError:
			summary.Errors++
			o.ledger.MarkFailed(res.Key)
		}

		if opts.OnResult != nil {
			opts.OnResult(entity, res)
		}

		state := controller.Observe(res.Outcome)
		if state == StateAborted {
			summary.Aborted = true
			break
		}
		if res.Outcome == OutcomeError && opts.StopOnError {
			log.Error("run: stopping on first error", zap.String("entity", res.Key), zap.Error(res.Err))
			summary.Aborted = true
			break
		}

		if i < len(entities)-1 {
			o.sleep(ctx, controller.Delay())
		}
	}

	summary.Elapsed = time.Since(start)

	log.Info("run: batch finished",
		zap.Int("researched", summary.Researched),
		zap.Int("cached", summary.Cached),
		zap.Int("errors", summary.Errors),
		zap.Bool("aborted", summary.Aborted),
		zap.Float64("total_cost_usd", summary.TotalCost),
		zap.Duration("elapsed", summary.Elapsed),
	)

	return summary, nil
}

// processOne handles a single entity: cache check, invocation on miss,
// profile write. Unexpected panics are recovered and reported as errors so
// one bad entity cannot take down the batch.
func (o *Orchestrator) processOne(ctx context.Context, entity model.Entity, costPerCall float64) (res EntityResult) {
	start := time.Now()
	res.Key = entity.Key()

	defer func() {
		if r := recover(); r != nil {
			res.Outcome = OutcomeError
			res.Err = eris.Errorf("run: panic processing %s: %v", res.Key, r)
			zap.L().Error("run: recovered panic", zap.String("entity", res.Key), zap.Any("panic", r))
		}
		res.Duration = time.Since(start)
	}()

	if cached, stored, ok := o.gateway.Get(ctx, res.Key); ok {
		res.Outcome = OutcomeSuccess
		res.Method = cached.Method
		res.Stored = stored
		return res
	}

	profile := o.invoker.Invoke(ctx, entity)
	res.Method = profile.Method
	res.Stored = profile.Method

	// Fallback profiles are written too: future cache reads see a recent
	// low-confidence attempt instead of re-triggering full research every
	// run. They are still reported as degraded.
	writeErr := o.writer.Put(ctx, res.Key, profile)

	if profile.IsFallback() {
		res.Outcome = OutcomeFallback
		if writeErr != nil {
			zap.L().Warn("run: fallback profile write failed",
				zap.String("entity", res.Key), zap.Error(writeErr))
		}
		return res
	}

	if writeErr != nil {
		res.Outcome = OutcomeError
		res.Err = eris.Wrapf(writeErr, "run: store profile for %s", res.Key)
		return res
	}

	res.Outcome = OutcomeSuccess
	res.Cost = costPerCall
	return res
}

// sleepCtx blocks for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
