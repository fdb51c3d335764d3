package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"contentflow/internal/config"
	"contentflow/internal/logging"
	"contentflow/internal/metrics"
	"contentflow/internal/services"
	"contentflow/internal/statemachine"
	"contentflow/internal/store"
	"contentflow/internal/workflow"
)

// Store is the persistence surface the processor needs.
type Store interface {
	GetItemsInBatchState(ctx context.Context, workspaceID, kind, state string, limit int) ([]*store.Item, error)
	TransitionItemState(ctx context.Context, itemID int64, to string) (*store.Item, error)
	GetItemState(ctx context.Context, itemID int64) (*store.ItemState, error)
	RecordRunState(ctx context.Context, run store.Run) error
}

// Workflows resolves workflow ids.
type Workflows interface {
	Get(id string) (workflow.Workflow, error)
}

// Options holds the processor limits.
type Options struct {
	BatchSize           int
	MaxIterations       int
	EmptyIterationLimit int
	EmptyIterationDelay time.Duration
	SkippedBatchDelay   time.Duration
	MaxIterationErrors  int
	MaxErrorRate        float64
	ErrorRateMinItems   int
}

// OptionsFromConfig derives processor options from configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BatchSize:           cfg.Processor.BatchSize,
		MaxIterations:       cfg.Processor.MaxIterations,
		EmptyIterationLimit: cfg.Processor.EmptyIterationLimit,
		EmptyIterationDelay: cfg.EmptyIterationDelay(),
		SkippedBatchDelay:   cfg.SkippedBatchDelay(),
		MaxIterationErrors:  cfg.Processor.MaxIterationErrors,
		MaxErrorRate:        cfg.Processor.MaxErrorRate,
		ErrorRateMinItems:   cfg.Processor.ErrorRateMinItems,
	}
}

// Summary reports the counters of one run.
type Summary struct {
	RunID       string
	Iterations  int
	Processed   int
	Errors      int
	Skipped     int
	ForceFailed int
	Duration    time.Duration
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Processor runs workflows against the store.
type Processor struct {
	store     Store
	workflows Workflows
	opts      Options
	metrics   *metrics.Metrics
	logger    *slog.Logger
	sleep     SleepFunc
	now       func() time.Time
}

// New constructs a processor.
func New(st Store, workflows Workflows, opts Options, m *metrics.Metrics, logger *slog.Logger) *Processor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	return &Processor{
		store:     st,
		workflows: workflows,
		opts:      opts,
		metrics:   m,
		logger:    logging.NewComponentLogger(logger, "processor"),
		sleep:     sleepContext,
		now:       time.Now,
	}
}

// SetSleep replaces the backoff sleep, mainly for tests.
func (p *Processor) SetSleep(fn SleepFunc) {
	if fn != nil {
		p.sleep = fn
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// stateResult holds the counters of one state pass.
type stateResult struct {
	fetched     int
	dispatched  int
	processed   int
	errors      int
	skipped     int
	forceFailed int
}

func (r *stateResult) add(other stateResult) {
	r.fetched += other.fetched
	r.dispatched += other.dispatched
	r.processed += other.processed
	r.errors += other.errors
	r.skipped += other.skipped
	r.forceFailed += other.forceFailed
}

// Run processes workspace items through workflowID until the workspace
// drains or a threshold aborts the run. maxIterations <= 0 uses the
// configured limit.
func (p *Processor) Run(ctx context.Context, workspaceID, workflowID string, maxIterations int) (Summary, error) {
	wf, err := p.workflows.Get(workflowID)
	if err != nil {
		return Summary{}, err
	}
	if maxIterations <= 0 {
		maxIterations = p.opts.MaxIterations
	}

	summary := Summary{RunID: uuid.NewString()}
	started := p.now()
	ctx = services.WithRunID(services.WithWorkflow(services.WithWorkspace(ctx, workspaceID), workflowID), summary.RunID)
	logger := logging.WithContext(ctx, p.logger)

	if err := p.store.RecordRunState(ctx, store.Run{
		ID:          summary.RunID,
		WorkspaceID: workspaceID,
		Workflow:    workflowID,
		Status:      store.RunStarted,
		StartedAt:   started,
	}); err != nil {
		return summary, err
	}
	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("max_iterations", maxIterations),
		logging.Int("batch_size", p.opts.BatchSize),
	)

	runErr := p.loop(ctx, logger, wf, workspaceID, maxIterations, &summary)
	summary.Duration = p.now().Sub(started)
	p.finish(ctx, logger, workspaceID, workflowID, started, &summary, runErr)
	return summary, runErr
}

func (p *Processor) loop(ctx context.Context, logger *slog.Logger, wf workflow.Workflow, workspaceID string, maxIterations int, summary *Summary) error {
	states := wf.Definition().ProcessingStates()
	emptyIterations := 0

	for iteration := 1; ; iteration++ {
		if iteration > maxIterations {
			return &RunError{
				Threshold: ErrMaxIterations,
				RunID:     summary.RunID,
				Iteration: iteration - 1,
				Detail:    fmt.Sprintf("max_iterations=%d", maxIterations),
			}
		}
		summary.Iterations = iteration

		var totals stateResult
		for _, state := range states {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := p.processState(ctx, wf, workspaceID, state)
			summary.Processed += res.processed
			summary.Errors += res.errors
			summary.Skipped += res.skipped
			summary.ForceFailed += res.forceFailed
			if err != nil {
				return err
			}
			totals.add(res)

			if res.fetched > 0 && res.skipped == res.fetched {
				if err := p.sleep(ctx, p.opts.SkippedBatchDelay); err != nil {
					return err
				}
			}
			if err := p.checkErrorBudget(summary.RunID, iteration, totals); err != nil {
				return err
			}
		}

		empty := totals.dispatched == 0
		p.metrics.Iteration(wf.ID(), empty)
		logger.Debug("iteration complete",
			logging.Int("iteration", iteration),
			logging.Int("dispatched", totals.dispatched),
			logging.Int("processed", totals.processed),
			logging.Int("errors", totals.errors),
			logging.Int("skipped", totals.skipped),
			logging.Int("force_failed", totals.forceFailed),
		)

		if !empty {
			emptyIterations = 0
			continue
		}
		emptyIterations++
		if emptyIterations > p.opts.EmptyIterationLimit {
			return nil
		}
		if err := p.sleep(ctx, time.Duration(emptyIterations)*p.opts.EmptyIterationDelay); err != nil {
			return err
		}
	}
}

func (p *Processor) checkErrorBudget(runID string, iteration int, totals stateResult) error {
	if p.opts.MaxIterationErrors > 0 && totals.errors > p.opts.MaxIterationErrors {
		return &RunError{
			Threshold: ErrErrorBudgetExceeded,
			RunID:     runID,
			Iteration: iteration,
			Detail:    fmt.Sprintf("%d errors, max_iteration_errors=%d", totals.errors, p.opts.MaxIterationErrors),
		}
	}
	if p.opts.MaxErrorRate > 0 && totals.dispatched > 0 && totals.dispatched >= p.opts.ErrorRateMinItems {
		rate := float64(totals.errors) / float64(totals.dispatched)
		if rate > p.opts.MaxErrorRate {
			return &RunError{
				Threshold: ErrErrorRateExceeded,
				RunID:     runID,
				Iteration: iteration,
				Detail:    fmt.Sprintf("rate %.2f over %d items, max_error_rate=%.2f", rate, totals.dispatched, p.opts.MaxErrorRate),
			}
		}
	}
	return nil
}

// processState fetches one batch for state and dispatches the eligible items.
func (p *Processor) processState(ctx context.Context, wf workflow.Workflow, workspaceID, state string) (stateResult, error) {
	var res stateResult
	items, err := p.store.GetItemsInBatchState(ctx, workspaceID, wf.Definition().Kind, state, p.opts.BatchSize)
	if err != nil {
		return res, fmt.Errorf("fetch %s batch: %w", state, err)
	}
	res.fetched = len(items)

	batch := make([]*store.Item, 0, len(items))
	for _, item := range items {
		switch {
		case wf.CheckStateUpdatesExceeded(&item.State):
			settled, err := p.forceFail(ctx, item)
			if err != nil {
				return res, err
			}
			if settled {
				res.skipped++
				continue
			}
			res.forceFailed++
			p.metrics.ItemForceFailed(wf.ID(), state)
			logging.WarnWithContext(logging.WithContext(ctx, p.logger), "item exceeded state updates", "item_force_failed",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.String(logging.FieldState, state),
				logging.Int("transition_num", item.State.TransitionNum),
				logging.String(logging.FieldImpact, "item moved to failed"),
				logging.String(logging.FieldErrorHint, "inspect earlier errors for this item and re-ingest with --force"),
			)
		case wf.CheckStateTimeout(&item.State):
			res.skipped++
		default:
			batch = append(batch, item)
		}
	}
	if len(batch) == 0 {
		return res, nil
	}

	start := p.now()
	stateCtx := services.WithState(ctx, state)
	var statuses []workflow.Status
	if wf.IsBatchTransitionFrom(state) {
		status := wf.NextState(stateCtx, batch, state)
		statuses = make([]workflow.Status, len(batch))
		for i := range statuses {
			statuses[i] = status
		}
	} else {
		statuses = p.dispatchEach(stateCtx, wf, batch, state)
	}
	p.metrics.ObserveDispatch(wf.ID(), state, p.now().Sub(start))

	res.dispatched = len(batch)
	for _, status := range statuses {
		switch status {
		case workflow.StatusSuccess:
			res.processed++
		case workflow.StatusSkipped:
			res.skipped++
		default:
			res.errors++
		}
		p.metrics.ItemResult(wf.ID(), state, status.String())
	}
	return res, nil
}

// forceFail moves item to failed. When another processor has already
// finished the item the transition is rejected; settled reports that case so
// the item is counted as skipped.
func (p *Processor) forceFail(ctx context.Context, item *store.Item) (settled bool, err error) {
	_, err = p.store.TransitionItemState(ctx, item.ID, statemachine.StateFailed)
	if err == nil {
		return false, nil
	}
	current, stateErr := p.store.GetItemState(ctx, item.ID)
	if stateErr == nil && current.CurrentState != item.State.CurrentState && statemachine.IsTerminal(current.CurrentState) {
		p.logger.Debug("item settled before force fail",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String(logging.FieldState, current.CurrentState),
		)
		return true, nil
	}
	return false, fmt.Errorf("force fail item %d: %w", item.ID, err)
}

// dispatchEach runs NextState per item on a pool sized to the batch.
func (p *Processor) dispatchEach(ctx context.Context, wf workflow.Workflow, batch []*store.Item, state string) []workflow.Status {
	statuses := make([]workflow.Status, len(batch))
	var g errgroup.Group
	g.SetLimit(p.opts.BatchSize)
	for i, item := range batch {
		g.Go(func() error {
			itemCtx := services.WithItemID(ctx, item.ID)
			statuses[i] = wf.NextState(itemCtx, []*store.Item{item}, state)
			return nil
		})
	}
	_ = g.Wait()
	return statuses
}

func (p *Processor) finish(ctx context.Context, logger *slog.Logger, workspaceID, workflowID string, started time.Time, summary *Summary, runErr error) {
	run := store.Run{
		ID:          summary.RunID,
		WorkspaceID: workspaceID,
		Workflow:    workflowID,
		Status:      store.RunCompleted,
		StartedAt:   started,
		FinishedAt:  p.now(),
		Iterations:  summary.Iterations,
		Processed:   summary.Processed,
		Errors:      summary.Errors,
		Skipped:     summary.Skipped,
		ForceFailed: summary.ForceFailed,
	}
	if secs := summary.Duration.Seconds(); secs > 0 {
		run.ItemsPerSecond = float64(summary.Processed) / secs
	}
	if runErr != nil {
		run.Status = store.RunFailed
		run.ErrorMessage = runErr.Error()
	}

	// The run record must land even when ctx was cancelled.
	recordCtx := context.WithoutCancel(ctx)
	if err := p.store.RecordRunState(recordCtx, run); err != nil {
		logging.WarnWithContext(logger, "failed to record run state", "run_record_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run audit record is stale"),
		)
	}
	p.metrics.Run(workflowID, string(run.Status))

	attrs := []logging.Attr{
		logging.Int("iterations", summary.Iterations),
		logging.Int("processed", summary.Processed),
		logging.Int("errors", summary.Errors),
		logging.Int("skipped", summary.Skipped),
		logging.Int("force_failed", summary.ForceFailed),
		logging.Duration("duration", summary.Duration),
		logging.Float64("items_per_second", run.ItemsPerSecond),
	}
	if runErr == nil {
		logger.Info("run completed", logging.Args(append(attrs, logging.String(logging.FieldEventType, "run_complete"))...)...)
		return
	}
	hint := "inspect item errors before re-running"
	if errors.Is(runErr, ErrMaxIterations) {
		hint = "raise max_iterations or check for items that never leave their state"
	}
	logging.ErrorWithContext(logger, "run failed", "run_failed",
		append(attrs, logging.Error(runErr), logging.String(logging.FieldErrorHint, hint))...,
	)
}
