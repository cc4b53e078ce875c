// Package executor runs the work-pulling extraction loop. A runner
// heartbeats its lease, polls the store for work assigned to it, and drives
// each item through the state machine: InProgress while the extractor runs,
// then Completed with the extracted attributes stored and the content's
// completion marker set, or Failed when extraction errors.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/model"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/notify"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/config"
)

// Extractor turns one content payload into structured attributes. The
// returned document is stored under the extractor's attribute index.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, content model.ContentPayload, params json.RawMessage) (json.RawMessage, error)
}

// Runner is one executor process: a lease, a poll loop, and an extractor.
type Runner struct {
	store     *store.Store
	notifier  *notify.Notifier
	extractor Extractor
	cfg       config.ExecutorConfig
	nudge     chan struct{}
	logger    *slog.Logger
}

// New creates a Runner. notifier may be nil.
func New(st *store.Store, notifier *notify.Notifier, extractor Extractor, cfg config.ExecutorConfig) *Runner {
	return &Runner{
		store:     st,
		notifier:  notifier,
		extractor: extractor,
		cfg:       cfg,
		nudge:     make(chan struct{}, 1),
		logger:    slog.Default().With("component", "executor", "executor_id", cfg.ID),
	}
}

// Nudge asks the runner to poll now instead of waiting for the next tick.
// The queue in the store stays authoritative; a lost or duplicate nudge
// changes nothing except latency.
func (r *Runner) Nudge() {
	select {
	case r.nudge <- struct{}{}:
	default:
	}
}

// Run heartbeats and polls until ctx is cancelled. The first heartbeat is
// sent before polling starts so the allocator can see the executor
// immediately.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.heartbeat(ctx); err != nil {
		return fmt.Errorf("initial heartbeat: %w", err)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.heartbeatLoop(ctx) })
	g.Go(func() error { return r.pollLoop(ctx) })
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (r *Runner) heartbeatLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.heartbeat(ctx); err != nil {
				r.logger.Error("heartbeat failed", "error", err)
			}
		}
	}
}

// pollLoop polls on a ticker and on nudges. A nudge only shortens the wait;
// every pass reads the authoritative queue.
func (r *Runner) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-r.nudge:
		}
		if err := r.pollPass(ctx); err != nil {
			r.logger.Error("poll pass failed", "error", err)
		}
	}
}

func (r *Runner) heartbeat(ctx context.Context) error {
	return r.store.HeartbeatExecutor(ctx, r.cfg.ID, r.extractor.Name(), r.cfg.Addr)
}

func (r *Runner) pollPass(ctx context.Context) error {
	_, err := r.PollOnce(ctx)
	return err
}

// PollOnce fetches the runner's pending work and processes each item.
// Per-item failures mark that item Failed and do not stop the batch.
// Returns the number of items that completed.
func (r *Runner) PollOnce(ctx context.Context) (int, error) {
	items, err := r.store.WorkForExecutor(ctx, r.cfg.ID)
	if err != nil {
		return 0, err
	}
	completed := 0
	for _, w := range items {
		if err := r.process(ctx, w); err != nil {
			r.logger.Error("work failed", "work_id", w.ID, "error", err)
			continue
		}
		completed++
	}
	return completed, nil
}

// process drives one work item to a terminal state. The InProgress claim is
// conditional in the store; if another runner or a requeue got there first,
// the transition error aborts before any extraction runs.
func (r *Runner) process(ctx context.Context, w model.Work) error {
	claimed, err := r.store.TransitionWorkState(ctx, w.ID, model.WorkInProgress)
	if err != nil {
		return fmt.Errorf("claiming work: %w", err)
	}

	content, err := r.store.GetContent(ctx, claimed.RepositoryID, claimed.ContentID)
	if err != nil {
		return r.fail(ctx, claimed, fmt.Errorf("loading content: %w", err))
	}

	attrs, err := r.extractor.Extract(ctx, content, claimed.ExtractorParams)
	if err != nil {
		return r.fail(ctx, claimed, fmt.Errorf("extracting: %w", err))
	}

	if len(attrs) > 0 {
		doc := model.NewExtractedAttributes(claimed.ContentID, claimed.Extractor, attrs)
		indexName := claimed.RepositoryID + "/" + claimed.Extractor
		if err := r.store.UpsertAttributes(ctx, claimed.RepositoryID, indexName, doc); err != nil {
			return r.fail(ctx, claimed, fmt.Errorf("storing attributes: %w", err))
		}
	}
	if err := r.store.MarkContentProcessed(ctx, claimed.ContentID, claimed.Binding); err != nil {
		return r.fail(ctx, claimed, fmt.Errorf("marking content processed: %w", err))
	}

	done, err := r.store.TransitionWorkState(ctx, claimed.ID, model.WorkCompleted)
	if err != nil {
		return fmt.Errorf("completing work: %w", err)
	}
	r.notifier.WorkFinished(ctx, done)
	r.logger.Info("work completed", "work_id", done.ID, "content_id", done.ContentID)
	return nil
}

// fail moves the work to Failed and reports the original cause. The content
// completion marker is not set, so a future binding sweep can re-derive the
// work after the underlying problem is fixed.
func (r *Runner) fail(ctx context.Context, w model.Work, cause error) error {
	failed, err := r.store.TransitionWorkState(ctx, w.ID, model.WorkFailed)
	if err != nil {
		return errors.Join(cause, fmt.Errorf("marking work failed: %w", err))
	}
	r.notifier.WorkFinished(ctx, failed)
	return cause
}
