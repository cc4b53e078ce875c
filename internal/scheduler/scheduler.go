// Package scheduler drains the extraction event log and turns it into work.
// Each sweep reads unacknowledged events, selects the content a binding still
// has to process, creates work items, and acknowledges the events. The sweep
// is safe to repeat and safe to run on several schedulers at once: work ids
// are deterministic fingerprints, so re-handling an event converges on the
// same rows, and executor assignment is a conditional claim.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/model"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/notify"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/metrics"
)

// Scheduler owns the drain, allocation, and lease-requeue loops.
type Scheduler struct {
	store    *store.Store
	notifier *notify.Notifier
	metrics  *metrics.Metrics
	cfg      config.SchedulerConfig
	logger   *slog.Logger
}

// New creates a Scheduler. notifier and m may be nil.
func New(st *store.Store, notifier *notify.Notifier, m *metrics.Metrics, cfg config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		store:    st,
		notifier: notifier,
		metrics:  m,
		cfg:      cfg,
		logger:   slog.Default().With("component", "scheduler"),
	}
}

// Run starts the periodic loops and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.loop(ctx, s.cfg.DrainInterval, s.drainPass) })
	g.Go(func() error { return s.loop(ctx, s.cfg.AllocateInterval, s.allocatePass) })
	g.Go(func() error { return s.loop(ctx, s.cfg.LeaseTimeout/2, s.requeuePass) })
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, pass func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := pass(ctx); err != nil {
				s.logger.Error("scheduler pass failed", "error", err)
			}
		}
	}
}

func (s *Scheduler) drainPass(ctx context.Context) error {
	_, err := s.DrainOnce(ctx)
	return err
}

// DrainOnce reads one batch of unprocessed events, creates the work they
// imply, and acknowledges them. An event whose handling fails is left
// unacknowledged and will be retried on the next sweep; because work ids are
// deterministic, partial progress is harmless. Returns the number of events
// acknowledged.
func (s *Scheduler) DrainOnce(ctx context.Context) (int, error) {
	events, err := s.store.UnprocessedEvents(ctx, s.cfg.MaxEventsPerPass)
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.EventsDrainedTotal.Add(float64(len(events)))
	}

	acked := 0
	for _, event := range events {
		if err := s.handleEvent(ctx, event); err != nil {
			s.logger.Error("event handling failed",
				"event_id", event.ID,
				"type", event.Payload.Type,
				"error", err,
			)
			continue
		}
		if err := s.store.AcknowledgeEvent(ctx, event.ID); err != nil {
			s.logger.Error("event acknowledgment failed", "event_id", event.ID, "error", err)
			continue
		}
		acked++
		if s.metrics != nil {
			s.metrics.EventsAckedTotal.Inc()
		}
	}
	if acked > 0 {
		s.logger.Info("drain pass complete", "events", len(events), "acked", acked)
	}
	return acked, nil
}

// handleEvent fans an event out into work items.
//
// CreateContent: every binding of the repository is checked against the one
// new content item. ExtractorBindingAdded: the one binding is checked against
// all content in the repository.
func (s *Scheduler) handleEvent(ctx context.Context, event model.ExtractionEvent) error {
	switch event.Payload.Type {
	case model.EventCreateContent:
		repo, err := s.store.GetRepository(ctx, event.RepositoryID)
		if err != nil {
			return err
		}
		for _, binding := range repo.Bindings {
			if err := s.createWorkForBinding(ctx, binding, event.Payload.ContentID); err != nil {
				return err
			}
		}
		return nil
	case model.EventBindingAdded:
		binding, err := s.store.BindingByID(ctx, event.Payload.Repository, event.Payload.BindingID)
		if err != nil {
			return err
		}
		return s.createWorkForBinding(ctx, binding, "")
	default:
		return apperrors.Configuration("event %s: unknown payload type %q", event.ID, event.Payload.Type)
	}
}

func (s *Scheduler) createWorkForBinding(ctx context.Context, binding model.ExtractorBinding, contentID string) error {
	candidates, err := s.store.ContentMatchingBinding(ctx, binding.Repository, binding, contentID)
	if err != nil {
		return err
	}
	for _, content := range candidates {
		w := model.NewWork(content.ID, binding.Repository, binding.Extractor, binding.Name, binding.InputParams)
		if err := s.store.CreateWork(ctx, w); err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.WorkCreatedTotal.WithLabelValues(w.Extractor).Inc()
		}
		s.notifier.WorkCreated(ctx, w)
		s.logger.Debug("work created",
			"work_id", w.ID,
			"content_id", w.ContentID,
			"binding", w.Binding,
		)
	}
	return nil
}
