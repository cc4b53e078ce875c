// Package notify publishes non-authoritative coordination notifications to
// Kafka for external observers (dashboards, audit pipelines). The durable
// store remains the single source of truth: the scheduler drains the
// extraction event log from Postgres, never from these topics, and a failed
// publish is logged but does not fail the operation it annotates.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/model"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/kafka"
)

// ContentIngestedNote is published after content rows land in the store.
type ContentIngestedNote struct {
	Repository  string    `json:"repository"`
	ContentID   string    `json:"content_id"`
	PayloadType string    `json:"payload_type"`
	ContentType string    `json:"content_type"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// WorkNote is published when work is created or reaches a terminal state.
type WorkNote struct {
	WorkID     string    `json:"work_id"`
	Repository string    `json:"repository"`
	ContentID  string    `json:"content_id"`
	Extractor  string    `json:"extractor"`
	Binding    string    `json:"binding"`
	State      string    `json:"state"`
	At         time.Time `json:"at"`
}

// Notifier publishes notifications on the configured topics. A nil Notifier
// is valid and publishes nothing, so services can run without Kafka.
type Notifier struct {
	content  *kafka.Producer
	created  *kafka.Producer
	finished *kafka.Producer
	logger   *slog.Logger
}

// New creates a Notifier over the given producers; any producer may be nil.
func New(content, created, finished *kafka.Producer) *Notifier {
	return &Notifier{
		content:  content,
		created:  created,
		finished: finished,
		logger:   slog.Default().With("component", "notifier"),
	}
}

// ContentIngested announces freshly ingested content payloads.
func (n *Notifier) ContentIngested(ctx context.Context, repository string, payloads []model.ContentPayload) {
	if n == nil || n.content == nil || len(payloads) == 0 {
		return
	}
	events := make([]kafka.Event, 0, len(payloads))
	now := time.Now().UTC()
	for _, p := range payloads {
		events = append(events, kafka.Event{
			Key: p.ID,
			Value: ContentIngestedNote{
				Repository:  repository,
				ContentID:   p.ID,
				PayloadType: string(p.PayloadType),
				ContentType: p.ContentType,
				IngestedAt:  now,
			},
		})
	}
	if err := n.content.PublishBatch(ctx, events); err != nil {
		n.logger.Warn("content notification failed", "repository", repository, "error", err)
	}
}

// WorkCreated announces a newly created work item.
func (n *Notifier) WorkCreated(ctx context.Context, w model.Work) {
	n.publishWork(ctx, n.created, w)
}

// WorkFinished announces a work item reaching a terminal state.
func (n *Notifier) WorkFinished(ctx context.Context, w model.Work) {
	n.publishWork(ctx, n.finished, w)
}

func (n *Notifier) publishWork(ctx context.Context, p *kafka.Producer, w model.Work) {
	if n == nil || p == nil {
		return
	}
	err := p.Publish(ctx, kafka.Event{
		Key: w.ID,
		Value: WorkNote{
			WorkID:     w.ID,
			Repository: w.RepositoryID,
			ContentID:  w.ContentID,
			Extractor:  w.Extractor,
			Binding:    w.Binding,
			State:      string(w.State),
			At:         time.Now().UTC(),
		},
	})
	if err != nil {
		n.logger.Warn("work notification failed", "work_id", w.ID, "error", err)
	}
}
