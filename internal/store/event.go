package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/model"
	apperrors "github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/errors"
)

// insertEventTx appends an extraction event inside the transaction of the
// fact it announces.
func insertEventTx(ctx context.Context, tx *sql.Tx, event model.ExtractionEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshaling event payload: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO extraction_events (id, repository_id, payload) VALUES ($1, $2, $3)`,
		event.ID, event.RepositoryID, payload,
	); err != nil {
		return fmt.Errorf("inserting extraction event %s: %w", event.ID, err)
	}
	return nil
}

// UnprocessedEvents returns up to limit events that have not been
// acknowledged, in no guaranteed order across unrelated facts. A consumer
// may read an event, crash before acknowledging, and read it again on
// recovery; downstream handling must be idempotent (work creation is, by
// deterministic work ids). limit <= 0 means no limit.
func (s *Store) UnprocessedEvents(ctx context.Context, limit int) ([]model.ExtractionEvent, error) {
	query := `SELECT id, repository_id, payload FROM extraction_events WHERE processed_at IS NULL`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Store("listing unprocessed events", err)
	}
	defer rows.Close()

	var events []model.ExtractionEvent
	for rows.Next() {
		var e model.ExtractionEvent
		var payload []byte
		if err := rows.Scan(&e.ID, &e.RepositoryID, &payload); err != nil {
			return nil, apperrors.Store("scanning event row", err)
		}
		p, err := model.DecodeEventPayload(payload)
		if err != nil {
			return nil, apperrors.Configuration("event %s: %v", e.ID, err)
		}
		e.Payload = p
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Store("listing unprocessed events", err)
	}
	return events, nil
}

// AcknowledgeEvent marks an event processed. Acknowledging twice is harmless:
// the timestamp is set only on the first call, and the event stays terminal.
func (s *Store) AcknowledgeEvent(ctx context.Context, eventID string) error {
	_, err := s.db.DB.ExecContext(ctx,
		`UPDATE extraction_events SET processed_at = NOW()
		 WHERE id = $1 AND processed_at IS NULL`,
		eventID,
	)
	if err != nil {
		return apperrors.Store("acknowledging event", err)
	}
	return nil
}

// AddTimelineEvents records application timeline events for a repository.
// Duplicate ids are silently absorbed.
func (s *Store) AddTimelineEvents(ctx context.Context, repository string, events []model.TimelineEvent) error {
	for _, e := range events {
		metadata, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling timeline event metadata: %w", err)
		}
		if _, err := s.db.DB.ExecContext(ctx,
			`INSERT INTO timeline_events (id, repository_id, message, unix_timestamp, metadata)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO NOTHING`,
			e.ID, repository, e.Message, e.UnixTimestamp, metadata,
		); err != nil {
			return apperrors.Store("adding timeline event", err)
		}
	}
	return nil
}

// ListTimelineEvents returns all timeline events for a repository.
func (s *Store) ListTimelineEvents(ctx context.Context, repository string) ([]model.TimelineEvent, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, message, unix_timestamp, metadata FROM timeline_events
		 WHERE repository_id = $1 ORDER BY unix_timestamp`,
		repository,
	)
	if err != nil {
		return nil, apperrors.Store("listing timeline events", err)
	}
	defer rows.Close()

	var events []model.TimelineEvent
	for rows.Next() {
		var e model.TimelineEvent
		var metadata []byte
		if err := rows.Scan(&e.ID, &e.Message, &e.UnixTimestamp, &metadata); err != nil {
			return nil, apperrors.Store("scanning timeline event", err)
		}
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return nil, apperrors.Configuration("timeline event %s: unreadable metadata: %v", e.ID, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
