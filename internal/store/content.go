package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/filter"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/model"
	apperrors "github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/errors"
)

// AddContent persists content payloads together with the extraction events
// announcing them, in one transaction: a reader never observes a content row
// without its event, or an event for content that does not exist. Rows whose
// deterministic id already exists are skipped (insert-or-ignore), and no
// event is emitted for them, so re-ingesting identical content is a no-op.
func (s *Store) AddContent(ctx context.Context, repository string, payloads []model.ContentPayload) error {
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, p := range payloads {
			metadata, err := json.Marshal(p.Metadata)
			if err != nil {
				return fmt.Errorf("marshaling metadata for content %s: %w", p.ID, err)
			}
			res, err := tx.ExecContext(ctx,
				`INSERT INTO content (id, repository_id, payload, payload_type, content_type, metadata)
				 VALUES ($1, $2, $3, $4, $5, $6)
				 ON CONFLICT (id) DO NOTHING`,
				p.ID, repository, p.Payload, string(p.PayloadType), p.ContentType, metadata,
			)
			if err != nil {
				return fmt.Errorf("inserting content %s: %w", p.ID, err)
			}
			inserted, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("checking content insert %s: %w", p.ID, err)
			}
			if inserted == 0 {
				s.logger.Debug("content already exists", "content_id", p.ID)
				continue
			}
			event := model.NewContentEvent(repository, p.ID)
			if err := insertEventTx(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.Store("adding content", err)
	}
	return nil
}

// GetContent fetches one content payload from a repository.
func (s *Store) GetContent(ctx context.Context, repository, contentID string) (model.ContentPayload, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT id, repository_id, payload, payload_type, content_type, metadata
		 FROM content WHERE repository_id = $1 AND id = $2`,
		repository, contentID,
	)
	p, err := scanContent(row)
	if err == sql.ErrNoRows {
		return model.ContentPayload{}, apperrors.NotFound("content", contentID)
	}
	if err != nil {
		return model.ContentPayload{}, err
	}
	return p, nil
}

// ContentMatchingBinding answers the candidate-selection question: which
// content in the repository still needs processing by the binding, optionally
// restricted to one content id. A content item qualifies when its completion
// marker for the binding is absent or below the done threshold and its
// metadata satisfies every binding filter. A binding with zero filters
// matches all content in the repository.
func (s *Store) ContentMatchingBinding(ctx context.Context, repository string, binding model.ExtractorBinding, contentID string) ([]model.ContentPayload, error) {
	query := `SELECT c.id, c.repository_id, c.payload, c.payload_type, c.content_type, c.metadata
		FROM content c
		WHERE c.repository_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM content_binding_state s
			WHERE s.content_id = c.id AND s.binding_id = $2 AND s.completed_at >= 1
		  )`
	args := []any{repository, binding.Name}
	idx := 3
	if contentID != "" {
		query += fmt.Sprintf(" AND c.id = $%d", idx)
		args = append(args, contentID)
		idx++
	}
	clause, filterArgs, err := filter.Compile(binding.Filters, "c.metadata", idx)
	if err != nil {
		return nil, err
	}
	query += clause
	args = append(args, filterArgs...)

	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Store("selecting binding candidates", err)
	}
	defer rows.Close()

	var result []model.ContentPayload
	for rows.Next() {
		p, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Store("selecting binding candidates", err)
	}
	return result, nil
}

// MarkContentProcessed records that a binding finished processing a content
// item. The marker is a single-row upsert keyed (content_id, binding_id):
// concurrent completions by different bindings on the same content touch
// different rows and cannot interfere. The marker value is the completion
// unix timestamp and only moves forward.
func (s *Store) MarkContentProcessed(ctx context.Context, contentID, bindingID string) error {
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO content_binding_state (content_id, binding_id, completed_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (content_id, binding_id)
		 DO UPDATE SET completed_at = GREATEST(content_binding_state.completed_at, EXCLUDED.completed_at)`,
		contentID, bindingID, time.Now().Unix(),
	)
	if err != nil {
		return apperrors.Store("marking content processed", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContent(row rowScanner) (model.ContentPayload, error) {
	var p model.ContentPayload
	var payloadType string
	var metadata []byte
	if err := row.Scan(&p.ID, &p.RepositoryID, &p.Payload, &payloadType, &p.ContentType, &metadata); err != nil {
		if err == sql.ErrNoRows {
			return p, err
		}
		return p, apperrors.Store("scanning content row", err)
	}
	p.PayloadType = model.ParsePayloadType(payloadType)
	if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
		return p, apperrors.Configuration("content %s: unreadable metadata: %v", p.ID, err)
	}
	return p, nil
}
