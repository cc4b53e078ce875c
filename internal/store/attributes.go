package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/model"
	apperrors "github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/errors"
)

// UpsertAttributes stores an extractor's structured output for one content
// item. The row is keyed by the deterministic (content, extractor)
// fingerprint: repeated extraction replaces the prior data and timestamp.
func (s *Store) UpsertAttributes(ctx context.Context, repository, indexName string, attrs model.ExtractedAttributes) error {
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO extracted_attributes (id, repository_id, index_name, extractor, content_id, data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, created_at = EXCLUDED.created_at`,
		attrs.ID, repository, indexName, attrs.Extractor, attrs.ContentID, []byte(attrs.Attributes), time.Now().Unix(),
	)
	if err != nil {
		return apperrors.Store("upserting extracted attributes", err)
	}
	return nil
}

// QueryAttributes returns extracted attributes for a repository and index,
// optionally narrowed to one content id.
func (s *Store) QueryAttributes(ctx context.Context, repository, indexName, contentID string) ([]model.ExtractedAttributes, error) {
	query := `SELECT id, content_id, extractor, data FROM extracted_attributes
		WHERE repository_id = $1 AND index_name = $2`
	args := []any{repository, indexName}
	if contentID != "" {
		query += ` AND content_id = $3`
		args = append(args, contentID)
	}
	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Store("querying extracted attributes", err)
	}
	defer rows.Close()

	var result []model.ExtractedAttributes
	for rows.Next() {
		var a model.ExtractedAttributes
		var data []byte
		if err := rows.Scan(&a.ID, &a.ContentID, &a.Extractor, &data); err != nil {
			return nil, apperrors.Store("scanning attributes row", err)
		}
		a.Attributes = json.RawMessage(data)
		result = append(result, a)
	}
	return result, rows.Err()
}
