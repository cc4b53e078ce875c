package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/model"
	apperrors "github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/errors"
)

// CreateChunks stores text chunks under an index. Chunk ids are deterministic
// fingerprints of (content, text), so duplicate chunking attempts converge.
func (s *Store) CreateChunks(ctx context.Context, chunks []model.Chunk, indexName string) error {
	for _, c := range chunks {
		if _, err := s.db.DB.ExecContext(ctx,
			`INSERT INTO chunks (chunk_id, content_id, index_name, text)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (chunk_id) DO NOTHING`,
			c.ChunkID, c.ContentID, indexName, c.Text,
		); err != nil {
			return apperrors.Store("creating chunk", err)
		}
	}
	return nil
}

// ChunkWithID fetches a chunk together with its parent content's metadata,
// for query-time readers that need both.
func (s *Store) ChunkWithID(ctx context.Context, chunkID string) (model.ChunkWithMetadata, error) {
	var result model.ChunkWithMetadata
	var metadata []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT ch.chunk_id, ch.content_id, ch.text, c.metadata
		 FROM chunks ch JOIN content c ON c.id = ch.content_id
		 WHERE ch.chunk_id = $1`,
		chunkID,
	).Scan(&result.ChunkID, &result.ContentID, &result.Text, &metadata)
	if err == sql.ErrNoRows {
		return result, apperrors.NotFound("chunk", chunkID)
	}
	if err != nil {
		return result, apperrors.Store("fetching chunk", err)
	}
	if err := json.Unmarshal(metadata, &result.Metadata); err != nil {
		return result, apperrors.Configuration("chunk %s: unreadable content metadata: %v", chunkID, err)
	}
	return result, nil
}
