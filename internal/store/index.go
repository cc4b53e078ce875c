package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/model"
	apperrors "github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/errors"
)

// RegisterIndex catalogs an extractor output index. Index names are globally
// unique; re-registering an existing name is ignored (insert-or-ignore).
// The actual vector or attribute storage lives in an external backend; this
// layer only keeps the metadata.
func (s *Store) RegisterIndex(ctx context.Context, idx model.Index) error {
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO indexes (name, repository_id, extractor, storage_name, index_type, index_schema)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (name) DO NOTHING`,
		idx.Name, idx.RepositoryID, idx.Extractor, idx.StorageName, string(idx.Kind), []byte(idx.Schema),
	)
	if err != nil {
		return apperrors.Store("registering index", err)
	}
	return nil
}

// ListIndexes returns every index registered for a repository. An index row
// whose schema cannot be decoded fails this read with a configuration error
// naming the row; it does not crash the process.
func (s *Store) ListIndexes(ctx context.Context, repository string) ([]model.Index, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT name, repository_id, extractor, storage_name, index_type, index_schema
		 FROM indexes WHERE repository_id = $1`,
		repository,
	)
	if err != nil {
		return nil, apperrors.Store("listing indexes", err)
	}
	defer rows.Close()

	var indexes []model.Index
	for rows.Next() {
		idx, err := scanIndex(rows)
		if err != nil {
			return nil, err
		}
		indexes = append(indexes, idx)
	}
	return indexes, rows.Err()
}

// GetIndex fetches one index by name within a repository.
func (s *Store) GetIndex(ctx context.Context, name, repository string) (model.Index, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT name, repository_id, extractor, storage_name, index_type, index_schema
		 FROM indexes WHERE name = $1 AND repository_id = $2`,
		name, repository,
	)
	idx, err := scanIndex(row)
	if err == sql.ErrNoRows {
		return model.Index{}, apperrors.NotFound("index", name)
	}
	return idx, err
}

func scanIndex(row rowScanner) (model.Index, error) {
	var idx model.Index
	var kind string
	var schema []byte
	if err := row.Scan(&idx.Name, &idx.RepositoryID, &idx.Extractor, &idx.StorageName, &kind, &schema); err != nil {
		if err == sql.ErrNoRows {
			return idx, err
		}
		return idx, apperrors.Store("scanning index row", err)
	}
	switch model.IndexKind(kind) {
	case model.IndexKindEmbedding:
		// Embedding schemas must decode; surface bad rows at read time.
		var es model.EmbeddingSchema
		if err := json.Unmarshal(schema, &es); err != nil {
			return idx, apperrors.Configuration("index %s: unreadable embedding schema: %v", idx.Name, err)
		}
		idx.Kind = model.IndexKindEmbedding
	case model.IndexKindAttributes:
		idx.Kind = model.IndexKindAttributes
	default:
		return idx, apperrors.Configuration("index %s: unknown index type %q", idx.Name, kind)
	}
	idx.Schema = json.RawMessage(schema)
	return idx, nil
}
