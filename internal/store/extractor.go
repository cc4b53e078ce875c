package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/model"
	apperrors "github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/errors"
)

// RecordExtractors registers extractors, updating the description and input
// parameters of ones already known.
func (s *Store) RecordExtractors(ctx context.Context, extractors []model.Extractor) error {
	for _, e := range extractors {
		params := e.InputParams
		if len(params) == 0 {
			params = json.RawMessage(`{}`)
		}
		outputs, err := json.Marshal(e.Outputs)
		if err != nil {
			return fmt.Errorf("marshaling output schema for extractor %s: %w", e.Name, err)
		}
		if _, err := s.db.DB.ExecContext(ctx,
			`INSERT INTO extractors (name, description, input_params, output_schema)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description, input_params = EXCLUDED.input_params`,
			e.Name, e.Description, []byte(params), outputs,
		); err != nil {
			return apperrors.Store("recording extractor", err)
		}
	}
	return nil
}

// ListExtractors returns every registered extractor.
func (s *Store) ListExtractors(ctx context.Context) ([]model.Extractor, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT name, description, input_params, output_schema FROM extractors`)
	if err != nil {
		return nil, apperrors.Store("listing extractors", err)
	}
	defer rows.Close()

	var extractors []model.Extractor
	for rows.Next() {
		e, err := scanExtractor(rows)
		if err != nil {
			return nil, err
		}
		extractors = append(extractors, e)
	}
	return extractors, rows.Err()
}

// GetExtractor fetches one extractor by name.
func (s *Store) GetExtractor(ctx context.Context, name string) (model.Extractor, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT name, description, input_params, output_schema FROM extractors WHERE name = $1`, name)
	e, err := scanExtractor(row)
	if err == sql.ErrNoRows {
		return model.Extractor{}, apperrors.NotFound("extractor", name)
	}
	return e, err
}

func scanExtractor(row rowScanner) (model.Extractor, error) {
	var e model.Extractor
	var params, outputs []byte
	if err := row.Scan(&e.Name, &e.Description, &params, &outputs); err != nil {
		if err == sql.ErrNoRows {
			return e, err
		}
		return e, apperrors.Store("scanning extractor row", err)
	}
	e.InputParams = json.RawMessage(params)
	if err := json.Unmarshal(outputs, &e.Outputs); err != nil {
		return e, apperrors.Configuration("extractor %s: unreadable output schema: %v", e.Name, err)
	}
	return e, nil
}
