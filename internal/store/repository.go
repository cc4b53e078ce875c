package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/model"
	apperrors "github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/errors"
)

// UpsertRepository creates or updates a repository and its bindings. Bindings
// are stored as a name→binding map owned by the repository row. One
// ExtractorBindingAdded event is appended per binding, in the same
// transaction as the repository write. Filters are validated here so a bad
// filter value is a registration-time configuration error, never a selection-
// time failure.
func (s *Store) UpsertRepository(ctx context.Context, repo model.DataRepository) error {
	bindings := make(map[string]model.ExtractorBinding, len(repo.Bindings))
	for _, b := range repo.Bindings {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("binding %q: %w", b.Name, err)
		}
		b.Repository = repo.Name
		bindings[b.Name] = b
	}
	bindingsJSON, err := json.Marshal(bindings)
	if err != nil {
		return fmt.Errorf("marshaling bindings: %w", err)
	}
	if repo.Metadata == nil {
		repo.Metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(repo.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling repository metadata: %w", err)
	}

	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO repositories (name, bindings, metadata) VALUES ($1, $2, $3)
			 ON CONFLICT (name) DO UPDATE SET bindings = EXCLUDED.bindings, metadata = EXCLUDED.metadata`,
			repo.Name, bindingsJSON, metadataJSON,
		); err != nil {
			return fmt.Errorf("upserting repository %s: %w", repo.Name, err)
		}
		for name := range bindings {
			event := model.NewBindingEvent(repo.Name, name)
			if err := insertEventTx(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.Store("upserting repository", err)
	}
	return nil
}

// ListRepositories returns every repository with its bindings.
func (s *Store) ListRepositories(ctx context.Context) ([]model.DataRepository, error) {
	rows, err := s.db.DB.QueryContext(ctx, `SELECT name, bindings, metadata FROM repositories`)
	if err != nil {
		return nil, apperrors.Store("listing repositories", err)
	}
	defer rows.Close()

	var repos []model.DataRepository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	return repos, rows.Err()
}

// GetRepository fetches a repository by name.
func (s *Store) GetRepository(ctx context.Context, name string) (model.DataRepository, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT name, bindings, metadata FROM repositories WHERE name = $1`, name)
	repo, err := scanRepository(row)
	if err == sql.ErrNoRows {
		return model.DataRepository{}, apperrors.NotFound("repository", name)
	}
	if err != nil {
		return model.DataRepository{}, err
	}
	return repo, nil
}

// BindingByID resolves one binding by name within a repository.
func (s *Store) BindingByID(ctx context.Context, repository, bindingID string) (model.ExtractorBinding, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT bindings->$2 FROM repositories WHERE name = $1`,
		repository, bindingID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return model.ExtractorBinding{}, apperrors.NotFound("repository", repository)
	}
	if err != nil {
		return model.ExtractorBinding{}, apperrors.Store("fetching binding", err)
	}
	if len(data) == 0 {
		return model.ExtractorBinding{}, apperrors.NotFound("binding", bindingID)
	}
	var binding model.ExtractorBinding
	if err := json.Unmarshal(data, &binding); err != nil {
		return model.ExtractorBinding{}, apperrors.Configuration("binding %s/%s: unreadable: %v", repository, bindingID, err)
	}
	return binding, nil
}

func scanRepository(row rowScanner) (model.DataRepository, error) {
	var repo model.DataRepository
	var bindings, metadata []byte
	if err := row.Scan(&repo.Name, &bindings, &metadata); err != nil {
		if err == sql.ErrNoRows {
			return repo, err
		}
		return repo, apperrors.Store("scanning repository row", err)
	}
	bindingMap := map[string]model.ExtractorBinding{}
	if err := json.Unmarshal(bindings, &bindingMap); err != nil {
		return repo, apperrors.Configuration("repository %s: unreadable bindings: %v", repo.Name, err)
	}
	for _, b := range bindingMap {
		repo.Bindings = append(repo.Bindings, b)
	}
	if err := json.Unmarshal(metadata, &repo.Metadata); err != nil {
		return repo, apperrors.Configuration("repository %s: unreadable metadata: %v", repo.Name, err)
	}
	return repo, nil
}
