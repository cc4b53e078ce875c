// Package store is the durable persistence layer for the extraction
// coordination platform. It keeps five row families in PostgreSQL:
// repositories (with their bindings), content (with per-binding completion
// state), the extraction event log, the work queue, and the index/attribute
// registry. All serialization of concurrent writers is delegated to store
// transactions and atomic conditional updates. There are no in-process locks
// and no automatic retries: every store failure propagates to the caller.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/postgres"
)

// Store wraps a PostgreSQL client with the coordination-layer operations.
// It is an explicit handle passed to every caller; there are no package
// singletons.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// New creates a Store over an open PostgreSQL client.
func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "store"),
	}
}

// Migrate creates the schema if it does not exist. Statements are idempotent
// so every service can run this at startup.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	s.logger.Info("schema up to date")
	return nil
}

// Ping verifies store connectivity, for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.DB.PingContext(ctx)
}
