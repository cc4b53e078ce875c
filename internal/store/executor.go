package store

import (
	"context"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/errors"
)

// ExecutorInfo is a registered extractor executor with its last heartbeat.
type ExecutorInfo struct {
	ID            string    `json:"id"`
	Extractor     string    `json:"extractor"`
	Addr          string    `json:"addr"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// HeartbeatExecutor registers an executor or refreshes its lease. Executors
// call this periodically; the scheduler treats an executor whose heartbeat
// is older than the lease timeout as dead and requeues its work.
func (s *Store) HeartbeatExecutor(ctx context.Context, id, extractor, addr string) error {
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO executors (id, extractor, addr, last_heartbeat)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (id) DO UPDATE SET extractor = EXCLUDED.extractor, addr = EXCLUDED.addr, last_heartbeat = NOW()`,
		id, extractor, addr,
	)
	if err != nil {
		return apperrors.Store("heartbeating executor", err)
	}
	return nil
}

// ActiveExecutors returns executors whose heartbeat is within the lease.
func (s *Store) ActiveExecutors(ctx context.Context, leaseSeconds int) ([]ExecutorInfo, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, extractor, addr, last_heartbeat FROM executors
		 WHERE last_heartbeat >= NOW() - ($1 || ' seconds')::interval`,
		leaseSeconds,
	)
	if err != nil {
		return nil, apperrors.Store("listing active executors", err)
	}
	defer rows.Close()

	var executors []ExecutorInfo
	for rows.Next() {
		var e ExecutorInfo
		if err := rows.Scan(&e.ID, &e.Extractor, &e.Addr, &e.LastHeartbeat); err != nil {
			return nil, apperrors.Store("scanning executor row", err)
		}
		executors = append(executors, e)
	}
	return executors, rows.Err()
}
