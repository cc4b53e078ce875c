package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/model"
	apperrors "github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/errors"
)

// CreateWork inserts a work item. The id is the deterministic fingerprint of
// (content, repository, extractor, binding), so creating the same triple
// twice is a safe no-op: the insert is ignored and the existing row, in
// whatever state it has reached, stands.
func (s *Store) CreateWork(ctx context.Context, w model.Work) error {
	params := w.ExtractorParams
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO work (id, content_id, repository_id, extractor, extractor_binding, extractor_params, state, executor_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NULL)
		 ON CONFLICT (id) DO NOTHING`,
		w.ID, w.ContentID, w.RepositoryID, w.Extractor, w.Binding, []byte(params), string(model.WorkPending),
	)
	if err != nil {
		return apperrors.Store("creating work", err)
	}
	return nil
}

// WorkByID fetches one work item.
func (s *Store) WorkByID(ctx context.Context, id string) (model.Work, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT id, content_id, repository_id, extractor, extractor_binding, extractor_params, state, executor_id
		 FROM work WHERE id = $1`, id)
	w, err := scanWork(row)
	if err == sql.ErrNoRows {
		return model.Work{}, apperrors.NotFound("work", id)
	}
	return w, err
}

// UnallocatedWork returns all Pending work without an executor, the
// pull-queue surface the allocator drains.
func (s *Store) UnallocatedWork(ctx context.Context) ([]model.Work, error) {
	return s.queryWork(ctx,
		`SELECT id, content_id, repository_id, extractor, extractor_binding, extractor_params, state, executor_id
		 FROM work WHERE executor_id IS NULL AND state = $1`,
		string(model.WorkPending))
}

// WorkForExecutor returns all Pending work handed to the given executor.
func (s *Store) WorkForExecutor(ctx context.Context, executorID string) ([]model.Work, error) {
	return s.queryWork(ctx,
		`SELECT id, content_id, repository_id, extractor, extractor_binding, extractor_params, state, executor_id
		 FROM work WHERE executor_id = $1 AND state = $2`,
		executorID, string(model.WorkPending))
}

// AssignWork claims work for executors. Each claim is a single conditional
// update that succeeds only while the work is still Pending and unassigned;
// a claim that loses the race is reported back in rejected instead of
// silently overwriting the winner's assignment.
func (s *Store) AssignWork(ctx context.Context, allocation map[string]string) (rejected []string, err error) {
	for workID, executorID := range allocation {
		res, err := s.db.DB.ExecContext(ctx,
			`UPDATE work SET executor_id = $1, updated_at = NOW()
			 WHERE id = $2 AND executor_id IS NULL AND state = $3`,
			executorID, workID, string(model.WorkPending),
		)
		if err != nil {
			return rejected, apperrors.Store("assigning work", err)
		}
		claimed, err := res.RowsAffected()
		if err != nil {
			return rejected, apperrors.Store("assigning work", err)
		}
		if claimed == 0 {
			rejected = append(rejected, workID)
		}
	}
	return rejected, nil
}

// TransitionWorkState moves a work item to a new state, enforcing the
// transition table. The write is conditional on the current state being a
// legal source, so a concurrent illegal jump (Completed -> Pending) loses
// rather than overwriting a terminal state. Returns the updated work.
func (s *Store) TransitionWorkState(ctx context.Context, workID string, to model.WorkState) (model.Work, error) {
	sources := model.TransitionSources(to)
	if len(sources) == 0 {
		current, err := s.WorkByID(ctx, workID)
		if err != nil {
			return model.Work{}, err
		}
		return model.Work{}, apperrors.IllegalTransition(workID, string(current.State), string(to))
	}
	sourceStrs := make([]string, len(sources))
	for i, st := range sources {
		sourceStrs[i] = string(st)
	}

	row := s.db.DB.QueryRowContext(ctx,
		`UPDATE work SET state = $1, updated_at = NOW()
		 WHERE id = $2 AND state = ANY($3)
		 RETURNING id, content_id, repository_id, extractor, extractor_binding, extractor_params, state, executor_id`,
		string(to), workID, pq.Array(sourceStrs),
	)
	w, err := scanWork(row)
	if err == sql.ErrNoRows {
		// Distinguish a missing row from an illegal jump.
		current, getErr := s.WorkByID(ctx, workID)
		if getErr != nil {
			return model.Work{}, getErr
		}
		return model.Work{}, apperrors.IllegalTransition(workID, string(current.State), string(to))
	}
	if err != nil {
		return model.Work{}, err
	}
	return w, nil
}

// RequeueExpiredWork returns claimed-but-unfinished work to the pending pool
// when the owning executor's heartbeat is stale or its registration is gone.
// The update is atomic per row; work already Completed or Failed is left
// untouched.
func (s *Store) RequeueExpiredWork(ctx context.Context, leaseSeconds int) (int64, error) {
	res, err := s.db.DB.ExecContext(ctx,
		`UPDATE work SET executor_id = NULL, state = $1, updated_at = NOW()
		 WHERE executor_id IS NOT NULL
		   AND state = ANY($2)
		   AND executor_id NOT IN (
			 SELECT id FROM executors WHERE last_heartbeat >= NOW() - ($3 || ' seconds')::interval
		   )`,
		string(model.WorkPending),
		pq.Array([]string{string(model.WorkPending), string(model.WorkInProgress)}),
		leaseSeconds,
	)
	if err != nil {
		return 0, apperrors.Store("requeueing expired work", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.Store("requeueing expired work", err)
	}
	return n, nil
}

func (s *Store) queryWork(ctx context.Context, query string, args ...any) ([]model.Work, error) {
	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Store("querying work", err)
	}
	defer rows.Close()

	var items []model.Work
	for rows.Next() {
		w, err := scanWork(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, w)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Store("querying work", err)
	}
	return items, nil
}

func scanWork(row rowScanner) (model.Work, error) {
	var w model.Work
	var params []byte
	var state string
	var executor sql.NullString
	if err := row.Scan(&w.ID, &w.ContentID, &w.RepositoryID, &w.Extractor, &w.Binding, &params, &state, &executor); err != nil {
		if err == sql.ErrNoRows {
			return w, err
		}
		return w, apperrors.Store("scanning work row", err)
	}
	w.ExtractorParams = json.RawMessage(params)
	w.State = model.ParseWorkState(state)
	if executor.Valid {
		w.ExecutorID = executor.String
	}
	return w, nil
}
