package scheduler

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/model"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/store"
)

func (s *Scheduler) allocatePass(ctx context.Context) error {
	_, err := s.AllocateOnce(ctx)
	return err
}

// AllocateOnce hands unallocated work to live executors. Each assignment is a
// conditional claim in the store; claims that lose to a concurrent allocator
// are counted and dropped, not overwritten.
func (s *Scheduler) AllocateOnce(ctx context.Context) (int, error) {
	leaseSeconds := int(s.cfg.LeaseTimeout.Seconds())
	unallocated, err := s.store.UnallocatedWork(ctx)
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.UnallocatedWork.Set(float64(len(unallocated)))
	}
	if len(unallocated) == 0 {
		return 0, nil
	}

	executors, err := s.store.ActiveExecutors(ctx, leaseSeconds)
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.ActiveExecutors.Set(float64(len(executors)))
	}

	plan := planAssignments(unallocated, executors)
	if len(plan) == 0 {
		return 0, nil
	}

	rejected, err := s.store.AssignWork(ctx, plan)
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.ClaimsRejectedTotal.Add(float64(len(rejected)))
	}
	assigned := len(plan) - len(rejected)
	s.logger.Info("allocation pass complete",
		"unallocated", len(unallocated),
		"assigned", assigned,
		"rejected", len(rejected),
	)
	return assigned, nil
}

// planAssignments pairs work with executors round-robin. An executor only
// receives work for its extractor; an executor with an empty extractor name
// accepts anything.
func planAssignments(unallocated []model.Work, executors []store.ExecutorInfo) map[string]string {
	plan := make(map[string]string)
	if len(executors) == 0 {
		return plan
	}
	next := make(map[string]int)
	for _, w := range unallocated {
		var eligible []store.ExecutorInfo
		for _, e := range executors {
			if e.Extractor == "" || e.Extractor == w.Extractor {
				eligible = append(eligible, e)
			}
		}
		if len(eligible) == 0 {
			continue
		}
		i := next[w.Extractor] % len(eligible)
		next[w.Extractor]++
		plan[w.ID] = eligible[i].ID
	}
	return plan
}

func (s *Scheduler) requeuePass(ctx context.Context) error {
	_, err := s.RequeueOnce(ctx)
	return err
}

// RequeueOnce returns work owned by dead executors to the pending pool. An
// executor is dead when its heartbeat is older than the lease timeout.
func (s *Scheduler) RequeueOnce(ctx context.Context) (int64, error) {
	n, err := s.store.RequeueExpiredWork(ctx, int(s.cfg.LeaseTimeout.Seconds()))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if s.metrics != nil {
			s.metrics.LeaseRequeuesTotal.Add(float64(n))
		}
		s.logger.Warn("requeued work from expired executors", "count", n)
	}
	return n, nil
}
