package model

import (
	"encoding/json"
)

// WorkState is the lifecycle state of a work item.
//
//	Pending --(assign executor)--> Pending (executor set, state unchanged)
//	Pending/InProgress --(executor starts)--> InProgress
//	InProgress --(success)--> Completed   [terminal]
//	InProgress --(failure)--> Failed      [terminal]
//
// Unknown is never a created state; it exists only as a decode fallback for
// unrecognized persisted values.
type WorkState string

const (
	WorkUnknown    WorkState = "Unknown"
	WorkPending    WorkState = "Pending"
	WorkInProgress WorkState = "InProgress"
	WorkCompleted  WorkState = "Completed"
	WorkFailed     WorkState = "Failed"
)

// ParseWorkState decodes a persisted state string, falling back to Unknown.
func ParseWorkState(s string) WorkState {
	switch WorkState(s) {
	case WorkPending, WorkInProgress, WorkCompleted, WorkFailed:
		return WorkState(s)
	default:
		return WorkUnknown
	}
}

// Terminal reports whether no further transitions are allowed from s.
func (s WorkState) Terminal() bool {
	return s == WorkCompleted || s == WorkFailed
}

// transitions lists the legal source states for each target state.
var transitions = map[WorkState][]WorkState{
	WorkInProgress: {WorkPending, WorkInProgress},
	WorkCompleted:  {WorkInProgress},
	WorkFailed:     {WorkInProgress},
	// A lease requeue moves claimed-but-unfinished work back to Pending.
	WorkPending: {WorkPending, WorkInProgress},
}

// CanTransition reports whether from -> to is a legal state change.
func (s WorkState) CanTransition(to WorkState) bool {
	for _, from := range transitions[to] {
		if from == s {
			return true
		}
	}
	return false
}

// TransitionSources returns the legal source states for a target state. The
// store uses this to make the transition write conditional, so an illegal
// jump loses the race instead of overwriting a terminal state.
func TransitionSources(to WorkState) []WorkState {
	return transitions[to]
}

// Work is one schedulable unit of extraction: a specific (content,
// repository, extractor, binding) triple. Its id is a deterministic
// fingerprint of that triple, so re-deriving the same work upserts rather
// than duplicates. Work rows are never deleted; terminal rows remain as an
// audit trail.
type Work struct {
	ID              string          `json:"id"`
	ContentID       string          `json:"content_id"`
	RepositoryID    string          `json:"repository_id"`
	Extractor       string          `json:"extractor"`
	Binding         string          `json:"extractor_binding"`
	ExtractorParams json.RawMessage `json:"extractor_params"`
	State           WorkState       `json:"state"`
	ExecutorID      string          `json:"executor_id,omitempty"`
}

// NewWork builds a Pending, unassigned work item with its deterministic id.
func NewWork(contentID, repository, extractor, binding string, params json.RawMessage) Work {
	return Work{
		ID:              Fingerprint(contentID, repository, extractor, binding),
		ContentID:       contentID,
		RepositoryID:    repository,
		Extractor:       extractor,
		Binding:         binding,
		ExtractorParams: params,
		State:           WorkPending,
	}
}
