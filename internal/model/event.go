package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType discriminates extraction event payload variants.
type EventType string

const (
	EventCreateContent EventType = "create_content"
	EventBindingAdded  EventType = "extractor_binding_added"
)

// EventPayload is the tagged variant carried by an extraction event. Exactly
// the fields for the given Type are set.
type EventPayload struct {
	Type EventType `json:"type"`

	// create_content
	ContentID string `json:"content_id,omitempty"`

	// extractor_binding_added
	Repository string `json:"repository,omitempty"`
	BindingID  string `json:"binding_id,omitempty"`
}

// ExtractionEvent is an append-only fact record announcing new
// work-generating state: content was created, or a binding was added. Events
// are immutable except for ProcessedAt, which is set exactly once when a
// consumer sweep acknowledges the event.
type ExtractionEvent struct {
	ID           string       `json:"id"`
	RepositoryID string       `json:"repository_id"`
	Payload      EventPayload `json:"payload"`
	ProcessedAt  *time.Time   `json:"processed_at,omitempty"`
}

// NewContentEvent announces that a content item was created.
func NewContentEvent(repository, contentID string) ExtractionEvent {
	return ExtractionEvent{
		ID:           uuid.NewString(),
		RepositoryID: repository,
		Payload: EventPayload{
			Type:      EventCreateContent,
			ContentID: contentID,
		},
	}
}

// NewBindingEvent announces that an extractor binding was added to a
// repository.
func NewBindingEvent(repository, bindingID string) ExtractionEvent {
	return ExtractionEvent{
		ID:           uuid.NewString(),
		RepositoryID: repository,
		Payload: EventPayload{
			Type:       EventBindingAdded,
			Repository: repository,
			BindingID:  bindingID,
		},
	}
}

// DecodeEventPayload parses a persisted payload column, rejecting unknown
// variants so a corrupt row fails its read instead of being silently
// misrouted.
func DecodeEventPayload(data []byte) (EventPayload, error) {
	var p EventPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decoding event payload: %w", err)
	}
	switch p.Type {
	case EventCreateContent, EventBindingAdded:
		return p, nil
	default:
		return p, fmt.Errorf("unknown event payload type %q", p.Type)
	}
}

// TimelineEvent is a lightweight application event recorded against a
// repository (user activity, extraction milestones). It is unrelated to the
// work-generating extraction event log.
type TimelineEvent struct {
	ID            string         `json:"id"`
	Message       string         `json:"message"`
	UnixTimestamp int64          `json:"unix_timestamp"`
	Metadata      map[string]any `json:"metadata"`
}

// NewTimelineEvent stamps a timeline event with a random id and, when ts is
// zero, the current time.
func NewTimelineEvent(message string, ts int64, metadata map[string]any) TimelineEvent {
	if ts == 0 {
		ts = time.Now().Unix()
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	return TimelineEvent{
		ID:            uuid.NewString(),
		Message:       message,
		UnixTimestamp: ts,
		Metadata:      metadata,
	}
}
