// Package coordinator defines the request/response types of the coordination
// HTTP API: content ingestion, repository and binding registration, the
// extractor/index/attribute registries, and the work surface used by
// executors.
package coordinator

import (
	"encoding/json"

	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/filter"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/model"
)

// BindingSpec is the JSON shape of one extractor binding in an upsert.
type BindingSpec struct {
	Name        string             `json:"name"`
	Extractor   string             `json:"extractor"`
	Filters     []filter.Predicate `json:"filters,omitempty"`
	InputParams json.RawMessage    `json:"input_params,omitempty"`
}

// UpsertRepositoryRequest creates or updates a repository and its bindings.
type UpsertRepositoryRequest struct {
	Name     string         `json:"name"`
	Bindings []BindingSpec  `json:"bindings,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TextItem is one inline text payload in an ingestion request.
type TextItem struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// FileItem is one blob-backed payload in an ingestion request.
type FileItem struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// IngestContentRequest adds content to a repository. Texts and Files may be
// mixed in one request.
type IngestContentRequest struct {
	Texts []TextItem `json:"texts,omitempty"`
	Files []FileItem `json:"files,omitempty"`
}

// IngestContentResponse returns the deterministic ids of the ingested
// payloads, in request order.
type IngestContentResponse struct {
	ContentIDs []string `json:"content_ids"`
}

// RegisterIndexRequest catalogs an extractor output index.
type RegisterIndexRequest struct {
	Repository  string          `json:"repository"`
	Extractor   string          `json:"extractor"`
	Name        string          `json:"name"`
	StorageName string          `json:"storage_name"`
	Kind        model.IndexKind `json:"kind"`
	Schema      json.RawMessage `json:"schema"`
}

// UpsertAttributesRequest stores an extractor's structured output.
type UpsertAttributesRequest struct {
	Repository string          `json:"repository"`
	IndexName  string          `json:"index_name"`
	ContentID  string          `json:"content_id"`
	Extractor  string          `json:"extractor"`
	Attributes json.RawMessage `json:"attributes"`
}

// CreateChunksRequest stores text chunks under an index.
type CreateChunksRequest struct {
	IndexName string   `json:"index_name"`
	ContentID string   `json:"content_id"`
	Texts     []string `json:"texts"`
}

// TransitionWorkRequest reports a work state change from an executor.
type TransitionWorkRequest struct {
	State string `json:"state"`
}

// HeartbeatRequest registers or refreshes an executor lease.
type HeartbeatRequest struct {
	Extractor string `json:"extractor"`
	Addr      string `json:"addr,omitempty"`
}

// AssignWorkRequest bulk-claims work for executors.
type AssignWorkRequest struct {
	Allocation map[string]string `json:"allocation"`
}

// AssignWorkResponse reports which claims lost to an earlier assignment.
type AssignWorkResponse struct {
	Rejected []string `json:"rejected"`
}

// AddEventsRequest records timeline events against a repository.
type AddEventsRequest struct {
	Events []TimelineEventSpec `json:"events"`
}

// TimelineEventSpec is one timeline event in an AddEventsRequest.
type TimelineEventSpec struct {
	Message       string         `json:"message"`
	UnixTimestamp int64          `json:"unix_timestamp,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// CreateKeyRequest creates an API key.
type CreateKeyRequest struct {
	Name      string `json:"name"`
	RateLimit int    `json:"rate_limit"`
}
