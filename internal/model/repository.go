package model

import (
	"encoding/json"

	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/filter"
)

// ExtractorBinding is a named rule: run this extractor, with these input
// parameters, on every content item in the repository whose metadata matches
// the filters. Names are unique within a repository.
type ExtractorBinding struct {
	Name        string             `json:"name"`
	Repository  string             `json:"repository"`
	Extractor   string             `json:"extractor"`
	Filters     []filter.Predicate `json:"filters"`
	InputParams json.RawMessage    `json:"input_params"`
}

// Validate checks the binding's filters at registration time so that bad
// filter values never reach candidate-selection queries.
func (b ExtractorBinding) Validate() error {
	return filter.ValidateAll(b.Filters)
}

// DataRepository is a namespace for content and the bindings that process it.
// A repository owns its bindings; they are persisted as a name→binding map.
type DataRepository struct {
	Name     string             `json:"name"`
	Bindings []ExtractorBinding `json:"extractor_bindings"`
	Metadata map[string]any     `json:"metadata"`
}

// Extractor describes a registered extraction algorithm: what parameters it
// takes and what outputs (embedding indexes, attribute documents) it emits.
type Extractor struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	InputParams json.RawMessage         `json:"input_params"`
	Outputs     map[string]OutputSchema `json:"outputs"`
}

// IndexKind discriminates the two output shapes an extractor can produce.
type IndexKind string

const (
	IndexKindEmbedding  IndexKind = "embedding"
	IndexKindAttributes IndexKind = "attributes"
)

// EmbeddingSchema describes a vector index output.
type EmbeddingSchema struct {
	Dim      int    `json:"dim"`
	Distance string `json:"distance"`
}

// OutputSchema is a tagged union: exactly one of Embedding or Attributes is
// set, according to Kind.
type OutputSchema struct {
	Kind       IndexKind        `json:"kind"`
	Embedding  *EmbeddingSchema `json:"embedding,omitempty"`
	Attributes json.RawMessage  `json:"attributes,omitempty"`
}

// Index is a registry entry naming an extractor output within a repository.
// Index names are globally unique, not per-repository; callers must respect
// that when choosing names.
type Index struct {
	Name         string          `json:"name"`
	RepositoryID string          `json:"repository_id"`
	Extractor    string          `json:"extractor"`
	StorageName  string          `json:"storage_name"`
	Kind         IndexKind       `json:"kind"`
	Schema       json.RawMessage `json:"schema"`
}

// ExtractedAttributes is a content-addressed result row holding an
// extractor's structured output for one content item.
type ExtractedAttributes struct {
	ID         string          `json:"id"`
	ContentID  string          `json:"content_id"`
	Extractor  string          `json:"extractor_name"`
	Attributes json.RawMessage `json:"attributes"`
}

// NewExtractedAttributes derives the deterministic (content, extractor) id
// so repeated extraction upserts rather than duplicates.
func NewExtractedAttributes(contentID, extractor string, attributes json.RawMessage) ExtractedAttributes {
	return ExtractedAttributes{
		ID:         Fingerprint(contentID, extractor),
		ContentID:  contentID,
		Extractor:  extractor,
		Attributes: attributes,
	}
}

// Chunk is one piece of a content item's text, stored under an index.
type Chunk struct {
	ChunkID   string `json:"chunk_id"`
	ContentID string `json:"content_id"`
	Text      string `json:"text"`
}

// NewChunk derives the deterministic chunk id from the content id and text.
func NewChunk(contentID, text string) Chunk {
	return Chunk{
		ChunkID:   Fingerprint(contentID, text),
		ContentID: contentID,
		Text:      text,
	}
}

// ChunkWithMetadata is a chunk joined with its parent content's metadata.
type ChunkWithMetadata struct {
	Chunk
	Metadata map[string]any `json:"metadata"`
}
