package model

import (
	"mime"
	"path/filepath"
)

// PayloadType says where a content payload lives: inline in the row, or
// behind a blob-storage reference.
type PayloadType string

const (
	PayloadEmbedded PayloadType = "embedded_storage"
	PayloadBlobLink PayloadType = "blob_storage_link"
)

// ParsePayloadType decodes a persisted payload type, falling back to
// embedded storage for unrecognized values.
func ParsePayloadType(s string) PayloadType {
	if PayloadType(s) == PayloadBlobLink {
		return PayloadBlobLink
	}
	return PayloadEmbedded
}

// ContentPayload is one ingested unit of data. ID is a deterministic
// fingerprint of the repository and the payload-defining fields, so
// re-ingesting identical content converges on the same row.
type ContentPayload struct {
	ID           string         `json:"id"`
	RepositoryID string         `json:"repository_id"`
	Payload      string         `json:"payload"`
	PayloadType  PayloadType    `json:"payload_type"`
	ContentType  string         `json:"content_type"`
	Metadata     map[string]any `json:"metadata"`
}

// NewTextContent builds an inline text payload. The fingerprint covers the
// repository and the text itself.
func NewTextContent(repository, text string, metadata map[string]any) ContentPayload {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return ContentPayload{
		ID:           Fingerprint(repository, text),
		RepositoryID: repository,
		Payload:      text,
		PayloadType:  PayloadEmbedded,
		ContentType:  "text/plain",
		Metadata:     metadata,
	}
}

// NewFileContent builds a blob-backed payload. The fingerprint covers the
// repository and the file name; the payload holds the blob path. The content
// type is sniffed from the file name and falls back to octet-stream rather
// than failing.
func NewFileContent(repository, name, path string) ContentPayload {
	return ContentPayload{
		ID:           Fingerprint(repository, name),
		RepositoryID: repository,
		Payload:      path,
		PayloadType:  PayloadBlobLink,
		ContentType:  sniffContentType(name),
		Metadata:     map[string]any{},
	}
}

func sniffContentType(name string) string {
	t := mime.TypeByExtension(filepath.Ext(name))
	if t == "" {
		return "application/octet-stream"
	}
	return t
}
