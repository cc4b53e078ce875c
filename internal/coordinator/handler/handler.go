// Package handler implements the coordinator HTTP API over the durable
// store: ingestion, catalog registration, the extractor/index/attribute
// registries, and the work surface executors pull from.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/coordinator"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/model"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/notify"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/metrics"
)

// maxBodyBytes bounds request bodies; inline payloads larger than this must
// go through blob storage.
const maxBodyBytes = 16 << 20

// Handler serves the coordinator API. catalog, notifier, validator, and
// metrics may be nil; the corresponding features degrade gracefully.
type Handler struct {
	store     *store.Store
	catalog   *cache.Catalog
	notifier  *notify.Notifier
	validator *apikey.Validator
	metrics   *metrics.Metrics
}

// New creates a Handler.
func New(st *store.Store, catalog *cache.Catalog, notifier *notify.Notifier, validator *apikey.Validator, m *metrics.Metrics) *Handler {
	return &Handler{
		store:     st,
		catalog:   catalog,
		notifier:  notifier,
		validator: validator,
		metrics:   m,
	}
}

// UpsertRepository creates or replaces a repository and its bindings.
func (h *Handler) UpsertRepository(w http.ResponseWriter, r *http.Request) {
	var req coordinator.UpsertRepositoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, r, &apperrors.AppError{Err: apperrors.ErrInvalidInput, Message: "repository name is required"})
		return
	}
	repo := model.DataRepository{Name: req.Name, Metadata: req.Metadata}
	for _, b := range req.Bindings {
		if b.Name == "" || b.Extractor == "" {
			writeError(w, r, &apperrors.AppError{Err: apperrors.ErrInvalidInput, Message: "binding name and extractor are required"})
			return
		}
		repo.Bindings = append(repo.Bindings, model.ExtractorBinding{
			Name:        b.Name,
			Repository:  req.Name,
			Extractor:   b.Extractor,
			Filters:     b.Filters,
			InputParams: b.InputParams,
		})
	}
	if err := h.store.UpsertRepository(r.Context(), repo); err != nil {
		writeError(w, r, err)
		return
	}
	h.catalog.InvalidateRepository(r.Context(), req.Name)
	writeJSON(w, http.StatusOK, map[string]string{"name": req.Name})
}

// ListRepositories returns every repository with its bindings.
func (h *Handler) ListRepositories(w http.ResponseWriter, r *http.Request) {
	repos, err := h.store.ListRepositories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"repositories": repos})
}

// GetRepository returns one repository, served through the catalog cache.
func (h *Handler) GetRepository(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	repo, err := h.catalog.Repository(r.Context(), name, func(ctx context.Context) (model.DataRepository, error) {
		return h.store.GetRepository(ctx, name)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, repo)
}

// IngestContent adds text and file payloads to a repository. Payload ids are
// deterministic, so re-sending the same request is a no-op, and the response
// carries the ids in request order either way.
func (h *Handler) IngestContent(w http.ResponseWriter, r *http.Request) {
	repository := r.PathValue("name")
	var req coordinator.IngestContentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Texts) == 0 && len(req.Files) == 0 {
		writeError(w, r, &apperrors.AppError{Err: apperrors.ErrInvalidInput, Message: "request carries no content"})
		return
	}

	payloads := make([]model.ContentPayload, 0, len(req.Texts)+len(req.Files))
	for _, t := range req.Texts {
		if t.Text == "" {
			writeError(w, r, &apperrors.AppError{Err: apperrors.ErrInvalidInput, Message: "text payload is empty"})
			return
		}
		payloads = append(payloads, model.NewTextContent(repository, t.Text, t.Metadata))
	}
	for _, f := range req.Files {
		if f.Name == "" || f.Path == "" {
			writeError(w, r, &apperrors.AppError{Err: apperrors.ErrInvalidInput, Message: "file payload needs name and path"})
			return
		}
		payloads = append(payloads, model.NewFileContent(repository, f.Name, f.Path))
	}

	if _, err := h.store.GetRepository(r.Context(), repository); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.AddContent(r.Context(), repository, payloads); err != nil {
		writeError(w, r, err)
		return
	}
	h.notifier.ContentIngested(r.Context(), repository, payloads)

	resp := coordinator.IngestContentResponse{ContentIDs: make([]string, len(payloads))}
	for i, p := range payloads {
		resp.ContentIDs[i] = p.ID
		if h.metrics != nil {
			h.metrics.ContentIngestedTotal.WithLabelValues(string(p.PayloadType)).Inc()
		}
	}
	logger.FromContext(r.Context()).Info("content ingested",
		"repository", repository,
		"count", len(payloads),
	)
	writeJSON(w, http.StatusOK, resp)
}

// GetContent returns one content payload.
func (h *Handler) GetContent(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.GetContent(r.Context(), r.PathValue("name"), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// MarkContentProcessed records a binding's completion marker for a content
// item. Executors call this after finishing work.
func (h *Handler) MarkContentProcessed(w http.ResponseWriter, r *http.Request) {
	contentID := r.PathValue("id")
	bindingID := r.PathValue("binding")
	if err := h.store.MarkContentProcessed(r.Context(), contentID, bindingID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content_id": contentID, "binding_id": bindingID})
}

// RecordExtractors registers one or more extractors.
func (h *Handler) RecordExtractors(w http.ResponseWriter, r *http.Request) {
	var extractors []model.Extractor
	if !decodeBody(w, r, &extractors) {
		return
	}
	for _, e := range extractors {
		if e.Name == "" {
			writeError(w, r, &apperrors.AppError{Err: apperrors.ErrInvalidInput, Message: "extractor name is required"})
			return
		}
	}
	if err := h.store.RecordExtractors(r.Context(), extractors); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"recorded": len(extractors)})
}

// ListExtractors returns every registered extractor.
func (h *Handler) ListExtractors(w http.ResponseWriter, r *http.Request) {
	extractors, err := h.store.ListExtractors(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"extractors": extractors})
}

// GetExtractor returns one extractor by name.
func (h *Handler) GetExtractor(w http.ResponseWriter, r *http.Request) {
	e, err := h.store.GetExtractor(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// RegisterIndex catalogs an extractor output index.
func (h *Handler) RegisterIndex(w http.ResponseWriter, r *http.Request) {
	var req coordinator.RegisterIndexRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" || req.Repository == "" {
		writeError(w, r, &apperrors.AppError{Err: apperrors.ErrInvalidInput, Message: "index name and repository are required"})
		return
	}
	switch req.Kind {
	case model.IndexKindEmbedding, model.IndexKindAttributes:
	default:
		writeError(w, r, apperrors.Configuration("unknown index kind %q", req.Kind))
		return
	}
	idx := model.Index{
		Name:         req.Name,
		RepositoryID: req.Repository,
		Extractor:    req.Extractor,
		StorageName:  req.StorageName,
		Kind:         req.Kind,
		Schema:       req.Schema,
	}
	if err := h.store.RegisterIndex(r.Context(), idx); err != nil {
		writeError(w, r, err)
		return
	}
	h.catalog.InvalidateIndexes(r.Context(), req.Repository)
	writeJSON(w, http.StatusOK, map[string]string{"name": req.Name})
}

// ListIndexes returns the indexes registered for a repository.
func (h *Handler) ListIndexes(w http.ResponseWriter, r *http.Request) {
	indexes, err := h.store.ListIndexes(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"indexes": indexes})
}

// GetIndex returns one index, served through the catalog cache.
func (h *Handler) GetIndex(w http.ResponseWriter, r *http.Request) {
	repository := r.PathValue("name")
	name := r.PathValue("index")
	idx, err := h.catalog.Index(r.Context(), repository, name, func(ctx context.Context) (model.Index, error) {
		return h.store.GetIndex(ctx, name, repository)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, idx)
}

// UpsertAttributes stores an extractor's structured output for a content
// item.
func (h *Handler) UpsertAttributes(w http.ResponseWriter, r *http.Request) {
	var req coordinator.UpsertAttributesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Repository == "" || req.IndexName == "" || req.ContentID == "" || req.Extractor == "" {
		writeError(w, r, &apperrors.AppError{Err: apperrors.ErrInvalidInput, Message: "repository, index_name, content_id, and extractor are required"})
		return
	}
	attrs := model.NewExtractedAttributes(req.ContentID, req.Extractor, req.Attributes)
	if err := h.store.UpsertAttributes(r.Context(), req.Repository, req.IndexName, attrs); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": attrs.ID})
}

// QueryAttributes returns extracted attributes for a repository and index,
// optionally narrowed to one content id via ?content_id=.
func (h *Handler) QueryAttributes(w http.ResponseWriter, r *http.Request) {
	repository := r.URL.Query().Get("repository")
	indexName := r.URL.Query().Get("index")
	if repository == "" || indexName == "" {
		writeError(w, r, &apperrors.AppError{Err: apperrors.ErrInvalidInput, Message: "repository and index query parameters are required"})
		return
	}
	attrs, err := h.store.QueryAttributes(r.Context(), repository, indexName, r.URL.Query().Get("content_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attributes": attrs})
}

// CreateChunks stores text chunks under an index.
func (h *Handler) CreateChunks(w http.ResponseWriter, r *http.Request) {
	var req coordinator.CreateChunksRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.IndexName == "" || req.ContentID == "" || len(req.Texts) == 0 {
		writeError(w, r, &apperrors.AppError{Err: apperrors.ErrInvalidInput, Message: "index_name, content_id, and texts are required"})
		return
	}
	chunks := make([]model.Chunk, len(req.Texts))
	for i, text := range req.Texts {
		chunks[i] = model.NewChunk(req.ContentID, text)
	}
	if err := h.store.CreateChunks(r.Context(), chunks, req.IndexName); err != nil {
		writeError(w, r, err)
		return
	}
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ChunkID
	}
	writeJSON(w, http.StatusOK, map[string]any{"chunk_ids": ids})
}

// GetChunk returns a chunk with its parent content's metadata.
func (h *Handler) GetChunk(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.ChunkWithID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// AddTimelineEvents records application timeline events for a repository.
func (h *Handler) AddTimelineEvents(w http.ResponseWriter, r *http.Request) {
	repository := r.PathValue("name")
	var req coordinator.AddEventsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	events := make([]model.TimelineEvent, len(req.Events))
	for i, spec := range req.Events {
		events[i] = model.NewTimelineEvent(spec.Message, spec.UnixTimestamp, spec.Metadata)
	}
	if err := h.store.AddTimelineEvents(r.Context(), repository, events); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"recorded": len(events)})
}

// ListTimelineEvents returns all timeline events for a repository.
func (h *Handler) ListTimelineEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.ListTimelineEvents(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// GetWork returns one work item.
func (h *Handler) GetWork(w http.ResponseWriter, r *http.Request) {
	item, err := h.store.WorkByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// ListUnallocatedWork returns the pending, unassigned work pool.
func (h *Handler) ListUnallocatedWork(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.UnallocatedWork(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"work": items})
}

// ListExecutorWork returns the pending work assigned to an executor. This is
// the executor's poll surface.
func (h *Handler) ListExecutorWork(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.WorkForExecutor(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"work": items})
}

// AssignWork bulk-claims work for executors and reports the claims that lost
// to an earlier assignment.
func (h *Handler) AssignWork(w http.ResponseWriter, r *http.Request) {
	var req coordinator.AssignWorkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rejected, err := h.store.AssignWork(r.Context(), req.Allocation)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ClaimsRejectedTotal.Add(float64(len(rejected)))
	}
	writeJSON(w, http.StatusOK, coordinator.AssignWorkResponse{Rejected: rejected})
}

// TransitionWork reports a work state change. An illegal jump is rejected
// with 409 and the stored state is untouched. Completing work also records
// the content's completion marker for the binding, so the next candidate
// sweep skips it.
func (h *Handler) TransitionWork(w http.ResponseWriter, r *http.Request) {
	workID := r.PathValue("id")
	var req coordinator.TransitionWorkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	to := model.ParseWorkState(req.State)
	if to == model.WorkUnknown {
		writeError(w, r, &apperrors.AppError{Err: apperrors.ErrInvalidInput, Message: "unknown work state " + req.State})
		return
	}

	item, err := h.store.TransitionWorkState(r.Context(), workID, to)
	if err != nil {
		if h.metrics != nil && errors.Is(err, apperrors.ErrIllegalState) {
			h.metrics.WorkTransitionsTotal.WithLabelValues(string(to), "rejected").Inc()
		}
		writeError(w, r, err)
		return
	}
	if h.metrics != nil {
		h.metrics.WorkTransitionsTotal.WithLabelValues(string(to), "ok").Inc()
	}

	if to == model.WorkCompleted {
		if err := h.store.MarkContentProcessed(r.Context(), item.ContentID, item.Binding); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if to.Terminal() {
		h.notifier.WorkFinished(r.Context(), item)
	}
	logger.FromContext(r.Context()).Info("work transitioned",
		"work_id", workID,
		"state", string(to),
	)
	writeJSON(w, http.StatusOK, item)
}

// Heartbeat registers an executor or refreshes its lease.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	executorID := r.PathValue("id")
	var req coordinator.HeartbeatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Extractor == "" {
		writeError(w, r, &apperrors.AppError{Err: apperrors.ErrInvalidInput, Message: "extractor is required"})
		return
	}
	if err := h.store.HeartbeatExecutor(r.Context(), executorID, req.Extractor, req.Addr); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": executorID})
}

// CreateAPIKey creates an API key and returns the raw key once.
func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	if h.validator == nil {
		writeError(w, r, &apperrors.AppError{Err: apperrors.ErrConfiguration, Message: "api key management is disabled"})
		return
	}
	var req coordinator.CreateKeyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, r, &apperrors.AppError{Err: apperrors.ErrInvalidInput, Message: "key name is required"})
		return
	}
	if req.RateLimit <= 0 {
		req.RateLimit = 100
	}
	rawKey, err := h.validator.CreateKey(r.Context(), req.Name, req.RateLimit, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": rawKey, "name": req.Name, "rate_limit": req.RateLimit})
}

// ListAPIKeys returns active API keys without their secrets.
func (h *Handler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	if h.validator == nil {
		writeError(w, r, &apperrors.AppError{Err: apperrors.ErrConfiguration, Message: "api key management is disabled"})
		return
	}
	keys, err := h.validator.ListKeys(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

// RevokeAPIKey deactivates the presented API key.
func (h *Handler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	if h.validator == nil {
		writeError(w, r, &apperrors.AppError{Err: apperrors.ErrConfiguration, Message: "api key management is disabled"})
		return
	}
	var req struct {
		Key string `json:"key"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.validator.RevokeKey(r.Context(), req.Key); err != nil {
		if errors.Is(err, apikey.ErrInvalidKey) {
			writeError(w, r, apperrors.NotFound("api key", req.Key))
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, &apperrors.AppError{Err: apperrors.ErrInvalidInput, Message: "malformed request body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
