package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/filter"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/model"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/postgres"
)

// newTestStore connects to the test database, migrates the schema, and
// truncates every table. Tests are skipped when PostgreSQL is unavailable.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := postgres.New(testPostgresConfig())
	if err != nil {
		t.Skipf("skipping store test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := New(db)
	ctx := context.Background()
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrating schema: %v", err)
	}
	tables := []string{
		"repositories", "extractors", "content", "content_binding_state",
		"extraction_events", "work", "indexes", "extracted_attributes",
		"chunks", "timeline_events", "executors", "api_keys",
	}
	for _, table := range tables {
		if _, err := db.DB.ExecContext(ctx, "TRUNCATE TABLE "+table); err != nil {
			t.Fatalf("truncating %s: %v", table, err)
		}
	}
	return s
}

func testPostgresConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "extractionplatform_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "extractionplatform"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func mustUpsertRepo(t *testing.T, s *Store, repo model.DataRepository) {
	t.Helper()
	if err := s.UpsertRepository(context.Background(), repo); err != nil {
		t.Fatalf("upserting repository %s: %v", repo.Name, err)
	}
}

func drainEvents(t *testing.T, s *Store) []model.ExtractionEvent {
	t.Helper()
	events, err := s.UnprocessedEvents(context.Background(), 0)
	if err != nil {
		t.Fatalf("listing unprocessed events: %v", err)
	}
	return events
}

func TestAddContentIsIdempotentAndAtomicWithEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustUpsertRepo(t, s, model.DataRepository{Name: "research"})
	for _, e := range drainEvents(t, s) {
		if err := s.AcknowledgeEvent(ctx, e.ID); err != nil {
			t.Fatal(err)
		}
	}

	payloads := []model.ContentPayload{
		model.NewTextContent("research", "first document", map[string]any{"topic": "pipe"}),
		model.NewTextContent("research", "second document", nil),
	}
	if err := s.AddContent(ctx, "research", payloads); err != nil {
		t.Fatalf("adding content: %v", err)
	}

	events := drainEvents(t, s)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	seen := map[string]bool{}
	for _, e := range events {
		if e.Payload.Type != model.EventCreateContent {
			t.Fatalf("event type = %s, want create_content", e.Payload.Type)
		}
		seen[e.Payload.ContentID] = true
	}
	if !seen[payloads[0].ID] || !seen[payloads[1].ID] {
		t.Fatalf("events do not reference the ingested content: %v", seen)
	}

	// Re-ingesting identical content must not create rows or events.
	if err := s.AddContent(ctx, "research", payloads); err != nil {
		t.Fatalf("re-adding content: %v", err)
	}
	if events := drainEvents(t, s); len(events) != 2 {
		t.Fatalf("re-ingest created events: got %d, want 2", len(events))
	}

	got, err := s.GetContent(ctx, "research", payloads[0].ID)
	if err != nil {
		t.Fatalf("getting content: %v", err)
	}
	if got.Payload != "first document" || got.Metadata["topic"] != "pipe" {
		t.Fatalf("content round trip mismatch: %+v", got)
	}
}

func TestGetContentNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetContent(context.Background(), "research", "missing")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAcknowledgeEventIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustUpsertRepo(t, s, model.DataRepository{Name: "research"})
	if err := s.AddContent(ctx, "research", []model.ContentPayload{
		model.NewTextContent("research", "doc", nil),
	}); err != nil {
		t.Fatal(err)
	}

	events := drainEvents(t, s)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	id := events[0].ID
	if err := s.AcknowledgeEvent(ctx, id); err != nil {
		t.Fatalf("first ack: %v", err)
	}
	if err := s.AcknowledgeEvent(ctx, id); err != nil {
		t.Fatalf("second ack: %v", err)
	}
	if events := drainEvents(t, s); len(events) != 0 {
		t.Fatalf("acknowledged event still unprocessed: %d", len(events))
	}
}

func TestUpsertRepositoryEmitsBindingEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	repo := model.DataRepository{
		Name: "research",
		Bindings: []model.ExtractorBinding{
			{
				Name:      "keywords",
				Extractor: "keyword-extractor",
				Filters:   []filter.Predicate{filter.Eq("topic", "pipe")},
			},
		},
	}
	mustUpsertRepo(t, s, repo)

	events := drainEvents(t, s)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Payload.Type != model.EventBindingAdded || events[0].Payload.BindingID != "keywords" {
		t.Fatalf("unexpected event payload: %+v", events[0].Payload)
	}

	binding, err := s.BindingByID(ctx, "research", "keywords")
	if err != nil {
		t.Fatalf("resolving binding: %v", err)
	}
	if binding.Extractor != "keyword-extractor" || binding.Repository != "research" {
		t.Fatalf("binding round trip mismatch: %+v", binding)
	}
	if len(binding.Filters) != 1 || binding.Filters[0].Field != "topic" {
		t.Fatalf("binding filters lost: %+v", binding.Filters)
	}

	if _, err := s.BindingByID(ctx, "research", "no-such-binding"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("missing binding err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetRepository(ctx, "no-such-repo"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("missing repository err = %v, want ErrNotFound", err)
	}
}

func TestUpsertRepositoryRejectsBadFilters(t *testing.T) {
	s := newTestStore(t)
	repo := model.DataRepository{
		Name: "research",
		Bindings: []model.ExtractorBinding{
			{
				Name:      "broken",
				Extractor: "x",
				Filters:   []filter.Predicate{filter.Eq("tags", []any{"a", "b"})},
			},
		},
	}
	err := s.UpsertRepository(context.Background(), repo)
	if !errors.Is(err, apperrors.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
}

func TestContentMatchingBinding(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustUpsertRepo(t, s, model.DataRepository{Name: "research"})
	mustUpsertRepo(t, s, model.DataRepository{Name: "other"})

	pipeDoc := model.NewTextContent("research", "doc about pipes", map[string]any{"topic": "pipe"})
	bazDoc := model.NewTextContent("research", "doc about baz", map[string]any{"topic": "baz"})
	bareDoc := model.NewTextContent("research", "doc without topic", nil)
	foreign := model.NewTextContent("other", "doc elsewhere", map[string]any{"topic": "pipe"})
	if err := s.AddContent(ctx, "research", []model.ContentPayload{pipeDoc, bazDoc, bareDoc}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddContent(ctx, "other", []model.ContentPayload{foreign}); err != nil {
		t.Fatal(err)
	}

	eqBinding := model.ExtractorBinding{
		Name:       "pipe-only",
		Repository: "research",
		Extractor:  "keyword-extractor",
		Filters:    []filter.Predicate{filter.Eq("topic", "pipe")},
	}
	got, err := s.ContentMatchingBinding(ctx, "research", eqBinding, "")
	if err != nil {
		t.Fatalf("selecting candidates: %v", err)
	}
	if len(got) != 1 || got[0].ID != pipeDoc.ID {
		t.Fatalf("eq filter selected %d items, want only the pipe doc", len(got))
	}

	// neq skips both the mismatching doc and the doc missing the field,
	// matching the compiled ->> comparison against NULL.
	neqBinding := eqBinding
	neqBinding.Filters = []filter.Predicate{filter.Neq("topic", "pipe")}
	got, err = s.ContentMatchingBinding(ctx, "research", neqBinding, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != bazDoc.ID {
		t.Fatalf("neq filter selected %d items, want only the baz doc", len(got))
	}

	// No filters matches everything in the repository, nothing outside it.
	allBinding := eqBinding
	allBinding.Filters = nil
	got, err = s.ContentMatchingBinding(ctx, "research", allBinding, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("unfiltered binding selected %d items, want 3", len(got))
	}

	// Restricting to one content id.
	got, err = s.ContentMatchingBinding(ctx, "research", allBinding, bazDoc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != bazDoc.ID {
		t.Fatalf("content id restriction failed: %d items", len(got))
	}
}

func TestMarkContentProcessedExcludesCandidate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustUpsertRepo(t, s, model.DataRepository{Name: "research"})
	doc := model.NewTextContent("research", "doc", nil)
	if err := s.AddContent(ctx, "research", []model.ContentPayload{doc}); err != nil {
		t.Fatal(err)
	}

	binding := model.ExtractorBinding{Name: "b1", Repository: "research", Extractor: "x"}
	if err := s.MarkContentProcessed(ctx, doc.ID, "b1"); err != nil {
		t.Fatalf("marking processed: %v", err)
	}
	// Marking twice must be harmless.
	if err := s.MarkContentProcessed(ctx, doc.ID, "b1"); err != nil {
		t.Fatalf("re-marking processed: %v", err)
	}

	got, err := s.ContentMatchingBinding(ctx, "research", binding, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("processed content still selected: %d items", len(got))
	}

	// Completion is per binding: another binding still sees the content.
	other := model.ExtractorBinding{Name: "b2", Repository: "research", Extractor: "x"}
	got, err = s.ContentMatchingBinding(ctx, "research", other, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("completion marker leaked across bindings: %d items", len(got))
	}
}

func TestCreateWorkIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := model.NewWork("c1", "research", "keyword-extractor", "keywords", nil)
	if err := s.CreateWork(ctx, w); err != nil {
		t.Fatalf("creating work: %v", err)
	}
	// Move it forward, then re-create: the existing row must stand.
	if _, err := s.TransitionWorkState(ctx, w.ID, model.WorkInProgress); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateWork(ctx, w); err != nil {
		t.Fatalf("re-creating work: %v", err)
	}
	got, err := s.WorkByID(ctx, w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != model.WorkInProgress {
		t.Fatalf("re-create reset state to %s", got.State)
	}
}

func TestAssignWorkRejectsLostClaims(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := model.NewWork("c1", "research", "x", "b", nil)
	if err := s.CreateWork(ctx, w); err != nil {
		t.Fatal(err)
	}

	rejected, err := s.AssignWork(ctx, map[string]string{w.ID: "executor-1"})
	if err != nil {
		t.Fatalf("first assignment: %v", err)
	}
	if len(rejected) != 0 {
		t.Fatalf("first claim rejected: %v", rejected)
	}

	// A second claim for already-assigned work must be rejected, not
	// overwrite the winner.
	rejected, err = s.AssignWork(ctx, map[string]string{w.ID: "executor-2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rejected) != 1 || rejected[0] != w.ID {
		t.Fatalf("lost claim not reported: %v", rejected)
	}
	got, err := s.WorkByID(ctx, w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ExecutorID != "executor-1" {
		t.Fatalf("executor = %s, want executor-1", got.ExecutorID)
	}

	items, err := s.WorkForExecutor(ctx, "executor-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != w.ID {
		t.Fatalf("executor poll surface wrong: %v", items)
	}
	unallocated, err := s.UnallocatedWork(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(unallocated) != 0 {
		t.Fatalf("assigned work still unallocated: %v", unallocated)
	}
}

func TestTransitionWorkStateEnforcesTable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := model.NewWork("c1", "research", "x", "b", nil)
	if err := s.CreateWork(ctx, w); err != nil {
		t.Fatal(err)
	}

	got, err := s.TransitionWorkState(ctx, w.ID, model.WorkInProgress)
	if err != nil {
		t.Fatalf("Pending -> InProgress: %v", err)
	}
	if got.State != model.WorkInProgress {
		t.Fatalf("state = %s", got.State)
	}

	got, err = s.TransitionWorkState(ctx, w.ID, model.WorkCompleted)
	if err != nil {
		t.Fatalf("InProgress -> Completed: %v", err)
	}
	if got.State != model.WorkCompleted {
		t.Fatalf("state = %s", got.State)
	}

	// Terminal state must not move again.
	if _, err := s.TransitionWorkState(ctx, w.ID, model.WorkPending); !errors.Is(err, apperrors.ErrIllegalState) {
		t.Fatalf("Completed -> Pending err = %v, want ErrIllegalState", err)
	}
	if _, err := s.TransitionWorkState(ctx, w.ID, model.WorkInProgress); !errors.Is(err, apperrors.ErrIllegalState) {
		t.Fatalf("Completed -> InProgress err = %v, want ErrIllegalState", err)
	}

	// Pending work cannot jump straight to a terminal state.
	w2 := model.NewWork("c2", "research", "x", "b", nil)
	if err := s.CreateWork(ctx, w2); err != nil {
		t.Fatal(err)
	}
	if _, err := s.TransitionWorkState(ctx, w2.ID, model.WorkCompleted); !errors.Is(err, apperrors.ErrIllegalState) {
		t.Fatalf("Pending -> Completed err = %v, want ErrIllegalState", err)
	}

	if _, err := s.TransitionWorkState(ctx, "missing", model.WorkInProgress); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("missing work err = %v, want ErrNotFound", err)
	}
}

func TestRequeueExpiredWork(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.HeartbeatExecutor(ctx, "executor-1", "x", ""); err != nil {
		t.Fatal(err)
	}

	w := model.NewWork("c1", "research", "x", "b", nil)
	if err := s.CreateWork(ctx, w); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AssignWork(ctx, map[string]string{w.ID: "executor-1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.TransitionWorkState(ctx, w.ID, model.WorkInProgress); err != nil {
		t.Fatal(err)
	}

	// With a generous lease the executor is alive and nothing moves.
	n, err := s.RequeueExpiredWork(ctx, 3600)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("requeued %d items under a live lease", n)
	}

	// With a zero lease every heartbeat is stale.
	n, err = s.RequeueExpiredWork(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("requeued %d items, want 1", n)
	}
	got, err := s.WorkByID(ctx, w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != model.WorkPending || got.ExecutorID != "" {
		t.Fatalf("requeued work not reset: state=%s executor=%q", got.State, got.ExecutorID)
	}
}

func TestRequeueLeavesTerminalWorkAlone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.HeartbeatExecutor(ctx, "executor-1", "x", ""); err != nil {
		t.Fatal(err)
	}
	w := model.NewWork("c1", "research", "x", "b", nil)
	if err := s.CreateWork(ctx, w); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AssignWork(ctx, map[string]string{w.ID: "executor-1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.TransitionWorkState(ctx, w.ID, model.WorkInProgress); err != nil {
		t.Fatal(err)
	}
	if _, err := s.TransitionWorkState(ctx, w.ID, model.WorkCompleted); err != nil {
		t.Fatal(err)
	}

	n, err := s.RequeueExpiredWork(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("terminal work requeued: %d", n)
	}
}

func TestActiveExecutors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.HeartbeatExecutor(ctx, "e1", "ner", "10.0.0.1:9000"); err != nil {
		t.Fatal(err)
	}
	executors, err := s.ActiveExecutors(ctx, 3600)
	if err != nil {
		t.Fatal(err)
	}
	if len(executors) != 1 || executors[0].Extractor != "ner" || executors[0].Addr != "10.0.0.1:9000" {
		t.Fatalf("executors = %+v", executors)
	}
	executors, err = s.ActiveExecutors(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(executors) != 0 {
		t.Fatalf("stale executor reported active: %+v", executors)
	}
}

func TestIndexRegistry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	idx := model.Index{
		Name:         "research/embeddings",
		RepositoryID: "research",
		Extractor:    "embedder",
		StorageName:  "qdrant-research",
		Kind:         model.IndexKindEmbedding,
		Schema:       json.RawMessage(`{"dim": 384, "distance": "cosine"}`),
	}
	if err := s.RegisterIndex(ctx, idx); err != nil {
		t.Fatalf("registering index: %v", err)
	}
	// Re-registration is ignored.
	idx2 := idx
	idx2.StorageName = "somewhere-else"
	if err := s.RegisterIndex(ctx, idx2); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetIndex(ctx, "research/embeddings", "research")
	if err != nil {
		t.Fatal(err)
	}
	if got.StorageName != "qdrant-research" || got.Kind != model.IndexKindEmbedding {
		t.Fatalf("index round trip mismatch: %+v", got)
	}
	list, err := s.ListIndexes(ctx, "research")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("listed %d indexes, want 1", len(list))
	}
	if _, err := s.GetIndex(ctx, "missing", "research"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAttributesUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	attrs := model.NewExtractedAttributes("c1", "ner", json.RawMessage(`{"people":["ada"]}`))
	if err := s.UpsertAttributes(ctx, "research", "research/entities", attrs); err != nil {
		t.Fatalf("upserting attributes: %v", err)
	}
	// Re-extraction replaces the document under the same id.
	updated := model.NewExtractedAttributes("c1", "ner", json.RawMessage(`{"people":["ada","alan"]}`))
	if err := s.UpsertAttributes(ctx, "research", "research/entities", updated); err != nil {
		t.Fatal(err)
	}

	got, err := s.QueryAttributes(ctx, "research", "research/entities", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d rows, want 1", len(got))
	}
	var doc struct {
		People []string `json:"people"`
	}
	if err := json.Unmarshal(got[0].Attributes, &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.People) != 2 {
		t.Fatalf("attributes not replaced: %+v", doc)
	}

	none, err := s.QueryAttributes(ctx, "research", "research/entities", "other-content")
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Fatalf("content filter ignored: %v", none)
	}
}

func TestChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustUpsertRepo(t, s, model.DataRepository{Name: "research"})
	doc := model.NewTextContent("research", "long document", map[string]any{"topic": "pipe"})
	if err := s.AddContent(ctx, "research", []model.ContentPayload{doc}); err != nil {
		t.Fatal(err)
	}

	chunks := []model.Chunk{
		model.NewChunk(doc.ID, "long"),
		model.NewChunk(doc.ID, "document"),
	}
	if err := s.CreateChunks(ctx, chunks, "research/chunks"); err != nil {
		t.Fatalf("creating chunks: %v", err)
	}
	// Duplicate chunking converges.
	if err := s.CreateChunks(ctx, chunks, "research/chunks"); err != nil {
		t.Fatal(err)
	}

	got, err := s.ChunkWithID(ctx, chunks[0].ChunkID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "long" || got.Metadata["topic"] != "pipe" {
		t.Fatalf("chunk round trip mismatch: %+v", got)
	}
	if _, err := s.ChunkWithID(ctx, "missing"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestExtractorRegistry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.RecordExtractors(ctx, []model.Extractor{{
		Name:        "keyword-extractor",
		Description: "term frequency over inline text",
		Outputs: map[string]model.OutputSchema{
			"keywords": {Kind: model.IndexKindAttributes},
		},
	}}); err != nil {
		t.Fatalf("recording extractor: %v", err)
	}
	// Re-recording updates the description.
	if err := s.RecordExtractors(ctx, []model.Extractor{{
		Name:        "keyword-extractor",
		Description: "updated description",
		Outputs:     map[string]model.OutputSchema{},
	}}); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetExtractor(ctx, "keyword-extractor")
	if err != nil {
		t.Fatal(err)
	}
	if got.Description != "updated description" {
		t.Fatalf("description = %s", got.Description)
	}
	list, err := s.ListExtractors(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("listed %d extractors, want 1", len(list))
	}
}

func TestTimelineEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	events := []model.TimelineEvent{
		model.NewTimelineEvent("content uploaded", 100, map[string]any{"by": "alice"}),
		model.NewTimelineEvent("extraction finished", 200, nil),
	}
	if err := s.AddTimelineEvents(ctx, "research", events); err != nil {
		t.Fatalf("adding timeline events: %v", err)
	}
	// Duplicate ids are absorbed.
	if err := s.AddTimelineEvents(ctx, "research", events[:1]); err != nil {
		t.Fatal(err)
	}
	got, err := s.ListTimelineEvents(ctx, "research")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].UnixTimestamp != 100 || got[1].UnixTimestamp != 200 {
		t.Fatalf("events not ordered by timestamp: %+v", got)
	}
	if got[0].Metadata["by"] != "alice" {
		t.Fatalf("metadata lost: %+v", got[0])
	}
}
