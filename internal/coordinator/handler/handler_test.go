package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/coordinator"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/coordinator/handler"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/coordinator/router"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/filter"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/model"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/scheduler"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/postgres"
)

// newTestServer wires the real handler and router against a test database,
// with auth, rate limiting, caching, and Kafka disabled. Tests are skipped
// when PostgreSQL is unavailable.
func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	db, err := postgres.New(config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "extractionplatform_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "extractionplatform"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		t.Skipf("skipping handler test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	st := store.New(db)
	ctx := context.Background()
	if err := st.Migrate(ctx); err != nil {
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

	h := handler.New(st, nil, nil, nil, nil)
	srv := httptest.NewServer(router.New(router.Deps{Handler: h}))
	t.Cleanup(srv.Close)
	return srv, st
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

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s response: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func TestEndToEndExtractionFlow(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	// Register a repository with a filtered binding.
	status := doJSON(t, http.MethodPost, srv.URL+"/api/v1/repositories", coordinator.UpsertRepositoryRequest{
		Name: "research",
		Bindings: []coordinator.BindingSpec{
			{
				Name:      "keywords",
				Extractor: "keyword-extractor",
				Filters:   []filter.Predicate{filter.Eq("topic", "pipe")},
			},
		},
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("upsert repository status = %d", status)
	}

	// Ingest two documents; only one matches the binding filter.
	var ingest coordinator.IngestContentResponse
	status = doJSON(t, http.MethodPost, srv.URL+"/api/v1/repositories/research/content", coordinator.IngestContentRequest{
		Texts: []coordinator.TextItem{
			{Text: "pipes everywhere", Metadata: map[string]any{"topic": "pipe"}},
			{Text: "unrelated", Metadata: map[string]any{"topic": "baz"}},
		},
	}, &ingest)
	if status != http.StatusOK {
		t.Fatalf("ingest status = %d", status)
	}
	if len(ingest.ContentIDs) != 2 {
		t.Fatalf("ingest returned %d ids, want 2", len(ingest.ContentIDs))
	}

	// The scheduler turns the logged events into work.
	sched := scheduler.New(st, nil, nil, config.SchedulerConfig{LeaseTimeout: time.Minute})
	if _, err := sched.DrainOnce(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	// Executor comes online and the allocator hands it the work.
	status = doJSON(t, http.MethodPost, srv.URL+"/api/v1/executors/e1/heartbeat", coordinator.HeartbeatRequest{
		Extractor: "keyword-extractor",
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("heartbeat status = %d", status)
	}
	if _, err := sched.AllocateOnce(ctx); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	var poll struct {
		Work []model.Work `json:"work"`
	}
	status = doJSON(t, http.MethodGet, srv.URL+"/api/v1/executors/e1/work", nil, &poll)
	if status != http.StatusOK {
		t.Fatalf("poll status = %d", status)
	}
	if len(poll.Work) != 1 {
		t.Fatalf("executor polled %d items, want 1", len(poll.Work))
	}
	w := poll.Work[0]
	if w.Binding != "keywords" {
		t.Fatalf("work binding = %s", w.Binding)
	}

	// Drive the work to Completed over the API.
	workURL := fmt.Sprintf("%s/api/v1/work/%s/state", srv.URL, w.ID)
	if status := doJSON(t, http.MethodPost, workURL, coordinator.TransitionWorkRequest{State: "InProgress"}, nil); status != http.StatusOK {
		t.Fatalf("InProgress status = %d", status)
	}
	var done model.Work
	if status := doJSON(t, http.MethodPost, workURL, coordinator.TransitionWorkRequest{State: "Completed"}, &done); status != http.StatusOK {
		t.Fatalf("Completed status = %d", status)
	}
	if done.State != model.WorkCompleted {
		t.Fatalf("state = %s", done.State)
	}

	// Terminal state is sticky: the illegal jump is rejected with 409.
	if status := doJSON(t, http.MethodPost, workURL, coordinator.TransitionWorkRequest{State: "Pending"}, nil); status != http.StatusConflict {
		t.Fatalf("illegal transition status = %d, want 409", status)
	}

	// Completion marked the content processed: a repeat drain creates no
	// further work for the binding.
	binding, err := st.BindingByID(ctx, "research", "keywords")
	if err != nil {
		t.Fatal(err)
	}
	candidates, err := st.ContentMatchingBinding(ctx, "research", binding, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 0 {
		t.Fatalf("completed content still a candidate: %d items", len(candidates))
	}
}

func TestIngestValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	// Empty request body carries no content.
	status := doJSON(t, http.MethodPost, srv.URL+"/api/v1/repositories/research/content", coordinator.IngestContentRequest{}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("empty ingest status = %d, want 400", status)
	}

	// Unknown repository is a 404.
	status = doJSON(t, http.MethodPost, srv.URL+"/api/v1/repositories/ghost/content", coordinator.IngestContentRequest{
		Texts: []coordinator.TextItem{{Text: "hello"}},
	}, nil)
	if status != http.StatusNotFound {
		t.Fatalf("unknown repository status = %d, want 404", status)
	}
}

func TestWorkNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	status := doJSON(t, http.MethodGet, srv.URL+"/api/v1/work/nope", nil, nil)
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", status)
	}
}

func TestRegisterIndexRejectsUnknownKind(t *testing.T) {
	srv, _ := newTestServer(t)
	status := doJSON(t, http.MethodPost, srv.URL+"/api/v1/indexes", coordinator.RegisterIndexRequest{
		Repository: "research",
		Name:       "research/whatever",
		Kind:       "holographic",
	}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
}
