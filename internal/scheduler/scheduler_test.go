package scheduler

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/filter"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/model"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/postgres"
)

func newTestScheduler(t *testing.T) (*Scheduler, *store.Store) {
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
		t.Skipf("skipping scheduler test: postgres unavailable: %v", err)
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

	cfg := config.SchedulerConfig{
		DrainInterval:    time.Second,
		AllocateInterval: time.Second,
		LeaseTimeout:     time.Minute,
		MaxEventsPerPass: 100,
	}
	return New(st, nil, nil, cfg), st
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

func TestDrainCreatesWorkForNewContent(t *testing.T) {
	sched, st := newTestScheduler(t)
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
	if err := st.UpsertRepository(ctx, repo); err != nil {
		t.Fatal(err)
	}
	// Drain the binding-added event first so the later pass only handles
	// the content event.
	if _, err := sched.DrainOnce(ctx); err != nil {
		t.Fatal(err)
	}

	matching := model.NewTextContent("research", "pipes everywhere", map[string]any{"topic": "pipe"})
	ignored := model.NewTextContent("research", "nothing to see", map[string]any{"topic": "baz"})
	if err := st.AddContent(ctx, "research", []model.ContentPayload{matching, ignored}); err != nil {
		t.Fatal(err)
	}

	acked, err := sched.DrainOnce(ctx)
	if err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if acked != 2 {
		t.Fatalf("acked %d events, want 2", acked)
	}

	unallocated, err := st.UnallocatedWork(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(unallocated) != 1 {
		t.Fatalf("got %d work items, want 1 (filter must exclude the baz doc)", len(unallocated))
	}
	w := unallocated[0]
	if w.ContentID != matching.ID || w.Extractor != "keyword-extractor" || w.Binding != "keywords" {
		t.Fatalf("work fields wrong: %+v", w)
	}

	// Draining again with no new events changes nothing.
	if _, err := sched.DrainOnce(ctx); err != nil {
		t.Fatal(err)
	}
	unallocated, err = st.UnallocatedWork(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(unallocated) != 1 {
		t.Fatalf("repeat drain duplicated work: %d items", len(unallocated))
	}
}

func TestDrainCreatesWorkForNewBinding(t *testing.T) {
	sched, st := newTestScheduler(t)
	ctx := context.Background()

	// Content first, in a repository with no bindings yet.
	if err := st.UpsertRepository(ctx, model.DataRepository{Name: "research"}); err != nil {
		t.Fatal(err)
	}
	docA := model.NewTextContent("research", "first", nil)
	docB := model.NewTextContent("research", "second", nil)
	if err := st.AddContent(ctx, "research", []model.ContentPayload{docA, docB}); err != nil {
		t.Fatal(err)
	}
	if _, err := sched.DrainOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if unallocated, _ := st.UnallocatedWork(ctx); len(unallocated) != 0 {
		t.Fatalf("no bindings but %d work items created", len(unallocated))
	}

	// Adding a binding backfills work for all existing content.
	repo := model.DataRepository{
		Name: "research",
		Bindings: []model.ExtractorBinding{
			{Name: "keywords", Extractor: "keyword-extractor"},
		},
	}
	if err := st.UpsertRepository(ctx, repo); err != nil {
		t.Fatal(err)
	}
	if _, err := sched.DrainOnce(ctx); err != nil {
		t.Fatal(err)
	}

	unallocated, err := st.UnallocatedWork(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(unallocated) != 2 {
		t.Fatalf("got %d work items, want 2", len(unallocated))
	}
}

func TestAllocateOnceAssignsToMatchingExecutor(t *testing.T) {
	sched, st := newTestScheduler(t)
	ctx := context.Background()

	if err := st.HeartbeatExecutor(ctx, "e1", "keyword-extractor", ""); err != nil {
		t.Fatal(err)
	}
	w := model.NewWork("c1", "research", "keyword-extractor", "keywords", nil)
	if err := st.CreateWork(ctx, w); err != nil {
		t.Fatal(err)
	}
	other := model.NewWork("c1", "research", "ocr", "scans", nil)
	if err := st.CreateWork(ctx, other); err != nil {
		t.Fatal(err)
	}

	assigned, err := sched.AllocateOnce(ctx)
	if err != nil {
		t.Fatalf("allocation failed: %v", err)
	}
	if assigned != 1 {
		t.Fatalf("assigned %d items, want 1", assigned)
	}
	items, err := st.WorkForExecutor(ctx, "e1")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != w.ID {
		t.Fatalf("executor work = %+v", items)
	}
	// Work for an extractor with no executor stays in the pool.
	unallocated, err := st.UnallocatedWork(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(unallocated) != 1 || unallocated[0].ID != other.ID {
		t.Fatalf("unallocated = %+v", unallocated)
	}
}

func TestRequeueOnce(t *testing.T) {
	sched, st := newTestScheduler(t)
	ctx := context.Background()

	if err := st.HeartbeatExecutor(ctx, "e1", "x", ""); err != nil {
		t.Fatal(err)
	}
	w := model.NewWork("c1", "research", "x", "b", nil)
	if err := st.CreateWork(ctx, w); err != nil {
		t.Fatal(err)
	}
	if _, err := st.AssignWork(ctx, map[string]string{w.ID: "e1"}); err != nil {
		t.Fatal(err)
	}

	// Live lease: nothing to requeue.
	n, err := sched.RequeueOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("requeued %d under a live lease", n)
	}

	// Collapse the lease and the work returns to the pool.
	sched.cfg.LeaseTimeout = 0
	n, err = sched.RequeueOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("requeued %d, want 1", n)
	}
}
