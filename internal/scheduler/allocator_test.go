package scheduler

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/model"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/store"
)

func work(id, extractor string) model.Work {
	return model.Work{ID: id, Extractor: extractor, State: model.WorkPending}
}

func TestPlanAssignmentsMatchesExtractor(t *testing.T) {
	unallocated := []model.Work{work("w1", "ner"), work("w2", "embed")}
	executors := []store.ExecutorInfo{
		{ID: "e-ner", Extractor: "ner"},
		{ID: "e-embed", Extractor: "embed"},
	}
	plan := planAssignments(unallocated, executors)
	if plan["w1"] != "e-ner" {
		t.Fatalf("w1 assigned to %s, want e-ner", plan["w1"])
	}
	if plan["w2"] != "e-embed" {
		t.Fatalf("w2 assigned to %s, want e-embed", plan["w2"])
	}
}

func TestPlanAssignmentsRoundRobin(t *testing.T) {
	unallocated := []model.Work{work("w1", "ner"), work("w2", "ner"), work("w3", "ner")}
	executors := []store.ExecutorInfo{
		{ID: "e1", Extractor: "ner"},
		{ID: "e2", Extractor: "ner"},
	}
	plan := planAssignments(unallocated, executors)
	if len(plan) != 3 {
		t.Fatalf("planned %d assignments, want 3", len(plan))
	}
	counts := map[string]int{}
	for _, executor := range plan {
		counts[executor]++
	}
	if counts["e1"] == 0 || counts["e2"] == 0 {
		t.Fatalf("round robin did not spread work: %v", counts)
	}
}

func TestPlanAssignmentsSkipsUnmatchedWork(t *testing.T) {
	unallocated := []model.Work{work("w1", "ocr")}
	executors := []store.ExecutorInfo{{ID: "e1", Extractor: "ner"}}
	plan := planAssignments(unallocated, executors)
	if len(plan) != 0 {
		t.Fatalf("work without a matching executor must stay unassigned, got %v", plan)
	}
}

func TestPlanAssignmentsWildcardExecutor(t *testing.T) {
	unallocated := []model.Work{work("w1", "ocr"), work("w2", "ner")}
	executors := []store.ExecutorInfo{{ID: "any", Extractor: ""}}
	plan := planAssignments(unallocated, executors)
	if plan["w1"] != "any" || plan["w2"] != "any" {
		t.Fatalf("wildcard executor must accept all work, got %v", plan)
	}
}

func TestPlanAssignmentsNoExecutors(t *testing.T) {
	plan := planAssignments([]model.Work{work("w1", "ner")}, nil)
	if len(plan) != 0 {
		t.Fatalf("no executors means no assignments, got %v", plan)
	}
}
