package executor

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/model"
)

func TestKeywordExtractor(t *testing.T) {
	e := NewKeywordExtractor("keyword-extractor")
	if e.Name() != "keyword-extractor" {
		t.Fatalf("name = %s", e.Name())
	}
	content := model.NewTextContent("repo", "the pipeline moves data. the pipeline never sleeps.", nil)
	out, err := e.Extract(context.Background(), content, nil)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	var doc struct {
		WordCount int `json:"word_count"`
		Keywords  []struct {
			Term  string `json:"term"`
			Count int    `json:"count"`
		} `json:"keywords"`
	}
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if doc.WordCount != 8 {
		t.Fatalf("word_count = %d, want 8", doc.WordCount)
	}
	if len(doc.Keywords) == 0 || doc.Keywords[0].Term != "pipeline" || doc.Keywords[0].Count != 2 {
		t.Fatalf("top keyword = %+v, want pipeline x2", doc.Keywords)
	}
}

func TestKeywordExtractorMaxKeywords(t *testing.T) {
	e := NewKeywordExtractor("keyword-extractor")
	content := model.NewTextContent("repo", "alpha bravo charlie delta echo foxtrot", nil)
	out, err := e.Extract(context.Background(), content, json.RawMessage(`{"max_keywords": 2}`))
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	var doc struct {
		Keywords []any `json:"keywords"`
	}
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Keywords) != 2 {
		t.Fatalf("keywords = %d, want 2", len(doc.Keywords))
	}
}

func TestKeywordExtractorRejectsBlobPayload(t *testing.T) {
	e := NewKeywordExtractor("keyword-extractor")
	content := model.NewFileContent("repo", "doc.pdf", "/blobs/x")
	if _, err := e.Extract(context.Background(), content, nil); err == nil {
		t.Fatal("blob-backed payload must be rejected")
	}
}

func TestKeywordExtractorBadParams(t *testing.T) {
	e := NewKeywordExtractor("keyword-extractor")
	content := model.NewTextContent("repo", "hello there", nil)
	if _, err := e.Extract(context.Background(), content, json.RawMessage(`{`)); err == nil {
		t.Fatal("malformed params must be rejected")
	}
}
