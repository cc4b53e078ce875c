package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/model"
)

// keywordParams tunes the keyword extractor per binding.
type keywordParams struct {
	MaxKeywords int `json:"max_keywords"`
}

// KeywordExtractor is a reference extractor for inline text payloads. It
// emits word statistics and the most frequent terms as an attribute
// document. Blob-backed payloads are rejected; fetching blobs is the job of
// a storage-aware extractor.
type KeywordExtractor struct {
	name string
}

// NewKeywordExtractor creates a KeywordExtractor registered under name.
func NewKeywordExtractor(name string) *KeywordExtractor {
	return &KeywordExtractor{name: name}
}

func (e *KeywordExtractor) Name() string { return e.name }

func (e *KeywordExtractor) Extract(ctx context.Context, content model.ContentPayload, params json.RawMessage) (json.RawMessage, error) {
	if content.PayloadType != model.PayloadEmbedded {
		return nil, fmt.Errorf("content %s: payload type %s is not extractable inline", content.ID, content.PayloadType)
	}
	p := keywordParams{MaxKeywords: 10}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decoding extractor params: %w", err)
		}
	}

	words := strings.Fields(strings.ToLower(content.Payload))
	counts := make(map[string]int)
	for _, word := range words {
		word = strings.Trim(word, ".,;:!?\"'()[]{}")
		if len(word) < 3 {
			continue
		}
		counts[word]++
	}

	type keyword struct {
		Term  string `json:"term"`
		Count int    `json:"count"`
	}
	keywords := make([]keyword, 0, len(counts))
	for term, count := range counts {
		keywords = append(keywords, keyword{Term: term, Count: count})
	}
	sort.Slice(keywords, func(i, j int) bool {
		if keywords[i].Count != keywords[j].Count {
			return keywords[i].Count > keywords[j].Count
		}
		return keywords[i].Term < keywords[j].Term
	})
	if p.MaxKeywords > 0 && len(keywords) > p.MaxKeywords {
		keywords = keywords[:p.MaxKeywords]
	}

	return json.Marshal(map[string]any{
		"word_count": len(words),
		"keywords":   keywords,
	})
}
