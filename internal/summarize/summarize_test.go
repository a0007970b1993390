package summarize

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mhultman/oncodigest/internal/article"
)

type mockProvider struct {
	mu       sync.Mutex
	calls    int
	response string
	failFor  func(prompt string) bool
}

func (m *mockProvider) Generate(_ context.Context, prompt string, _ int) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.failFor != nil && m.failFor(prompt) {
		return "", errors.New("model unavailable")
	}
	return m.response, nil
}

func (m *mockProvider) IsConfigured() bool { return true }

const validResponse = `{
	"research_direction": "CAR-T engineering",
	"key_findings": "Improved persistence in solid tumors.",
	"innovations": "Novel costimulatory domain.",
	"clinical_relevance": "Phase I candidate.",
	"quality_tier": "S2"
}`

func testArticles(n int) []article.Article {
	arts := make([]article.Article, n)
	for i := range arts {
		arts[i] = article.Article{
			ID:       string(rune('a' + i)),
			Title:    "Title " + string(rune('a'+i)),
			Abstract: "Abstract text",
			Venue:    "Nature",
		}
	}
	return arts
}

func TestSummarizeAllAttachesSummaries(t *testing.T) {
	p := &mockProvider{response: validResponse}
	s := New(p, Options{Concurrency: 2, MaxRetries: 1})

	arts := testArticles(3)
	r := s.SummarizeAll(context.Background(), arts)

	if r.Summarized != 3 || r.Failed != 0 {
		t.Fatalf("result = %+v, want 3 summarized", r)
	}
	for _, a := range arts {
		if a.Summary == nil {
			t.Fatalf("article %s has nil summary", a.ID)
		}
		if a.Summary.QualityTier != "S2" {
			t.Errorf("tier = %q, want S2", a.Summary.QualityTier)
		}
		if a.Summary.ResearchDirection != "CAR-T engineering" {
			t.Errorf("direction = %q", a.Summary.ResearchDirection)
		}
	}
}

func TestSummarizeAllFailuresKeepArticle(t *testing.T) {
	p := &mockProvider{
		response: validResponse,
		failFor: func(prompt string) bool {
			return strings.Contains(prompt, "Title b")
		},
	}
	s := New(p, Options{Concurrency: 1, MaxRetries: 2, RetryDelay: time.Millisecond})

	arts := testArticles(3)
	r := s.SummarizeAll(context.Background(), arts)

	if r.Summarized != 2 || r.Failed != 1 {
		t.Fatalf("result = %+v, want 2 summarized 1 failed", r)
	}
	if arts[1].Summary != nil {
		t.Error("failed article should keep nil summary")
	}
	if arts[0].Summary == nil || arts[2].Summary == nil {
		t.Error("other articles should still be summarized")
	}
}

func TestSummarizeAllInvalidTierClamped(t *testing.T) {
	p := &mockProvider{response: strings.Replace(validResponse, "S2", "excellent", 1)}
	s := New(p, Options{MaxRetries: 1})

	arts := testArticles(1)
	s.SummarizeAll(context.Background(), arts)

	if arts[0].Summary == nil {
		t.Fatal("expected summary")
	}
	if arts[0].Summary.QualityTier != "S3" {
		t.Errorf("tier = %q, want clamped S3", arts[0].Summary.QualityTier)
	}
}

func TestSummarizeAllNilProvider(t *testing.T) {
	s := New(nil, Options{})
	arts := testArticles(2)
	r := s.SummarizeAll(context.Background(), arts)
	if r.Failed != 2 || r.Summarized != 0 {
		t.Fatalf("result = %+v, want all failed", r)
	}
}

func TestSummarizeAllRetries(t *testing.T) {
	var mu sync.Mutex
	failures := 1
	p := &mockProvider{response: validResponse}
	p.failFor = func(string) bool {
		mu.Lock()
		defer mu.Unlock()
		if failures > 0 {
			failures--
			return true
		}
		return false
	}
	s := New(p, Options{MaxRetries: 3, RetryDelay: time.Millisecond})

	arts := testArticles(1)
	r := s.SummarizeAll(context.Background(), arts)
	if r.Summarized != 1 {
		t.Fatalf("result = %+v, want success after retry", r)
	}
}

func TestSummarizeTrends(t *testing.T) {
	p := &mockProvider{response: `{
		"hot_directions": "Immunotherapy dominates.",
		"emerging_techniques": "Spatial transcriptomics.",
		"potential_breakthroughs": "None apparent"
	}`}
	s := New(p, Options{MaxRetries: 1})

	arts := testArticles(2)
	arts[0].Summary = &article.Summary{ResearchDirection: "CAR-T", KeyFindings: "x"}

	trend := s.SummarizeTrends(context.Background(), arts)
	if trend == nil {
		t.Fatal("expected trend summary")
	}
	if trend.HotDirections != "Immunotherapy dominates." {
		t.Errorf("hot directions = %q", trend.HotDirections)
	}
}

func TestSummarizeTrendsFailureReturnsNil(t *testing.T) {
	p := &mockProvider{failFor: func(string) bool { return true }}
	s := New(p, Options{MaxRetries: 1})

	if trend := s.SummarizeTrends(context.Background(), testArticles(1)); trend != nil {
		t.Errorf("expected nil trend on failure, got %+v", trend)
	}
}
