// Package summarize enriches filtered articles with structured AI
// summaries and produces the batch-level trend overview.
package summarize

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/mhultman/oncodigest/internal/article"
	"github.com/mhultman/oncodigest/internal/llm"
	"github.com/mhultman/oncodigest/internal/retry"
)

const articlePrompt = `You are an oncology research analyst preparing a briefing for cancer researchers and clinicians.

Summarize this publication. Be specific about methods, targets, and outcomes. Avoid hype.

Title: %s
Venue: %s
Authors: %s
Abstract:
%s

Respond with ONLY this JSON:
{
    "research_direction": "One sentence naming the research direction this work belongs to",
    "key_findings": "2-3 sentences on the main results",
    "innovations": "1-2 sentences on what is methodologically or conceptually new",
    "clinical_relevance": "1-2 sentences on translational or clinical implications, or 'None apparent'",
    "quality_tier": "S1" | "S2" | "S3" | "S4" | "S5"
}

quality_tier: S1 = landmark result in a top venue, S2 = strong result, S3 = solid incremental work, S4 = preliminary, S5 = weak or out of scope.`

const trendPrompt = `You are an oncology research analyst. Below are the summarized publications from the current reporting window.

%s

Respond with ONLY this JSON:
{
    "hot_directions": "2-3 sentences on the research directions with the most activity in this batch",
    "emerging_techniques": "1-2 sentences on new methods or technologies appearing across papers",
    "potential_breakthroughs": "1-2 sentences on the results most likely to matter clinically, or 'None apparent'"
}`

// Result holds the results of a summarization run.
type Result struct {
	Summarized int
	Failed     int
}

// Options tune the summarization run.
type Options struct {
	Concurrency int
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

// Summarizer attaches structured summaries to articles using an LLM.
type Summarizer struct {
	provider llm.Provider
	opts     Options
}

// New creates a summarizer over the given provider.
func New(provider llm.Provider, opts Options) *Summarizer {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	return &Summarizer{provider: provider, opts: opts}
}

// SummarizeAll enriches every article in place with a bounded worker
// pool. Articles whose summarization fails keep a nil Summary and are
// counted, never dropped.
func (s *Summarizer) SummarizeAll(ctx context.Context, articles []article.Article) *Result {
	r := &Result{}
	if len(articles) == 0 {
		return r
	}
	if s.provider == nil {
		log.Println("No LLM provider available, articles will be delivered without summaries")
		r.Failed = len(articles)
		return r
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.opts.Concurrency)
	)
	for i := range articles {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(a *article.Article) {
			defer wg.Done()
			defer func() { <-sem }()

			summary, err := s.summarizeOne(ctx, *a)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("Summarization failed for %s: %v", a.ID, err)
				r.Failed++
				return
			}
			a.Summary = summary
			r.Summarized++
		}(&articles[i])
	}
	wg.Wait()

	// Workers we never started count as failures too.
	if missed := len(articles) - r.Summarized - r.Failed; missed > 0 {
		r.Failed += missed
	}

	log.Printf("Summarization complete: %d summarized, %d failed", r.Summarized, r.Failed)
	return r
}

func (s *Summarizer) summarizeOne(ctx context.Context, a article.Article) (*article.Summary, error) {
	venue := a.Venue
	if venue == "" {
		venue = "bioRxiv preprint"
	}
	prompt := fmt.Sprintf(articlePrompt, a.Title, venue, strings.Join(a.Authors, ", "), a.Abstract)

	var parsed struct {
		ResearchDirection string `json:"research_direction"`
		KeyFindings       string `json:"key_findings"`
		Innovations       string `json:"innovations"`
		ClinicalRelevance string `json:"clinical_relevance"`
		QualityTier       string `json:"quality_tier"`
	}

	err := retry.Do(ctx, retry.Config{MaxAttempts: s.opts.MaxRetries, Delay: s.opts.RetryDelay}, func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()

		response, err := s.provider.Generate(callCtx, prompt, s.opts.MaxTokens)
		if err != nil {
			return err
		}
		return llm.ParseJSONResponse(response, &parsed)
	})
	if err != nil {
		return nil, err
	}

	return &article.Summary{
		ResearchDirection: strings.TrimSpace(parsed.ResearchDirection),
		KeyFindings:       strings.TrimSpace(parsed.KeyFindings),
		Innovations:       strings.TrimSpace(parsed.Innovations),
		ClinicalRelevance: strings.TrimSpace(parsed.ClinicalRelevance),
		QualityTier:       article.ClampTier(strings.TrimSpace(parsed.QualityTier)),
	}, nil
}

// SummarizeTrends generates the batch-level overview from already
// summarized articles. Returns nil when no provider is available or
// the call fails; the digest renders without a trend section then.
func (s *Summarizer) SummarizeTrends(ctx context.Context, articles []article.Article) *article.TrendSummary {
	if s.provider == nil || len(articles) == 0 {
		return nil
	}

	var b strings.Builder
	for i, a := range articles {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, a.Title, a.Venue)
		if a.Summary != nil {
			fmt.Fprintf(&b, "   Direction: %s\n   Findings: %s\n", a.Summary.ResearchDirection, a.Summary.KeyFindings)
		}
	}
	prompt := fmt.Sprintf(trendPrompt, b.String())

	var parsed struct {
		HotDirections          string `json:"hot_directions"`
		EmergingTechniques     string `json:"emerging_techniques"`
		PotentialBreakthroughs string `json:"potential_breakthroughs"`
	}

	err := retry.Do(ctx, retry.Config{MaxAttempts: s.opts.MaxRetries, Delay: s.opts.RetryDelay}, func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()

		response, err := s.provider.Generate(callCtx, prompt, s.opts.MaxTokens)
		if err != nil {
			return err
		}
		return llm.ParseJSONResponse(response, &parsed)
	})
	if err != nil {
		log.Printf("Trend summarization failed: %v", err)
		return nil
	}

	return &article.TrendSummary{
		HotDirections:          strings.TrimSpace(parsed.HotDirections),
		EmergingTechniques:     strings.TrimSpace(parsed.EmergingTechniques),
		PotentialBreakthroughs: strings.TrimSpace(parsed.PotentialBreakthroughs),
	}
}
