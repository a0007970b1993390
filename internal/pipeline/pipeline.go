// Package pipeline orchestrates one digest run: fetch, normalize,
// deduplicate, filter, summarize, assemble, deliver.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/mhultman/oncodigest/internal/article"
	"github.com/mhultman/oncodigest/internal/config"
	"github.com/mhultman/oncodigest/internal/dedup"
	"github.com/mhultman/oncodigest/internal/digest"
	"github.com/mhultman/oncodigest/internal/llm"
	"github.com/mhultman/oncodigest/internal/source"
	"github.com/mhultman/oncodigest/internal/store"
	"github.com/mhultman/oncodigest/internal/summarize"
	"github.com/mhultman/oncodigest/internal/topic"
)

// ErrRunInProgress is returned when a run is requested while another
// one is still executing.
var ErrRunInProgress = errors.New("a digest run is already in progress")

// Deliverer sends an assembled digest to its recipients.
type Deliverer interface {
	SendDigest(subject, bodyMarkdown string) error
}

// Outcome is what one run produced.
type Outcome struct {
	Record store.RunRecord
	Digest *digest.Digest
}

// Options tune a single run.
type Options struct {
	PeriodLabel string
	// Preview skips delivery, persistence, and seen-marking; the
	// assembled digest is only returned.
	Preview bool
}

// Pipeline runs the digest generation end to end. At most one run
// executes at a time.
type Pipeline struct {
	cfg        *config.Config
	store      *store.Store
	summarizer *summarize.Summarizer
	deliverer  Deliverer
	sources    []source.Adapter

	running sync.Mutex
	now     func() time.Time
}

// New wires a pipeline from configuration. The deliverer may be nil
// (email disabled); digests are then only persisted.
func New(cfg *config.Config, st *store.Store, provider llm.Provider, deliverer Deliverer) *Pipeline {
	var adapters []source.Adapter
	if cfg.Sources.Biorxiv.Enabled {
		adapters = append(adapters, source.NewBiorxiv(cfg.Sources.Biorxiv.FeedURLs, cfg.Sources.Biorxiv.MaxItems))
	}
	if cfg.Sources.Pubmed.Enabled {
		adapters = append(adapters, source.NewPubmed(cfg.Sources.Pubmed.Journals, searchTerms(cfg), cfg.Sources.Pubmed.MaxItems))
	}

	summ := cfg.Summarizer
	return &Pipeline{
		cfg:   cfg,
		store: st,
		summarizer: summarize.New(provider, summarize.Options{
			Concurrency: summ.Concurrency,
			MaxTokens:   summ.MaxTokens,
			Timeout:     time.Duration(summ.TimeoutSecs) * time.Second,
			MaxRetries:  summ.MaxRetries,
			RetryDelay:  time.Duration(summ.RetryDelaySecs) * time.Second,
		}),
		deliverer: deliverer,
		sources:   adapters,
		now:       time.Now,
	}
}

// searchTerms flattens the first query group into the PubMed search
// term; the full CNF filter is applied locally after normalization.
func searchTerms(cfg *config.Config) []string {
	if len(cfg.Topics.QueryGroups) == 0 {
		return nil
	}
	return cfg.Topics.QueryGroups[0]
}

// Run executes one digest run. All counters land in the returned
// record even when the run fails partway.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Outcome, error) {
	if !p.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer p.running.Unlock()

	timeout := time.Duration(p.cfg.RunTimeoutMinutes) * time.Minute
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := p.now()
	rec := store.RunRecord{PeriodLabel: opts.PeriodLabel, Status: store.StatusRunning, StartedAt: started}
	if !opts.Preview {
		id, err := p.store.StartRun(opts.PeriodLabel, started)
		if err != nil {
			return nil, fmt.Errorf("recording run start: %w", err)
		}
		rec.ID = id
	}

	outcome, runErr := p.execute(ctx, opts, &rec)

	if !opts.Preview {
		finished := p.now()
		rec.FinishedAt = &finished
		if err := p.store.FinishRun(rec); err != nil {
			log.Printf("Error finishing run record: %v", err)
		}
		p.housekeeping(finished)
	}

	if outcome == nil {
		outcome = &Outcome{}
	}
	outcome.Record = rec
	return outcome, runErr
}

func (p *Pipeline) execute(ctx context.Context, opts Options, rec *store.RunRecord) (*Outcome, error) {
	now := p.now().In(p.cfg.Location())

	// Fetch all enabled sources concurrently. One unavailable source
	// degrades the run; all unavailable fails it.
	records, sourceErrs := p.fetchAll(ctx, now)
	rec.Fetched = len(records)
	rec.SourcesAttempted = len(p.sources)
	rec.SourcesSucceeded = len(p.sources) - len(sourceErrs)
	if len(sourceErrs) == len(p.sources) && len(p.sources) > 0 {
		rec.Status = store.StatusFailed
		rec.Error = joinErrors(sourceErrs)
		return nil, fmt.Errorf("all sources unavailable: %s", rec.Error)
	}

	articles := p.normalizeAll(records, now, rec)

	deduper := dedup.New(article.KeyOptions{BucketHours: p.cfg.DedupBucketHours})
	var seen dedup.SeenSet
	if !opts.Preview {
		seen = p.store
	}
	dedupResult, err := deduper.Dedupe(articles, seen)
	if err != nil {
		rec.Status = store.StatusFailed
		rec.Error = err.Error()
		return nil, fmt.Errorf("deduplicating: %w", err)
	}
	rec.Deduplicated = dedupResult.IntraRunDropped + dedupResult.SeenDropped

	filter := topic.New(p.cfg.Topics.QueryGroups, p.cfg.Topics.Exclude)
	ranked := filter.Apply(dedupResult.Articles)
	rec.Matched = len(ranked)

	// Nothing left to digest is a failed run, not an empty email.
	if len(ranked) == 0 {
		rec.Status = store.StatusFailed
		rec.Error = "no articles survived deduplication and filtering"
		return nil, errors.New(rec.Error)
	}

	// Only what fits in the digest is worth a summarization call.
	head := ranked
	if max := p.cfg.Digest.MaxItems; max > 0 && len(head) > max {
		head = head[:max]
	}
	summResult := p.summarizer.SummarizeAll(ctx, head)
	rec.Summarized = summResult.Summarized
	rec.SummaryFailed = summResult.Failed

	var trend *article.TrendSummary
	if summResult.Summarized > 0 {
		trend = p.summarizer.SummarizeTrends(ctx, head)
	}

	windowStart := now.Add(-time.Duration(p.cfg.TimeWindowHours) * time.Hour)
	d := digest.Assemble(opts.PeriodLabel, [2]time.Time{windowStart, now}, ranked, trend, now, digest.Options{MaxItems: p.cfg.Digest.MaxItems})
	outcome := &Outcome{Digest: d}

	if opts.Preview {
		rec.Status = runStatus(sourceErrs, rec)
		return outcome, nil
	}

	digestID, err := p.store.SaveDigest(d.PeriodLabel, d.Subject(), d.Markdown(), len(d.Articles), d.GeneratedAt)
	if err != nil {
		rec.Status = store.StatusFailed
		rec.Error = err.Error()
		return outcome, fmt.Errorf("persisting digest: %w", err)
	}

	if p.deliverer != nil {
		if err := p.deliverer.SendDigest(d.Subject(), d.Markdown()); err != nil {
			// The digest body is already persisted; only the
			// delivery failed, and nothing is marked seen.
			rec.Status = store.StatusFailed
			rec.Error = err.Error()
			return outcome, fmt.Errorf("delivering digest: %w", err)
		}
	}
	if err := p.store.MarkDigestDelivered(digestID); err != nil {
		log.Printf("Error marking digest delivered: %v", err)
	}

	if err := p.markSeen(deduper, d.Articles, p.now()); err != nil {
		log.Printf("Error updating seen registry: %v", err)
	}
	rec.Delivered = len(d.Articles)

	rec.Status = runStatus(sourceErrs, rec)
	if len(sourceErrs) > 0 {
		rec.Error = joinErrors(sourceErrs)
	}
	return outcome, nil
}

func (p *Pipeline) fetchAll(ctx context.Context, now time.Time) ([]article.RawRecord, []error) {
	type fetchResult struct {
		records []article.RawRecord
		err     error
	}

	results := make([]fetchResult, len(p.sources))
	var wg sync.WaitGroup
	for i, src := range p.sources {
		wg.Add(1)
		go func(i int, src source.Adapter) {
			defer wg.Done()

			lookback, timeout := p.sourceTuning(src)
			srcCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			w := source.Window{Start: now.Add(-lookback), End: now}
			records, err := src.Fetch(srcCtx, w)
			if err != nil {
				log.Printf("Source %s unavailable: %v", src.Name(), err)
				results[i] = fetchResult{err: fmt.Errorf("%s: %w", src.Name(), err)}
				return
			}
			log.Printf("Source %s: %d records", src.Name(), len(records))
			results[i] = fetchResult{records: records}
		}(i, src)
	}
	wg.Wait()

	var records []article.RawRecord
	var errs []error
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		records = append(records, r.records...)
	}
	return records, errs
}

func (p *Pipeline) sourceTuning(src source.Adapter) (lookback, timeout time.Duration) {
	switch src.Kind() {
	case article.SourceLiterature:
		return p.cfg.LookbackWindow(p.cfg.Sources.Pubmed.LookbackHours),
			time.Duration(p.cfg.Sources.Pubmed.TimeoutSecs) * time.Second
	default:
		return p.cfg.LookbackWindow(p.cfg.Sources.Biorxiv.LookbackHours),
			time.Duration(p.cfg.Sources.Biorxiv.TimeoutSecs) * time.Second
	}
}

func (p *Pipeline) normalizeAll(records []article.RawRecord, fetchedAt time.Time, rec *store.RunRecord) []article.Article {
	opts := article.NormalizeOptions{AbstractMaxChars: p.cfg.Digest.AbstractMaxChars}
	articles := make([]article.Article, 0, len(records))
	for _, r := range records {
		a, err := article.Normalize(r, fetchedAt, opts)
		if err != nil {
			rec.Malformed++
			log.Printf("Dropping malformed record from %s: %v", r.Source, err)
			continue
		}
		articles = append(articles, a)
	}
	return articles
}

func (p *Pipeline) markSeen(deduper *dedup.Deduper, delivered []article.Article, at time.Time) error {
	entries := make([]store.SeenEntry, 0, len(delivered))
	for _, a := range delivered {
		entries = append(entries, store.SeenEntry{
			IdentityKey: deduper.Key(a),
			Title:       a.Title,
			Source:      string(a.Source),
			DeliveredAt: at,
		})
	}
	return p.store.MarkSeen(entries)
}

func (p *Pipeline) housekeeping(now time.Time) {
	retention := time.Duration(p.cfg.SeenRetentionHours) * time.Hour
	if retention > 0 {
		if n, err := p.store.EvictSeenBefore(now.Add(-retention)); err != nil {
			log.Printf("Error evicting seen registry: %v", err)
		} else if n > 0 {
			log.Printf("Evicted %d expired seen entries", n)
		}
	}
	if p.cfg.RunHistoryLimit > 0 {
		if err := p.store.TrimRunHistory(p.cfg.RunHistoryLimit); err != nil {
			log.Printf("Error trimming run history: %v", err)
		}
	}
}

// runStatus classifies a run that reached the end. A source outage or
// any summarization failure degrades success to partial.
func runStatus(sourceErrs []error, rec *store.RunRecord) string {
	if len(sourceErrs) > 0 || rec.SummaryFailed > 0 || rec.Malformed > 0 {
		return store.StatusPartialSuccess
	}
	return store.StatusSuccess
}

func joinErrors(errs []error) string {
	parts := make([]string, len(errs))
	for i, err := range errs {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}
