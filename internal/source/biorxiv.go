package source

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/mhultman/oncodigest/internal/article"
)

// Biorxiv pulls preprints from the bioRxiv category RSS feeds.
type Biorxiv struct {
	feedURLs []string
	maxItems int
	parser   *gofeed.Parser
}

// NewBiorxiv creates an adapter over the given category feed URLs.
func NewBiorxiv(feedURLs []string, maxItems int) *Biorxiv {
	return &Biorxiv{
		feedURLs: feedURLs,
		maxItems: maxItems,
		parser:   gofeed.NewParser(),
	}
}

func (b *Biorxiv) Name() string             { return "bioRxiv" }
func (b *Biorxiv) Kind() article.SourceKind { return article.SourcePreprint }

// Fetch parses every configured feed and returns the entries published
// within the window, deduplicated by guid across feeds. A single feed
// failing is tolerated as long as at least one feed parses; only total
// failure reports the source as unavailable.
func (b *Biorxiv) Fetch(ctx context.Context, w Window) ([]article.RawRecord, error) {
	var records []article.RawRecord
	seen := make(map[string]struct{})
	succeeded := 0
	var lastErr error

	for _, feedURL := range b.feedURLs {
		feed, err := b.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			log.Printf("bioRxiv feed %s failed: %v", feedURL, err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		succeeded++

		for _, item := range feed.Items {
			rec, ok := b.toRecord(item)
			if !ok {
				continue
			}
			if _, dup := seen[rec.NativeID]; dup {
				continue
			}
			seen[rec.NativeID] = struct{}{}
			if !withinWindow(rec.ParsedAt, w) {
				continue
			}
			records = append(records, rec)
			if b.maxItems > 0 && len(records) >= b.maxItems {
				log.Printf("bioRxiv: item cap %d reached", b.maxItems)
				return records, nil
			}
		}
	}

	if succeeded == 0 {
		return nil, fmt.Errorf("%w: all %d bioRxiv feeds failed: %v", ErrUnavailable, len(b.feedURLs), lastErr)
	}
	return records, nil
}

func (b *Biorxiv) toRecord(item *gofeed.Item) (article.RawRecord, bool) {
	nativeID := item.GUID
	if nativeID == "" {
		nativeID = item.Link
	}
	if nativeID == "" {
		return article.RawRecord{}, false
	}

	var parsed *time.Time
	if item.PublishedParsed != nil {
		parsed = item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		parsed = item.UpdatedParsed
	}

	return article.RawRecord{
		Source:    article.SourcePreprint,
		NativeID:  nativeID,
		Title:     item.Title,
		Authors:   feedAuthors(item),
		Abstract:  firstNonEmpty(item.Description, item.Content),
		Published: item.Published,
		ParsedAt:  parsed,
		URL:       item.Link,
	}, true
}

// feedAuthors flattens gofeed authors; bioRxiv often packs the whole
// author list into one comma-separated entry.
func feedAuthors(item *gofeed.Item) []string {
	var out []string
	for _, a := range item.Authors {
		if a == nil || a.Name == "" {
			continue
		}
		for _, name := range strings.Split(a.Name, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

func withinWindow(t *time.Time, w Window) bool {
	if t == nil {
		return true // benefit of the doubt, normalizer stamps fetch time
	}
	return !t.Before(w.Start) && !t.After(w.End)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
