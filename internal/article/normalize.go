package article

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrMalformed marks a raw record missing required fields. Such records
// are dropped and counted by the pipeline, never propagated as a run
// failure.
var ErrMalformed = errors.New("malformed record")

// TruncationMarker is appended when an abstract is cut to the
// configured length.
const TruncationMarker = "…"

// publishedLayouts are the timestamp formats seen across the two
// sources. bioRxiv feeds report RFC1123-style dates, PubMed efetch
// gives plain dates.
var publishedLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
}

// NormalizeOptions control field cleanup during normalization.
type NormalizeOptions struct {
	// AbstractMaxChars truncates the abstract (in runes) when > 0.
	AbstractMaxChars int
}

// Normalize maps a source-shaped record into a canonical Article.
// The ID is derived deterministically from source + native identifier,
// so re-fetching the same record yields the same ID. Returns
// ErrMalformed when the title or native identifier is missing.
func Normalize(rec RawRecord, fetchedAt time.Time, opts NormalizeOptions) (Article, error) {
	title := collapseSpace(rec.Title)
	nativeID := strings.TrimSpace(rec.NativeID)
	if title == "" {
		return Article{}, fmt.Errorf("%w: missing title", ErrMalformed)
	}
	if nativeID == "" {
		return Article{}, fmt.Errorf("%w: missing identifier", ErrMalformed)
	}

	abstract := collapseSpace(rec.Abstract)
	if opts.AbstractMaxChars > 0 && utf8.RuneCountInString(abstract) > opts.AbstractMaxChars {
		runes := []rune(abstract)
		abstract = strings.TrimSpace(string(runes[:opts.AbstractMaxChars])) + TruncationMarker
	}

	var authors []string
	for _, a := range rec.Authors {
		if a = collapseSpace(a); a != "" {
			authors = append(authors, a)
		}
	}

	published := fetchedAt
	if rec.ParsedAt != nil {
		published = *rec.ParsedAt
	} else if rec.Published != "" {
		if t, ok := parsePublished(rec.Published); ok {
			published = t
		}
	}

	return Article{
		ID:          string(rec.Source) + ":" + nativeID,
		Source:      rec.Source,
		Title:       title,
		Authors:     authors,
		Abstract:    abstract,
		PublishedAt: published.UTC(),
		URL:         strings.TrimSpace(rec.URL),
		Venue:       collapseSpace(rec.Venue),
		FetchedAt:   fetchedAt.UTC(),
	}, nil
}

func parsePublished(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// collapseSpace trims and squeezes all runs of whitespace to single
// spaces, including embedded newlines from feed payloads.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
