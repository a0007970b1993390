package article

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var fetchTime = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func TestNormalizeBasicFields(t *testing.T) {
	rec := RawRecord{
		Source:    SourcePreprint,
		NativeID:  "10.1101/2026.03.09.123456",
		Title:     "  KRAS G12C inhibition in\n pancreatic cancer  ",
		Authors:   []string{" Jane Doe ", "", "Wei Zhang"},
		Abstract:  "Background:  we studied\tresistance mechanisms.",
		Published: "Mon, 09 Mar 2026 00:00:00 GMT",
		URL:       " https://www.biorxiv.org/content/10.1101/2026.03.09.123456 ",
	}

	a, err := Normalize(rec, fetchTime, NormalizeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a.ID != "biorxiv:10.1101/2026.03.09.123456" {
		t.Errorf("unexpected id: %q", a.ID)
	}
	if a.Title != "KRAS G12C inhibition in pancreatic cancer" {
		t.Errorf("title not collapsed: %q", a.Title)
	}
	if len(a.Authors) != 2 || a.Authors[0] != "Jane Doe" {
		t.Errorf("unexpected authors: %v", a.Authors)
	}
	if a.Abstract != "Background: we studied resistance mechanisms." {
		t.Errorf("abstract not collapsed: %q", a.Abstract)
	}
	if a.PublishedAt.Format("2006-01-02") != "2026-03-09" {
		t.Errorf("unexpected published time: %v", a.PublishedAt)
	}
	if a.FetchedAt != fetchTime {
		t.Errorf("unexpected fetched time: %v", a.FetchedAt)
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	rec := RawRecord{Source: SourceLiterature, NativeID: "PMID:39012345", Title: "A title"}
	a1, _ := Normalize(rec, fetchTime, NormalizeOptions{})
	a2, _ := Normalize(rec, fetchTime.Add(time.Hour), NormalizeOptions{})
	if a1.ID != a2.ID {
		t.Errorf("re-fetching the same record changed the id: %q vs %q", a1.ID, a2.ID)
	}
}

func TestNormalizeTruncatesAbstract(t *testing.T) {
	rec := RawRecord{
		Source:   SourcePreprint,
		NativeID: "guid-1",
		Title:    "T",
		Abstract: strings.Repeat("a", 600),
	}
	a, err := Normalize(rec, fetchTime, NormalizeOptions{AbstractMaxChars: 500})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(a.Abstract, TruncationMarker) {
		t.Error("expected truncation marker on long abstract")
	}
	if got := len([]rune(a.Abstract)); got > 501 {
		t.Errorf("abstract too long after truncation: %d runes", got)
	}

	short := RawRecord{Source: SourcePreprint, NativeID: "guid-2", Title: "T", Abstract: "short"}
	a, _ = Normalize(short, fetchTime, NormalizeOptions{AbstractMaxChars: 500})
	if a.Abstract != "short" {
		t.Errorf("short abstract should be untouched, got %q", a.Abstract)
	}
}

func TestNormalizeRejectsMissingFields(t *testing.T) {
	cases := []RawRecord{
		{Source: SourcePreprint, NativeID: "x"},              // no title
		{Source: SourcePreprint, Title: "present"},           // no identifier
		{Source: SourcePreprint, NativeID: "  ", Title: " "}, // whitespace only
	}
	for i, rec := range cases {
		if _, err := Normalize(rec, fetchTime, NormalizeOptions{}); !errors.Is(err, ErrMalformed) {
			t.Errorf("case %d: expected ErrMalformed, got %v", i, err)
		}
	}
}

func TestNormalizeFallsBackToFetchTime(t *testing.T) {
	rec := RawRecord{Source: SourcePreprint, NativeID: "g", Title: "T", Published: "not a date"}
	a, _ := Normalize(rec, fetchTime, NormalizeOptions{})
	if !a.PublishedAt.Equal(fetchTime) {
		t.Errorf("expected fetch time fallback, got %v", a.PublishedAt)
	}
}

func TestNormalizePrefersParsedTime(t *testing.T) {
	parsed := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)
	rec := RawRecord{Source: SourceLiterature, NativeID: "PMID:1", Title: "T", ParsedAt: &parsed, Published: "2026-03-01"}
	a, _ := Normalize(rec, fetchTime, NormalizeOptions{})
	if !a.PublishedAt.Equal(parsed) {
		t.Errorf("expected adapter-parsed time to win, got %v", a.PublishedAt)
	}
}

func TestClampTier(t *testing.T) {
	if got := ClampTier("S1"); got != "S1" {
		t.Errorf("expected S1, got %q", got)
	}
	if got := ClampTier("excellent"); got != "S3" {
		t.Errorf("expected S3 fallback, got %q", got)
	}
}
