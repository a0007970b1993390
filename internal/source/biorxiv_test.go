package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const rssTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
<title>bioRxiv Subject Collection: Cancer Biology</title>
%s
</channel>
</rss>`

func rssItem(guid, title, published, authors string) string {
	return fmt.Sprintf(`<item>
<title>%s</title>
<link>https://www.biorxiv.org/content/%s</link>
<guid>%s</guid>
<description>Study abstract for %s.</description>
<dc:creator>%s</dc:creator>
<pubDate>%s</pubDate>
</item>`, title, guid, guid, title, authors, published)
}

func fetchWindow(end time.Time, hours int) Window {
	return Window{Start: end.Add(-time.Duration(hours) * time.Hour), End: end}
}

func TestBiorxivFetchParsesItems(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	fresh := now.Add(-2 * time.Hour).Format(time.RFC1123Z)
	stale := now.Add(-80 * time.Hour).Format(time.RFC1123Z)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, rssTemplate,
			rssItem("10.1101/2026.03.09.001", "Fresh preprint", fresh, "Doe, J., Zhang, W.")+
				rssItem("10.1101/2026.03.01.002", "Stale preprint", stale, "Smith, A."))
	}))
	defer srv.Close()

	b := NewBiorxiv([]string{srv.URL}, 0)
	records, err := b.Fetch(context.Background(), fetchWindow(now, 24))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record inside the window, got %d", len(records))
	}

	rec := records[0]
	if rec.NativeID != "10.1101/2026.03.09.001" {
		t.Errorf("unexpected native id: %q", rec.NativeID)
	}
	if rec.Title != "Fresh preprint" {
		t.Errorf("unexpected title: %q", rec.Title)
	}
	if len(rec.Authors) != 2 {
		t.Errorf("expected split author list, got %v", rec.Authors)
	}
	if rec.ParsedAt == nil {
		t.Error("expected parsed publication time")
	}
}

func TestBiorxivDeduplicatesAcrossFeeds(t *testing.T) {
	now := time.Now().UTC()
	fresh := now.Add(-time.Hour).Format(time.RFC1123Z)
	payload := fmt.Sprintf(rssTemplate, rssItem("10.1101/shared", "Cross-listed preprint", fresh, "Doe, J."))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, payload)
	}))
	defer srv.Close()

	b := NewBiorxiv([]string{srv.URL + "/a", srv.URL + "/b"}, 0)
	records, err := b.Fetch(context.Background(), fetchWindow(now, 24))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected cross-feed dedup to 1 record, got %d", len(records))
	}
}

func TestBiorxivRespectsItemCap(t *testing.T) {
	now := time.Now().UTC()
	fresh := now.Add(-time.Hour).Format(time.RFC1123Z)
	var items string
	for i := 0; i < 5; i++ {
		items += rssItem(fmt.Sprintf("10.1101/cap-%d", i), fmt.Sprintf("Preprint %d", i), fresh, "Doe, J.")
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, rssTemplate, items)
	}))
	defer srv.Close()

	b := NewBiorxiv([]string{srv.URL}, 3)
	records, err := b.Fetch(context.Background(), fetchWindow(now, 24))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("expected cap of 3, got %d", len(records))
	}
}

func TestBiorxivToleratesOneFailedFeed(t *testing.T) {
	now := time.Now().UTC()
	fresh := now.Add(-time.Hour).Format(time.RFC1123Z)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, rssTemplate, rssItem("10.1101/ok", "Good preprint", fresh, "Doe, J."))
	}))
	defer srv.Close()

	b := NewBiorxiv([]string{srv.URL + "/bad", srv.URL + "/good"}, 0)
	records, err := b.Fetch(context.Background(), fetchWindow(now, 24))
	if err != nil {
		t.Fatalf("one working feed should be enough, got error: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record from the working feed, got %d", len(records))
	}
}

func TestBiorxivAllFeedsFailing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := NewBiorxiv([]string{srv.URL + "/a", srv.URL + "/b"}, 0)
	_, err := b.Fetch(context.Background(), fetchWindow(time.Now().UTC(), 24))
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestBiorxivEmptyFeedIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, rssTemplate, "")
	}))
	defer srv.Close()

	b := NewBiorxiv([]string{srv.URL}, 0)
	records, err := b.Fetch(context.Background(), fetchWindow(time.Now().UTC(), 24))
	if err != nil {
		t.Fatalf("empty feed must not be an error, got: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected 0 records, got %d", len(records))
	}
}
