package dedup

import (
	"testing"
	"time"

	"github.com/mhultman/oncodigest/internal/article"
)

type memorySeen map[string]bool

func (m memorySeen) Contains(key string) (bool, error) { return m[key], nil }

var day = time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

func preprint(id, title string) article.Article {
	return article.Article{
		ID: "biorxiv:" + id, Source: article.SourcePreprint,
		Title: title, Authors: []string{"Jane Doe"}, PublishedAt: day,
	}
}

func literature(id, title, venue string) article.Article {
	return article.Article{
		ID: "pubmed:" + id, Source: article.SourceLiterature,
		Title: title, Authors: []string{"Jane Doe"}, PublishedAt: day, Venue: venue,
	}
}

func TestLiteratureMetadataWinsOnDuplicates(t *testing.T) {
	d := New(article.KeyOptions{})
	// Preprint listed first: input order must not decide the winner.
	in := []article.Article{
		preprint("10.1101/x", "KRAS G12C inhibition in pancreatic cancer"),
		literature("PMID:1", "KRAS G12C Inhibition in Pancreatic Cancer", "Nature"),
	}

	res, err := d.Dedupe(in, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Articles) != 1 {
		t.Fatalf("expected 1 survivor, got %d", len(res.Articles))
	}
	if res.Articles[0].Venue != "Nature" {
		t.Errorf("expected the literature-db variant to survive, got %+v", res.Articles[0])
	}
	if res.IntraRunDropped != 1 {
		t.Errorf("expected 1 intra-run drop, got %d", res.IntraRunDropped)
	}
}

func TestCrossRunDedupAgainstSeenRegistry(t *testing.T) {
	d := New(article.KeyOptions{})
	old := preprint("10.1101/old", "Previously delivered work")
	fresh := preprint("10.1101/new", "Brand new work")

	seen := memorySeen{d.Key(old): true}
	res, err := d.Dedupe([]article.Article{old, fresh}, seen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Articles) != 1 || res.Articles[0].ID != fresh.ID {
		t.Fatalf("expected only the fresh article, got %v", res.Articles)
	}
	if res.SeenDropped != 1 {
		t.Errorf("expected 1 seen drop, got %d", res.SeenDropped)
	}
}

func TestDedupeIsIdempotent(t *testing.T) {
	d := New(article.KeyOptions{})
	in := []article.Article{
		literature("PMID:1", "Work one", "Cell"),
		preprint("10.1101/a", "Work one"),
		preprint("10.1101/b", "Work two"),
	}

	first, err := d.Dedupe(in, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := d.Dedupe(first.Articles, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(second.Articles) != len(first.Articles) {
		t.Fatalf("second pass changed the set: %d vs %d", len(second.Articles), len(first.Articles))
	}
	for i := range first.Articles {
		if first.Articles[i].ID != second.Articles[i].ID {
			t.Errorf("position %d differs: %s vs %s", i, first.Articles[i].ID, second.Articles[i].ID)
		}
	}
	if second.IntraRunDropped != 0 || second.SeenDropped != 0 {
		t.Error("second pass should drop nothing")
	}
}

func TestIntraRunBeforeCrossRun(t *testing.T) {
	d := New(article.KeyOptions{})
	pp := preprint("10.1101/x", "Shared work")
	lit := literature("PMID:9", "Shared work", "Science")

	// Registry knows the shared identity: both variants must go, and
	// the drop must be counted once in each stage's bucket as the
	// intra-run pass runs first.
	seen := memorySeen{d.Key(lit): true}
	res, err := d.Dedupe([]article.Article{pp, lit}, seen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Articles) != 0 {
		t.Fatalf("expected 0 survivors, got %d", len(res.Articles))
	}
	if res.IntraRunDropped != 1 || res.SeenDropped != 1 {
		t.Errorf("expected 1 intra-run + 1 seen drop, got %d/%d", res.IntraRunDropped, res.SeenDropped)
	}
}
