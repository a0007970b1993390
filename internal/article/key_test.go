package article

import (
	"testing"
	"time"
)

func TestIdentityKeyCollapsesNearDuplicateTitles(t *testing.T) {
	day := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	preprint := Article{
		Source:      SourcePreprint,
		ID:          "biorxiv:10.1101/x",
		Title:       "KRAS-G12C Inhibition in Pancreatic Cancer: a phase I study",
		Authors:     []string{"Jane Doe"},
		PublishedAt: day,
	}
	journal := Article{
		Source:      SourceLiterature,
		ID:          "pubmed:PMID:123",
		Title:       "kras g12c inhibition in pancreatic cancer — a Phase I Study",
		Authors:     []string{"Doe, Jane"},
		PublishedAt: day.Add(5 * time.Hour),
	}

	if IdentityKey(preprint, KeyOptions{}) != IdentityKey(journal, KeyOptions{}) {
		t.Error("punctuation/case variants of the same work should share an identity key")
	}
}

func TestIdentityKeySeparatesDistinctWorks(t *testing.T) {
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	a := Article{Title: "Trial A results", Authors: []string{"Jane Doe"}, PublishedAt: day}
	b := Article{Title: "Trial B results", Authors: []string{"Jane Doe"}, PublishedAt: day}
	c := Article{Title: "Trial A results", Authors: []string{"Wei Zhang"}, PublishedAt: day}
	d := Article{Title: "Trial A results", Authors: []string{"Jane Doe"}, PublishedAt: day.AddDate(0, 0, 3)}

	keyA := IdentityKey(a, KeyOptions{})
	for i, other := range []Article{b, c, d} {
		if IdentityKey(other, KeyOptions{}) == keyA {
			t.Errorf("case %d: distinct works should not share a key", i)
		}
	}
}

func TestIdentityKeyBucketWidth(t *testing.T) {
	base := time.Date(2026, 3, 9, 1, 0, 0, 0, time.UTC)
	a := Article{Title: "Same work", Authors: []string{"Doe"}, PublishedAt: base}
	b := Article{Title: "Same work", Authors: []string{"Doe"}, PublishedAt: base.Add(30 * time.Hour)}

	if IdentityKey(a, KeyOptions{}) == IdentityKey(b, KeyOptions{}) {
		t.Error("default day bucket should separate publications 30h apart")
	}
	wide := KeyOptions{BucketHours: 72}
	if IdentityKey(a, wide) != IdentityKey(b, wide) {
		t.Error("72h bucket should collapse publications 30h apart")
	}
}

func TestIdentityKeyEmptyAuthors(t *testing.T) {
	a := Article{Title: "No author listing", PublishedAt: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)}
	if IdentityKey(a, KeyOptions{}) == "" {
		t.Error("key must be derivable without authors")
	}
}
