package article

import "time"

// SourceKind identifies the origin of an article.
type SourceKind string

const (
	// SourcePreprint is the bioRxiv preprint RSS feed.
	SourcePreprint SourceKind = "biorxiv"
	// SourceLiterature is the PubMed literature database.
	SourceLiterature SourceKind = "pubmed"
)

// Article is the canonical unit flowing through the pipeline. It is
// never mutated after normalization except to attach a Summary.
type Article struct {
	ID          string
	Source      SourceKind
	Title       string
	Authors     []string
	Abstract    string
	PublishedAt time.Time
	URL         string
	Venue       string
	FetchedAt   time.Time

	Summary *Summary
}

// FirstAuthor returns the first listed author, or "" if none.
func (a Article) FirstAuthor() string {
	if len(a.Authors) == 0 {
		return ""
	}
	return a.Authors[0]
}

// Summary is the AI-derived enrichment attached to one article.
// A nil Summary is a valid state: summarization failed and the article
// is delivered with an "enrichment unavailable" label instead.
type Summary struct {
	ResearchDirection string
	KeyFindings       string
	Innovations       string
	ClinicalRelevance string
	QualityTier       string // S1 (highest) .. S5
}

// QualityTiers lists the valid tiers in descending order of quality.
var QualityTiers = []string{"S1", "S2", "S3", "S4", "S5"}

// ClampTier normalizes an arbitrary tier string to a valid one,
// defaulting to S3 when unrecognized.
func ClampTier(tier string) string {
	for _, t := range QualityTiers {
		if tier == t {
			return t
		}
	}
	return "S3"
}

// TrendSummary is the batch-level overview generated once per digest.
type TrendSummary struct {
	HotDirections          string
	EmergingTechniques     string
	PotentialBreakthroughs string
}

// RawRecord is the tagged, source-shaped record an adapter emits before
// normalization. Adapters fill what their wire format provides; the
// normalizer turns it into a canonical Article or rejects it.
type RawRecord struct {
	Source    SourceKind
	NativeID  string // DOI, RSS guid, or PMID
	Title     string
	Authors   []string
	Abstract  string
	Published string     // source-reported timestamp, format varies
	ParsedAt  *time.Time // set when the adapter already parsed Published
	URL       string
	Venue     string // journal name, literature records only
}
