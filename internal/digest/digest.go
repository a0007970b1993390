// Package digest assembles the ranked, filtered article set into the
// markdown report that gets delivered by email.
package digest

import (
	"fmt"
	"strings"
	"time"

	"github.com/mhultman/oncodigest/internal/article"
)

const enrichmentUnavailableLabel = "_AI enrichment unavailable for this item._"

// Digest is one assembled report, ready for rendering and delivery.
type Digest struct {
	PeriodLabel  string // e.g. "2026-09-01 morning"
	WindowStart  time.Time
	WindowEnd    time.Time
	Articles     []article.Article
	Trend        *article.TrendSummary
	GeneratedAt  time.Time
	TotalMatched int // matches before the cap was applied
}

// Options tune digest assembly.
type Options struct {
	MaxItems int
}

// Assemble caps the already-ranked article slice to MaxItems and wraps
// it with period metadata. Ranking happened upstream; assembly never
// reorders.
func Assemble(label string, window [2]time.Time, articles []article.Article, trend *article.TrendSummary, now time.Time, opts Options) *Digest {
	total := len(articles)
	if opts.MaxItems > 0 && len(articles) > opts.MaxItems {
		articles = articles[:opts.MaxItems]
	}
	return &Digest{
		PeriodLabel:  label,
		WindowStart:  window[0],
		WindowEnd:    window[1],
		Articles:     articles,
		Trend:        trend,
		GeneratedAt:  now,
		TotalMatched: total,
	}
}

// Subject returns the email subject line for this digest.
func (d *Digest) Subject() string {
	return fmt.Sprintf("Oncology Research Digest — %s (%d papers)", d.PeriodLabel, len(d.Articles))
}

// Markdown renders the full digest body.
func (d *Digest) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Oncology Research Digest\n\n")
	fmt.Fprintf(&b, "**Period:** %s  \n", d.PeriodLabel)
	fmt.Fprintf(&b, "**Window:** %s to %s  \n", d.WindowStart.Format("2006-01-02 15:04"), d.WindowEnd.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "**Papers:** %d", len(d.Articles))
	if d.TotalMatched > len(d.Articles) {
		fmt.Fprintf(&b, " (of %d matched)", d.TotalMatched)
	}
	b.WriteString("\n\n")

	if len(d.Articles) == 0 {
		b.WriteString("No matching publications in this window.\n")
		return b.String()
	}

	if d.Trend != nil {
		b.WriteString("## Trends\n\n")
		writeTrendLine(&b, "Hot directions", d.Trend.HotDirections)
		writeTrendLine(&b, "Emerging techniques", d.Trend.EmergingTechniques)
		writeTrendLine(&b, "Potential breakthroughs", d.Trend.PotentialBreakthroughs)
		b.WriteString("\n")
	}

	b.WriteString("## Publications\n")
	for i, a := range d.Articles {
		b.WriteString("\n---\n\n")
		writeArticle(&b, i+1, a)
	}

	fmt.Fprintf(&b, "\n---\n\n_Generated %s._\n", d.GeneratedAt.Format("2006-01-02 15:04 MST"))
	return b.String()
}

func writeTrendLine(b *strings.Builder, label, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	fmt.Fprintf(b, "**%s:** %s\n\n", label, text)
}

func writeArticle(b *strings.Builder, n int, a article.Article) {
	fmt.Fprintf(b, "### %d. [%s](%s)\n\n", n, a.Title, a.URL)

	venue := a.Venue
	if venue == "" {
		venue = "bioRxiv"
	}
	meta := []string{venue}
	if !a.PublishedAt.IsZero() {
		meta = append(meta, a.PublishedAt.Format("2006-01-02"))
	}
	if len(a.Authors) > 0 {
		meta = append(meta, formatAuthors(a.Authors))
	}
	if a.Summary != nil {
		meta = append(meta, "Tier "+a.Summary.QualityTier)
	}
	fmt.Fprintf(b, "*%s*\n\n", strings.Join(meta, " · "))

	if a.Summary == nil {
		b.WriteString(enrichmentUnavailableLabel + "\n\n")
		if a.Abstract != "" {
			fmt.Fprintf(b, "%s\n", a.Abstract)
		}
		return
	}

	s := a.Summary
	writeField(b, "Research direction", s.ResearchDirection)
	writeField(b, "Key findings", s.KeyFindings)
	writeField(b, "Innovations", s.Innovations)
	writeField(b, "Clinical relevance", s.ClinicalRelevance)
}

func writeField(b *strings.Builder, label, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	fmt.Fprintf(b, "**%s:** %s\n\n", label, text)
}

func formatAuthors(authors []string) string {
	if len(authors) > 3 {
		return strings.Join(authors[:3], ", ") + " et al."
	}
	return strings.Join(authors, ", ")
}
