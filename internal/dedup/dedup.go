// Package dedup collapses articles referring to the same work, both
// within one run and against the durable registry of previously
// delivered identities.
package dedup

import (
	"fmt"
	"sort"

	"github.com/mhultman/oncodigest/internal/article"
)

// SeenSet is the read side of the durable seen registry.
type SeenSet interface {
	Contains(key string) (bool, error)
}

// Result carries the surviving articles and drop counters.
type Result struct {
	Articles        []article.Article
	IntraRunDropped int
	SeenDropped     int
}

// Deduper applies the two-stage deduplication. Stage one must run
// before stage two: the intra-run pass decides which metadata variant
// wins on duplicates before the registry is consulted.
type Deduper struct {
	keyOpts article.KeyOptions
}

// New creates a Deduper with the given identity-key tuning.
func New(keyOpts article.KeyOptions) *Deduper {
	return &Deduper{keyOpts: keyOpts}
}

// Key returns the durable identity key for an article, as used against
// the seen registry.
func (d *Deduper) Key(a article.Article) string {
	return article.IdentityKey(a, d.keyOpts)
}

// sourcePriority orders duplicate candidates: the literature database
// record wins over the preprint so peer-reviewed metadata (venue, DOI
// link) is kept when both sources carry the same work.
func sourcePriority(k article.SourceKind) int {
	switch k {
	case article.SourceLiterature:
		return 0
	case article.SourcePreprint:
		return 1
	default:
		return 2
	}
}

// Dedupe removes repeats. Stage (a): intra-run dedup by identity key,
// keeping the highest-priority source variant, ties broken by ID.
// Stage (b): drop anything whose identity key is already in the seen
// registry. Dedupe is idempotent over its own output.
func (d *Deduper) Dedupe(articles []article.Article, seen SeenSet) (Result, error) {
	// Stage (a): deterministic ordering so the same input always
	// keeps the same variant regardless of fetch interleaving.
	ordered := make([]article.Article, len(articles))
	copy(ordered, articles)
	sort.SliceStable(ordered, func(i, j int) bool {
		pi, pj := sourcePriority(ordered[i].Source), sourcePriority(ordered[j].Source)
		if pi != pj {
			return pi < pj
		}
		return ordered[i].ID < ordered[j].ID
	})

	var res Result
	kept := make(map[string]struct{}, len(ordered))
	for _, a := range ordered {
		key := d.Key(a)
		if _, dup := kept[key]; dup {
			res.IntraRunDropped++
			continue
		}
		kept[key] = struct{}{}

		// Stage (b): cross-run check against delivered history.
		if seen != nil {
			already, err := seen.Contains(key)
			if err != nil {
				return Result{}, fmt.Errorf("checking seen registry: %w", err)
			}
			if already {
				res.SeenDropped++
				continue
			}
		}
		res.Articles = append(res.Articles, a)
	}
	return res, nil
}
