// Package source contains the adapters that pull candidate articles
// from the upstream providers. Adapters are pure I/O boundaries: they
// emit raw, source-shaped records and leave normalization, dedup, and
// filtering to the pipeline.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/mhultman/oncodigest/internal/article"
)

// ErrUnavailable marks a network or parse failure at a source. The
// pipeline treats it as non-fatal: the source contributes zero
// articles and the run degrades to partial. An empty result set is NOT
// an error.
var ErrUnavailable = errors.New("source unavailable")

// Window is the lookback interval a fetch covers.
type Window struct {
	Start time.Time
	End   time.Time
}

// Adapter fetches raw candidate articles for a lookback window.
type Adapter interface {
	// Name is the human-readable source name used in logs and run
	// records.
	Name() string
	// Kind tags the records this adapter produces.
	Kind() article.SourceKind
	// Fetch returns the raw records published within the window.
	// Zero results is valid; failures wrap ErrUnavailable.
	Fetch(ctx context.Context, w Window) ([]article.RawRecord, error)
}
