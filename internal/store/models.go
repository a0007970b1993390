package store

import "time"

// Run status values.
const (
	StatusRunning        = "running"
	StatusSuccess        = "success"
	StatusPartialSuccess = "partial_success"
	StatusFailed         = "failed"
)

// SeenEntry is one row of the seen-article registry.
type SeenEntry struct {
	IdentityKey string
	Title       string
	Source      string
	DeliveredAt time.Time
}

// RunRecord is the persisted outcome of one pipeline run.
type RunRecord struct {
	ID               int64
	PeriodLabel      string
	Status           string
	StartedAt        time.Time
	FinishedAt       *time.Time
	SourcesAttempted int
	SourcesSucceeded int
	Fetched          int
	Malformed        int
	Deduplicated     int
	Matched          int
	Summarized       int
	SummaryFailed    int
	Delivered        int
	Error            string
}

// DigestRecord is a persisted digest body.
type DigestRecord struct {
	ID           int64
	PeriodLabel  string
	Subject      string
	BodyMarkdown string
	ArticleCount int
	GeneratedAt  time.Time
	Delivered    bool
}
