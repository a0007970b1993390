// Package schedule triggers digest runs at the configured report times
// in the configured time zone.
package schedule

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mhultman/oncodigest/internal/config"
)

// Runner executes one digest run for a report slot.
type Runner interface {
	RunScheduled(ctx context.Context, periodLabel string)
}

// Scheduler fires the runner at each report time.
type Scheduler struct {
	cron   *cron.Cron
	loc    *time.Location
	runner Runner
}

// New builds a scheduler from the configured report times. Times are
// interpreted in the configured time zone.
func New(cfg *config.Config, runner Runner) (*Scheduler, error) {
	loc := cfg.Location()
	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		loc:    loc,
		runner: runner,
	}

	for _, rt := range cfg.ReportTimes {
		hour, minute, err := config.ParseReportTime(rt)
		if err != nil {
			return nil, err
		}
		spec := fmt.Sprintf("%d %d * * *", minute, hour)
		reportTime := rt
		if _, err := s.cron.AddFunc(spec, func() { s.fire(reportTime) }); err != nil {
			return nil, fmt.Errorf("scheduling report time %q: %w", rt, err)
		}
	}
	return s, nil
}

func (s *Scheduler) fire(reportTime string) {
	label := PeriodLabel(time.Now().In(s.loc), reportTime)
	log.Printf("Scheduled run triggered for %s", label)
	s.runner.RunScheduled(context.Background(), label)
}

// Start begins firing scheduled runs.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("Scheduler started with %d report time(s)", len(s.cron.Entries()))
}

// Stop halts scheduling and waits for an in-flight trigger to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// NextRuns returns the upcoming fire times, soonest first.
func (s *Scheduler) NextRuns() []time.Time {
	entries := s.cron.Entries()
	next := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		if !e.Next.IsZero() {
			next = append(next, e.Next)
		}
	}
	sort.Slice(next, func(i, j int) bool { return next[i].Before(next[j]) })
	return next
}

// PeriodLabel names a report slot, e.g. "2026-09-01 09:00".
func PeriodLabel(now time.Time, reportTime string) string {
	return now.Format("2006-01-02") + " " + reportTime
}
