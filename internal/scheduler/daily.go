// Package scheduler runs jobs at a fixed wall-clock time every day.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Daily fires once a day at Hour:Minute in Location.
type Daily struct {
	Hour     int
	Minute   int
	Location *time.Location
}

// NextRun returns the first fire time strictly after now. Days on which the
// wall-clock time does not exist (DST gaps) fire at the normalized instant.
func (d Daily) NextRun(now time.Time) time.Time {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.Hour, d.Minute, 0, 0, loc)
	if !next.After(now) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, d.Hour, d.Minute, 0, 0, loc)
	}
	return next
}

// Run calls job at every fire time until ctx is done. A job error is logged
// and the schedule continues.
func (d Daily) Run(ctx context.Context, name string, job func(ctx context.Context, at time.Time) error) {
	for {
		next := d.NextRun(time.Now())
		slog.Info("scheduled job", "job", name, "next_run", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := job(ctx, next); err != nil {
			slog.Error("scheduled job failed", "job", name, "error", err)
		}
	}
}
