// Package scheduler drives repeated pipeline runs on a fixed interval for
// a bounded total duration, the Go translation of the original
// generator-based "yield true to continue" scheduler.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/feedpipeline/feedpipe/internal/store"
)

// RunFunc executes one full pipeline run, writing into outputDir.
type RunFunc func(ctx context.Context, outputDir string) error

// Scheduler repeats a pipeline run every Interval until Total has elapsed.
type Scheduler struct {
	Total      time.Duration
	Interval   time.Duration
	OutputRoot string
	Store      *store.Store
	Run        RunFunc

	// now is overridable in tests; defaults to time.Now.
	now func() time.Time
}

// New builds a Scheduler. outputRoot is the parent directory under which
// the dedicated schedule_<timestamp> folder is created.
func New(total, interval time.Duration, outputRoot string, st *store.Store, run RunFunc) *Scheduler {
	return &Scheduler{
		Total:      total,
		Interval:   interval,
		OutputRoot: outputRoot,
		Store:      st,
		Run:        run,
		now:        time.Now,
	}
}

// Start creates the shared schedule output folder, forces a cache reset,
// and loops invoking Run until the deadline passes or ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) error {
	start := s.now()
	folder := filepath.Join(s.OutputRoot, "schedule_"+start.UTC().Format("20060102T150405Z"))

	if err := s.Store.Reset(); err != nil {
		return fmt.Errorf("reset cache for new schedule: %w", err)
	}

	deadline := start.Add(s.Total)
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	runCount := 0
	for {
		if err := s.Run(ctx, folder); err != nil {
			slog.Error("scheduled run failed", "run", runCount, "error", err)
		}
		runCount++

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if s.now().After(deadline) {
			slog.Info("schedule deadline reached", "folder", folder, "runs", runCount)
			return nil
		}
	}
}
