package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/feedpipeline/feedpipe/internal/config"
	"github.com/feedpipeline/feedpipe/internal/fetcher"
	"github.com/feedpipeline/feedpipe/internal/logging"
	"github.com/feedpipeline/feedpipe/internal/parse"
	"github.com/feedpipeline/feedpipe/internal/pipeline"
	"github.com/feedpipeline/feedpipe/internal/scheduler"
	"github.com/feedpipeline/feedpipe/internal/store"
)

const (
	version      = "0.1.0"
	outputRoot   = "rss_feeds"
	cacheDBPath  = "rss_feeds/.cache.db"
	fetchTimeout = 15 * time.Second
	fetchWorkers = 8
)

func main() {
	fs := flag.NewFlagSet("feedpipe", flag.ContinueOnError)

	caching := fs.Bool("caching", false, "enable conditional GETs and cross-run merging")
	fs.BoolVar(caching, "c", false, "shorthand for --caching")

	validRSS := fs.Bool("valid_rss", false, "emit full Atom documents instead of entries-only")
	fs.BoolVar(validRSS, "v", false, "shorthand for --valid_rss")

	yamlPath := fs.String("yaml", "", "use an existing config file instead of the default path")
	fs.StringVar(yamlPath, "y", "", "shorthand for --yaml")

	noParsing := fs.Bool("no_parsing", false, "write config but skip the pipeline")
	fs.BoolVar(noParsing, "np", false, "shorthand for --no_parsing")

	var schedulerArgs schedulerFlag
	fs.Var(&schedulerArgs, "scheduler", "run the pipeline every I seconds for T seconds total: -scheduler \"T I\"")
	fs.Var(&schedulerArgs, "s", "shorthand for --scheduler")

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	closeLog, err := logging.Setup(".", slog.LevelInfo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	slog.Info("starting feedpipe", "version", version)

	cfgPath := *yamlPath
	if cfgPath == "" {
		cfgPath = config.DefaultPath
	}

	groups, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}
	slog.Info("config loaded", "path", cfgPath, "groups", len(groups))

	if *noParsing {
		slog.Info("no_parsing set, exiting after config load")
		return
	}

	st, err := store.Open(cacheDBPath)
	if err != nil {
		slog.Error("failed to open cache store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()

	if schedulerArgs.set {
		// Scheduled mode forces caching on for the duration of the
		// schedule, regardless of -c: conditional GETs and last_seen_id
		// truncation are what make successive ticks cheap and additive.
		slog.Info("scheduler mode forces caching on")
		p := &pipeline.Pipeline{
			Groups:       groups,
			Fetcher:      fetcher.New(fetchTimeout, fetchWorkers, st, true),
			Parser:       parse.New(st, true),
			FullDocument: *validRSS,
			Caching:      true,
		}

		sched := scheduler.New(
			time.Duration(schedulerArgs.total)*time.Second,
			time.Duration(schedulerArgs.interval)*time.Second,
			outputRoot,
			st,
			p.RunOnce,
		)
		if err := sched.Start(ctx); err != nil && err != context.Canceled {
			slog.Error("scheduler run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	p := &pipeline.Pipeline{
		Groups:       groups,
		Fetcher:      fetcher.New(fetchTimeout, fetchWorkers, st, *caching),
		Parser:       parse.New(st, *caching),
		FullDocument: *validRSS,
		Caching:      *caching,
	}

	folder := filepath.Join(outputRoot, "run_"+time.Now().UTC().Format("20060102T150405Z"))
	if err := p.RunOnce(ctx, folder); err != nil {
		slog.Error("pipeline run failed", "error", err)
		os.Exit(1)
	}
}

// schedulerFlag parses the two-value "-scheduler T I" form into a
// flag.Value, since the standard library has no built-in multi-value flag.
type schedulerFlag struct {
	set      bool
	total    int
	interval int
}

func (s *schedulerFlag) String() string {
	if !s.set {
		return ""
	}
	return fmt.Sprintf("%d %d", s.total, s.interval)
}

func (s *schedulerFlag) Set(value string) error {
	var total, interval int
	if _, err := fmt.Sscanf(value, "%d %d", &total, &interval); err != nil {
		return fmt.Errorf(`scheduler flag requires "T I" (total seconds, interval seconds): %w`, err)
	}
	s.total = total
	s.interval = interval
	s.set = true
	return nil
}
