// Package pipeline wires the Fetcher, Parser, Aggregator, and Writer
// together for one complete run against a configured set of feed groups.
package pipeline

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/feedpipeline/feedpipe/internal/aggregate"
	"github.com/feedpipeline/feedpipe/internal/fetcher"
	"github.com/feedpipeline/feedpipe/internal/model"
	"github.com/feedpipeline/feedpipe/internal/parse"
	"github.com/feedpipeline/feedpipe/internal/writer"
)

// Pipeline holds everything one run needs: the configured groups and the
// three component stages that process them.
type Pipeline struct {
	Groups       []model.FeedGroup
	Fetcher      *fetcher.Fetcher
	Parser       *parse.Parser
	FullDocument bool
	Caching      bool
}

// RunOnce fetches every URL, parses the successful results on a
// CPU-bound worker pool, aggregates by slug, and writes one file per
// group into outputDir. Per-URL and per-slug failures are logged and
// skipped; they never abort the run.
func (p *Pipeline) RunOnce(ctx context.Context, outputDir string) error {
	fetchResults := p.Fetcher.FetchAll(ctx, p.Groups)

	parsed := p.parseAll(fetchResults)
	aggregates := aggregate.Join(p.Groups, parsed)

	totalEntries := p.writeAll(outputDir, aggregates)

	slog.Info("pipeline run complete",
		"groups", len(p.Groups),
		"urls", len(fetchResults),
		"entries", totalEntries)
	return nil
}

// parseAll runs the parse tier across a worker pool sized to available
// CPU parallelism. Each parse is independent; a parse failure logs and
// contributes nothing for that URL.
func (p *Pipeline) parseAll(results []fetcher.Result) map[string]model.ParsedFeed {
	parsed := make(map[string]model.ParsedFeed)
	var mu sync.Mutex
	var wg sync.WaitGroup

	sem := make(chan struct{}, runtime.GOMAXPROCS(0))

	for _, res := range results {
		if res.Status != fetcher.StatusOK {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(res fetcher.Result) {
			defer wg.Done()
			defer func() { <-sem }()

			pf, err := p.Parser.Parse(res)
			if err != nil {
				slog.Error("parse failed", "url", res.URL, "slug", res.Group.Slug, "error", err)
				return
			}

			mu.Lock()
			parsed[model.SlugURL(res.Group.Slug, res.URL)] = pf
			mu.Unlock()
		}(res)
	}

	wg.Wait()
	return parsed
}

// writeAll writes one file per aggregate, in parallel across slugs, and
// returns the total number of entries written. A slug with
// zero entries is skipped under caching (nothing new to report) but
// still written when caching is off, per §4.4.
func (p *Pipeline) writeAll(outputDir string, aggregates []model.GroupAggregate) int {
	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0

	for _, agg := range aggregates {
		if len(agg.Entries) == 0 {
			slog.Info("no entries found for group", "slug", agg.Slug)
			if p.Caching {
				continue
			}
		}

		wg.Add(1)
		go func(agg model.GroupAggregate) {
			defer wg.Done()
			if err := writer.Write(outputDir, agg, p.FullDocument, p.Caching); err != nil {
				slog.Error("write failed", "slug", agg.Slug, "error", err)
				return
			}
			mu.Lock()
			total += len(agg.Entries)
			mu.Unlock()
			slog.Info("wrote feed", "slug", agg.Slug, "entries", len(agg.Entries))
		}(agg)
	}

	wg.Wait()
	return total
}
