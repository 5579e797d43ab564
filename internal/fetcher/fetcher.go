// Package fetcher issues concurrent conditional GETs across every (group,
// url) pair in a configuration and reports one Result per URL.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/feedpipeline/feedpipe/internal/model"
	"github.com/feedpipeline/feedpipe/internal/store"
)

// Status classifies how a fetch resolved, per the §4.2 response table.
type Status int

const (
	StatusOK Status = iota
	StatusNotModified
	StatusFailed
)

// Result is the outcome of fetching one URL belonging to one group.
type Result struct {
	Group  model.FeedGroup
	URL    string
	Status Status
	Body   []byte
	Err    error
}

// job pairs one URL with the group it belongs to, the flattened unit of
// work the worker pool consumes.
type job struct {
	group model.FeedGroup
	url   string
}

// Fetcher is the concurrent I/O-bound fetch tier.
type Fetcher struct {
	client  *http.Client
	store   *store.Store
	caching bool
	workers int
}

// New builds a Fetcher with a bounded worker pool and a transport tuned
// against hung connections: a dial timeout, a TLS handshake timeout, and
// an overall per-request timeout.
func New(timeout time.Duration, workers int, st *store.Store, caching bool) *Fetcher {
	transport := &http.Transport{
		MaxIdleConns:        workers * 2,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Fetcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		store:   st,
		caching: caching,
		workers: workers,
	}
}

// FetchAll fans every (group, url) pair across the worker pool and
// collects results. The fetch tier never blocks one URL on another.
func (f *Fetcher) FetchAll(ctx context.Context, groups []model.FeedGroup) []Result {
	jobs := make([]job, 0)
	for _, g := range groups {
		for _, u := range g.URLs {
			jobs = append(jobs, job{group: g, url: u})
		}
	}
	if len(jobs) == 0 {
		return nil
	}

	jobsChan := make(chan job, len(jobs))
	resultsChan := make(chan Result, len(jobs))

	workers := f.workers
	if workers > len(jobs) {
		workers = len(jobs)
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobsChan {
				resultsChan <- f.fetchOne(ctx, j.group, j.url)
			}
		}()
	}

	go func() {
		for _, j := range jobs {
			jobsChan <- j
		}
		close(jobsChan)
	}()

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	results := make([]Result, 0, len(jobs))
	for r := range resultsChan {
		results = append(results, r)
	}
	return results
}

// fetchOne issues one conditional GET and classifies the response per the
// §4.2 table. On a 200, validators are written to the cache immediately.
func (f *Fetcher) fetchOne(ctx context.Context, group model.FeedGroup, url string) Result {
	result := Result{Group: group, URL: url}
	slugURL := model.SlugURL(group.Slug, url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Status = StatusFailed
		result.Err = fmt.Errorf("create request: %w", err)
		slog.Error("failed to create request", "url", url, "error", err)
		return result
	}
	req.Header.Set("User-Agent", "feedpipe/1.0 (+feed aggregator)")

	if f.caching {
		if cached, err := f.store.Fetch(slugURL); err != nil {
			slog.Warn("cache lookup failed", "slug_url", slugURL, "error", err)
		} else if cached != nil {
			if cached.ETag != "" {
				req.Header.Set("If-None-Match", cached.ETag)
			}
			if cached.LastModified != "" {
				req.Header.Set("If-Modified-Since", cached.LastModified)
			}
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		result.Status = StatusFailed
		result.Err = fmt.Errorf("fetch %s: %w", url, err)
		slog.Error("transport error", "url", url, "error", err)
		return result
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		result.Status = StatusNotModified
		slog.Debug("not modified", "url", url)
		return result

	case resp.StatusCode == http.StatusNotFound:
		result.Status = StatusFailed
		result.Err = fmt.Errorf("404 not found: %s", url)
		slog.Error("feed not found", "url", url)
		return result

	case resp.StatusCode != http.StatusOK:
		result.Status = StatusFailed
		result.Err = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, url)
		slog.Error("unexpected status", "url", url, "status", resp.StatusCode)
		return result
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		result.Status = StatusFailed
		result.Err = fmt.Errorf("read body: %w", err)
		slog.Error("failed to read response body", "url", url, "error", err)
		return result
	}

	result.Status = StatusOK
	result.Body = body

	if f.caching {
		if err := f.store.UpdateValidators(slugURL, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified")); err != nil {
			slog.Warn("failed to persist validators", "slug_url", slugURL, "error", err)
		}
	}

	slog.Info("fetched", "url", url, "slug", group.Slug, "bytes", len(body))
	return result
}
