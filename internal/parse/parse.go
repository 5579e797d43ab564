// Package parse turns one Fetcher result into a ParsedFeed: syndication
// XML decoding, feed-type detection, metadata defaults, keyword
// filtering, and last-seen-id truncation.
package parse

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/feedpipeline/feedpipe/internal/fetcher"
	"github.com/feedpipeline/feedpipe/internal/model"
	"github.com/feedpipeline/feedpipe/internal/store"
)

// Parser is one CPU-bound worker's view of the parse tier. It is safe for
// concurrent use: each call to Parse only touches the cache row for its
// own slug_url.
type Parser struct {
	store   *store.Store
	caching bool
}

// New builds a Parser. caching controls whether last-seen-id truncation
// and cache advancement are applied.
func New(st *store.Store, caching bool) *Parser {
	return &Parser{store: st, caching: caching}
}

// Parse applies the §4.3 contract to one 200-OK fetch result. Parse
// failures are returned as an error to the caller, which logs and treats
// the URL as contributing zero entries; they never abort the pipeline.
func (p *Parser) Parse(result fetcher.Result) (model.ParsedFeed, error) {
	slugURL := model.SlugURL(result.Group.Slug, result.URL)

	fp := gofeed.NewParser()
	feed, err := fp.Parse(bytes.NewReader(result.Body))
	if err != nil {
		return model.ParsedFeed{}, fmt.Errorf("parse feed %s: %w", result.URL, err)
	}

	feedType := detectFeedType(feed)
	meta := feedMetadata(feed, result.URL)

	var lastSeenID string
	if p.caching {
		cached, err := p.store.Fetch(slugURL)
		if err != nil {
			slog.Warn("cache lookup failed during parse", "slug_url", slugURL, "error", err)
		} else if cached != nil {
			lastSeenID = cached.LastSeenID
		}
	}

	entries := filterEntries(feed.Items, result.Group.Match, result.Group.Exclude, lastSeenID, p.caching)

	if p.caching && len(entries) > 0 {
		if err := p.store.UpdateLastSeen(slugURL, identity(entries[0])); err != nil {
			slog.Warn("failed to advance last_seen_id", "slug_url", slugURL, "error", err)
		}
	}

	return model.ParsedFeed{
		FeedType: feedType,
		Metadata: meta,
		Entries:  entries,
	}, nil
}

// detectFeedType applies the §4.3 rule: a version token beginning with
// "rss" is RSS, everything else is Atom.
func detectFeedType(feed *gofeed.Feed) string {
	if strings.HasPrefix(strings.ToLower(feed.FeedVersion), "rss") {
		return "rss"
	}
	return "atom"
}

// feedMetadata applies the §3 defaults for any field the source omitted.
func feedMetadata(feed *gofeed.Feed, sourceURL string) model.FeedMetadata {
	meta := model.FeedMetadata{
		Encoding: "utf-8",
		Title:    "Latest Updates",
		ID:       sourceURL,
		Updated:  time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		Author:   "Anonymous",
	}

	if feed.Title != "" {
		meta.Title = feed.Title
	}
	if feed.FeedLink != "" {
		meta.ID = feed.FeedLink
	} else if feed.Link != "" {
		meta.ID = feed.Link
	}
	if feed.UpdatedParsed != nil {
		meta.Updated = feed.UpdatedParsed.UTC().Format("2006-01-02T15:04:05Z")
	}
	if feed.Author != nil && feed.Author.Name != "" {
		meta.Author = feed.Author.Name
	}

	return meta
}

// filterEntries implements the §4.3 keyword filter and last-seen-id
// truncation in one pass over the source's entries, in source order.
func filterEntries(items []*gofeed.Item, match, exclude []string, lastSeenID string, caching bool) []model.Entry {
	kept := make([]model.Entry, 0, len(items))

	for _, item := range items {
		entry := convertEntry(item)

		if caching && lastSeenID != "" && identity(entry) == lastSeenID {
			break
		}

		if !checkKeywords(entry, match, exclude) {
			continue
		}

		kept = append(kept, entry)
	}

	return kept
}

// identity resolves open question (a): compare by id when present, else
// by link.
func identity(e model.Entry) string {
	if e.ID != "" {
		return e.ID
	}
	return e.Link
}

// checkKeywords applies the §4.3 match/exclude rule against a lowercased
// textual projection of the whole entry, the Go analog of the original's
// str(entry).lower() (feed_parser.py).
func checkKeywords(e model.Entry, match, exclude []string) bool {
	projection := strings.ToLower(projectionOf(e))

	if len(match) > 0 && !containsAny(projection, match) {
		return false
	}
	if containsAny(projection, exclude) {
		return false
	}
	return true
}

// projectionOf stringifies every field of the entry that could plausibly
// carry a keyword, mirroring the original's whole-entry stringification
// rather than a curated subset of fields.
func projectionOf(e model.Entry) string {
	var b strings.Builder
	fields := []string{e.Title, e.ID, e.Link, e.Published, e.Updated, e.Summary, e.Author}
	for _, f := range fields {
		b.WriteString(f)
		b.WriteString(" ")
	}
	for _, l := range e.Links {
		b.WriteString(l.Href)
		b.WriteString(" ")
	}
	for _, t := range e.Tags {
		b.WriteString(t.Term)
		b.WriteString(" ")
	}
	for _, enc := range e.Enclosures {
		b.WriteString(enc.Href)
		b.WriteString(" ")
	}
	return b.String()
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if n == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// convertEntry maps a gofeed item onto the tolerant Entry shape.
func convertEntry(item *gofeed.Item) model.Entry {
	entry := model.Entry{
		Title:     item.Title,
		ID:        item.GUID,
		Link:      item.Link,
		Published: item.Published,
		Updated:   item.Updated,
		Summary:   item.Description,
	}
	if entry.Summary == "" {
		entry.Summary = item.Content
	}
	if item.Author != nil {
		entry.Author = item.Author.Name
	}
	for _, l := range item.Links {
		entry.Links = append(entry.Links, model.Link{Href: l})
	}
	for _, c := range item.Categories {
		entry.Tags = append(entry.Tags, model.Tag{Term: c})
	}
	for _, enc := range item.Enclosures {
		entry.Enclosures = append(entry.Enclosures, model.Enclosure{
			Href:   enc.URL,
			Type:   enc.Type,
			Length: enc.Length,
		})
	}
	return entry
}
