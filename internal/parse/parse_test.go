package parse

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedpipeline/feedpipe/internal/fetcher"
	"github.com/feedpipeline/feedpipe/internal/model"
	"github.com/feedpipeline/feedpipe/internal/store"
)

const atomFeed = `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example</title>
  <entry>
    <title>x-new</title>
    <id>urn:entry:2</id>
    <link href="https://example.com/2"/>
  </entry>
  <entry>
    <title>y-old</title>
    <id>urn:entry:1</id>
    <link href="https://example.com/1"/>
  </entry>
</feed>`

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestParse_FeedTypeDetection(t *testing.T) {
	st := openTestStore(t)
	p := New(st, false)

	result := fetcher.Result{
		Group: model.FeedGroup{Slug: "a"},
		URL:   "https://example.com/feed",
		Body:  []byte(atomFeed),
	}

	parsed, err := p.Parse(result)
	require.NoError(t, err)
	assert.Equal(t, "atom", parsed.FeedType)
}

func TestParse_KeywordFilter(t *testing.T) {
	st := openTestStore(t)
	p := New(st, false)

	result := fetcher.Result{
		Group: model.FeedGroup{Slug: "a", Match: []string{"x-new"}},
		URL:   "https://example.com/feed",
		Body:  []byte(atomFeed),
	}

	parsed, err := p.Parse(result)
	require.NoError(t, err)
	require.Len(t, parsed.Entries, 1)
	assert.Equal(t, "x-new", parsed.Entries[0].Title)
}

func TestParse_TruncatesAtLastSeenID(t *testing.T) {
	st := openTestStore(t)
	slugURL := model.SlugURL("a", "https://example.com/feed")
	require.NoError(t, st.UpdateLastSeen(slugURL, "urn:entry:1"))

	p := New(st, true)
	result := fetcher.Result{
		Group: model.FeedGroup{Slug: "a"},
		URL:   "https://example.com/feed",
		Body:  []byte(atomFeed),
	}

	parsed, err := p.Parse(result)
	require.NoError(t, err)
	require.Len(t, parsed.Entries, 1)
	assert.Equal(t, "x-new", parsed.Entries[0].Title)

	entry, err := st.Fetch(slugURL)
	require.NoError(t, err)
	assert.Equal(t, "urn:entry:2", entry.LastSeenID)
}

func TestCheckKeywords_ExcludeMatchesOutsideTitleAndSummary(t *testing.T) {
	sponsored := model.Entry{
		Title: "A Totally Normal Post",
		Link:  "https://example.com/sponsored/123",
	}
	assert.False(t, checkKeywords(sponsored, nil, []string{"sponsored"}))
}

func TestCheckKeywords_MatchFindsKeywordInID(t *testing.T) {
	e := model.Entry{Title: "Release Notes", ID: "urn:release:v2"}
	assert.True(t, checkKeywords(e, []string{"v2"}, nil))
}

func TestCheckKeywords_ExcludeMatchesEnclosureHref(t *testing.T) {
	e := model.Entry{
		Title:      "Episode 12",
		Enclosures: []model.Enclosure{{Href: "https://example.com/ads/episode12.mp3"}},
	}
	assert.False(t, checkKeywords(e, nil, []string{"ads"}))
}

func TestParse_AdvancesCacheToNewestKept(t *testing.T) {
	st := openTestStore(t)
	p := New(st, true)
	slugURL := model.SlugURL("a", "https://example.com/feed")

	result := fetcher.Result{
		Group: model.FeedGroup{Slug: "a"},
		URL:   "https://example.com/feed",
		Body:  []byte(atomFeed),
	}

	_, err := p.Parse(result)
	require.NoError(t, err)

	entry, err := st.Fetch(slugURL)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "urn:entry:2", entry.LastSeenID)
}
