package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedpipeline/feedpipe/internal/fetcher"
	"github.com/feedpipeline/feedpipe/internal/model"
	"github.com/feedpipeline/feedpipe/internal/parse"
	"github.com/feedpipeline/feedpipe/internal/store"
)

const atomFixture = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example Feed</title>
  <id>https://example.com/</id>
  <updated>2024-01-01T00:00:00Z</updated>
  <entry>
    <title>Hello World</title>
    <id>urn:entry:1</id>
    <link href="https://example.com/1"/>
    <updated>2024-01-01T00:00:00Z</updated>
  </entry>
</feed>`

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunOnce_FetchesParsesAndWritesOneFilePerGroup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte(atomFixture))
	}))
	defer srv.Close()

	st := openTestStore(t)
	groups := []model.FeedGroup{
		{Name: "Example", Slug: "example", URLs: []string{srv.URL}},
	}

	p := &Pipeline{
		Groups:       groups,
		Fetcher:      fetcher.New(5*time.Second, 4, st, false),
		Parser:       parse.New(st, false),
		FullDocument: false,
		Caching:      false,
	}

	outDir := t.TempDir()
	require.NoError(t, p.RunOnce(context.Background(), outDir))

	data, err := os.ReadFile(filepath.Join(outDir, "example_feed.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Hello World")
}

func TestRunOnce_SkipsFailedURLWithoutAbortingRun(t *testing.T) {
	badSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer badSrv.Close()

	goodSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(atomFixture))
	}))
	defer goodSrv.Close()

	st := openTestStore(t)
	groups := []model.FeedGroup{
		{Name: "Broken", Slug: "broken", URLs: []string{badSrv.URL}},
		{Name: "Good", Slug: "good", URLs: []string{goodSrv.URL}},
	}

	p := &Pipeline{
		Groups:  groups,
		Fetcher: fetcher.New(5*time.Second, 4, st, true),
		Parser:  parse.New(st, true),
		Caching: true,
	}

	outDir := t.TempDir()
	require.NoError(t, p.RunOnce(context.Background(), outDir))

	_, err := os.ReadFile(filepath.Join(outDir, "good_feed.xml"))
	require.NoError(t, err)

	_, err = os.ReadFile(filepath.Join(outDir, "broken_feed.xml"))
	assert.True(t, os.IsNotExist(err))
}
