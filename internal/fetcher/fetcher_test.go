package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedpipeline/feedpipe/internal/model"
	"github.com/feedpipeline/feedpipe/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFetchAll_OK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<rss></rss>"))
	}))
	defer server.Close()

	st := openTestStore(t)
	f := New(5*time.Second, 2, st, false)
	groups := []model.FeedGroup{{Slug: "a", URLs: []string{server.URL}}}

	results := f.FetchAll(context.Background(), groups)

	require.Len(t, results, 1)
	assert.Equal(t, StatusOK, results[0].Status)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "<rss></rss>", string(results[0].Body))
}

func TestFetchAll_ConditionalGET_NotModified(t *testing.T) {
	etag := `"etag-123"`
	requests := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		w.Write([]byte("<rss></rss>"))
	}))
	defer server.Close()

	st := openTestStore(t)
	f := New(5*time.Second, 2, st, true)
	groups := []model.FeedGroup{{Slug: "a", URLs: []string{server.URL}}}

	first := f.FetchAll(context.Background(), groups)
	require.Len(t, first, 1)
	require.Equal(t, StatusOK, first[0].Status)

	second := f.FetchAll(context.Background(), groups)
	require.Len(t, second, 1)
	assert.Equal(t, StatusNotModified, second[0].Status)
	assert.Nil(t, second[0].Body)
	assert.Equal(t, 2, requests)
}

func TestFetchAll_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	st := openTestStore(t)
	f := New(5*time.Second, 2, st, false)
	groups := []model.FeedGroup{{Slug: "a", URLs: []string{server.URL}}}

	results := f.FetchAll(context.Background(), groups)

	require.Len(t, results, 1)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.Error(t, results[0].Err)
}

func TestFetchAll_MultipleURLsDoNotBlockEachOther(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte("<rss>slow</rss>"))
	}))
	defer slow.Close()
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<rss>fast</rss>"))
	}))
	defer fast.Close()

	st := openTestStore(t)
	f := New(5*time.Second, 2, st, false)
	groups := []model.FeedGroup{{Slug: "a", URLs: []string{slow.URL, fast.URL}}}

	start := time.Now()
	results := f.FetchAll(context.Background(), groups)
	elapsed := time.Since(start)

	require.Len(t, results, 2)
	assert.Less(t, elapsed, 100*time.Millisecond)
}
