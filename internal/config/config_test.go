package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "rss_config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_ValidGroups(t *testing.T) {
	path := writeConfig(t, `
feeds:
  - name: Go Blog
    slug: golang-blog
    urls:
      - https://go.dev/blog/feed.atom
    match: []
    exclude: ["sponsored"]
  - name: Second Group
    slug: second
    urls:
      - https://example.com/feed
`)

	groups, err := Load(path)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "golang-blog", groups[0].Slug)
	assert.Equal(t, []string{"sponsored"}, groups[0].Exclude)
	assert.Equal(t, "second", groups[1].Slug)
}

func TestLoad_DropsInvalidGroups(t *testing.T) {
	path := writeConfig(t, `
feeds:
  - name: Missing Slug
    urls:
      - https://example.com/feed
  - name: Missing URLs
    slug: no-urls
  - name: Valid
    slug: valid
    urls:
      - https://example.com/feed
`)

	groups, err := Load(path)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "valid", groups[0].Slug)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "feeds: [this is not: valid: yaml")
	_, err := Load(path)
	assert.Error(t, err)
}
