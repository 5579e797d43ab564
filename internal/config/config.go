// Package config loads the declarative feed-group list from a YAML file
// on disk. The document that generates that file is out of scope for this
// package; it only reads and validates an already-materialized config.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/feedpipeline/feedpipe/internal/model"
)

// DefaultPath is the config file location used when no --yaml flag is given.
const DefaultPath = "yaml_config/rss_config.yaml"

// document is the wrapped form of the YAML config file: a mapping whose
// feeds key holds the sequence of feed group mappings. Load also accepts
// the bare form, where the sequence itself is the top-level node.
type document struct {
	Feeds []model.FeedGroup `yaml:"feeds"`
}

// Load reads and validates the feed group list at path. A missing file,
// a permission error, or malformed YAML are all ConfigErrors and fatal to
// the caller; per-group validation failures are logged and the offending
// group is dropped instead of aborting the whole load.
func Load(path string) ([]model.FeedGroup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file %q not found: %w", path, err)
		}
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	var feeds []model.FeedGroup
	if err := yaml.Unmarshal(data, &feeds); err != nil {
		var doc document
		if docErr := yaml.Unmarshal(data, &doc); docErr != nil {
			return nil, fmt.Errorf("parse YAML config %q: %w", path, docErr)
		}
		feeds = doc.Feeds
	}

	groups := make([]model.FeedGroup, 0, len(feeds))
	for _, g := range feeds {
		if err := validate(g); err != nil {
			slog.Error("dropping invalid feed group", "slug", g.Slug, "error", err)
			continue
		}
		groups = append(groups, g)
	}

	return groups, nil
}

// validate applies the FeedGroup invariant from §3: name, slug, and a
// non-empty url list are all required.
func validate(g model.FeedGroup) error {
	if g.Name == "" {
		return fmt.Errorf("missing name")
	}
	if g.Slug == "" {
		return fmt.Errorf("missing slug")
	}
	if len(g.URLs) == 0 {
		return fmt.Errorf("missing urls")
	}
	return nil
}
