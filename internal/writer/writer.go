// Package writer renders a GroupAggregate into normalized Atom/RSS XML
// and commits it to disk, one file per slug.
package writer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/feedpipeline/feedpipe/internal/model"
)

// Write renders agg and writes it to <outputDir>/<slug>_feed.xml.
// fullDocument selects the Atom full-document renderer over the default
// entries-only renderer. When caching is enabled and an output file
// already exists, the new render is merged with it per each renderer's
// MergeWithExisting rule.
func Write(outputDir string, agg model.GroupAggregate, fullDocument, caching bool) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	path := filepath.Join(outputDir, agg.Slug+"_feed.xml")

	var r Renderer
	if fullDocument {
		r = NewAtomRenderer(agg)
	} else {
		r = NewEntriesRenderer(agg)
	}
	r.ProcessAll()

	if caching {
		if existing, err := os.ReadFile(path); err == nil {
			if err := r.MergeWithExisting(existing); err != nil {
				slog.Warn("existing output could not be merged, overwriting", "path", path, "error", err)
			}
		} else if !os.IsNotExist(err) {
			slog.Warn("failed to read existing output for merge", "path", path, "error", err)
		}
	}

	if err := os.WriteFile(path, []byte(r.GetXML()), 0644); err != nil {
		return fmt.Errorf("write output %q: %w", path, err)
	}
	return nil
}
