// Package aggregate joins per-URL parse results into one aggregate per
// feed group, preserving group and URL declaration order.
package aggregate

import "github.com/feedpipeline/feedpipe/internal/model"

// Join groups parsed results by slug. results is keyed by slug_url
// (model.SlugURL); a URL with no entry in results is treated as having
// failed fetch or parse for this run and contributes nothing. Metadata
// and feed type are taken from the first URL, in declared order, whose
// ParsedFeed produced at least one entry.
func Join(groups []model.FeedGroup, results map[string]model.ParsedFeed) []model.GroupAggregate {
	aggregates := make([]model.GroupAggregate, 0, len(groups))

	for _, g := range groups {
		agg := model.GroupAggregate{Slug: g.Slug}
		metadataSet := false

		for _, url := range g.URLs {
			parsed, ok := results[model.SlugURL(g.Slug, url)]
			if !ok {
				continue
			}

			agg.Entries = append(agg.Entries, parsed.Entries...)

			if !metadataSet && len(parsed.Entries) > 0 {
				agg.Metadata = parsed.Metadata
				agg.FeedType = parsed.FeedType
				metadataSet = true
			}
		}

		aggregates = append(aggregates, agg)
	}

	return aggregates
}
