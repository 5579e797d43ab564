package writer

import (
	"bytes"

	"github.com/feedpipeline/feedpipe/internal/model"
)

// EntriesRenderer emits only the sequence of entry/item elements (the
// default, non-"valid-rss" output mode). The wrapper tag follows the
// source feed type; the inner elements follow the RSS naming convention
// regardless of wrapper, per §4.5's entries-only column.
type EntriesRenderer struct {
	aggregate  model.GroupAggregate
	wrapperTag string
	wrappers   []*element
}

// NewEntriesRenderer builds an entries-only renderer. wrapperTag is
// "item" for an RSS source and "entry" for an Atom source.
func NewEntriesRenderer(agg model.GroupAggregate) *EntriesRenderer {
	wrapperTag := "entry"
	if agg.FeedType == "rss" {
		wrapperTag = "item"
	}
	return &EntriesRenderer{aggregate: agg, wrapperTag: wrapperTag}
}

func (r *EntriesRenderer) ProcessAll() {
	for _, e := range r.aggregate.Entries {
		r.wrappers = append(r.wrappers, r.buildEntry(e))
	}
}

func (r *EntriesRenderer) buildEntry(e model.Entry) *element {
	wrapper := &element{Name: r.wrapperTag}

	title := e.Title
	if title == "" {
		title = "No title"
	}
	wrapper.Children = append(wrapper.Children, textElement("title", title))

	if e.Published != "" {
		wrapper.Children = append(wrapper.Children, textElement("pubDate", e.Published))
	}

	resolvedID := resolveAtomID(e.ID)
	wrapper.Children = append(wrapper.Children, &element{
		Name:  "guid",
		Attrs: []attr{{Name: "isPermaLink", Value: boolString(isPermaLink(resolvedID))}},
		Text:  resolvedID,
	})

	if e.Summary != "" {
		wrapper.Children = append(wrapper.Children, textElement("description", e.Summary))
	}

	for _, enc := range e.Enclosures {
		wrapper.Children = append(wrapper.Children, &element{
			Name: "enclosure",
			Attrs: []attr{
				{Name: "url", Value: enc.Href},
				{Name: "type", Value: enc.Type},
				{Name: "length", Value: enc.Length},
			},
		})
	}

	for _, tag := range e.Tags {
		if tag.Scheme != "" {
			wrapper.Children = append(wrapper.Children, &element{
				Name:  "category",
				Attrs: []attr{{Name: "domain", Value: tag.Scheme}},
				Text:  tag.Term,
			})
		} else {
			wrapper.Children = append(wrapper.Children, textElement("category", tag.Term))
		}
	}

	for _, l := range entryLinks(e, r.aggregate.Metadata) {
		if l.Rel == "enclosure" {
			continue
		}
		wrapper.Children = append(wrapper.Children, textElement("link", l.Href))
	}

	author := defaultString(e.Author, "Anonymous")
	wrapper.Children = append(wrapper.Children, textElement("author", author))

	return wrapper
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// GetXML joins the rendered wrapper elements with newlines, matching the
// original processor's plain string-concatenation output (no XML
// declaration, no enclosing root element).
func (r *EntriesRenderer) GetXML() string {
	var buf bytes.Buffer
	for i, w := range r.wrappers {
		if i > 0 {
			buf.WriteString("\n")
		}
		render(&buf, w, 0)
	}
	buf.WriteString("\n")
	return buf.String()
}

// MergeWithExisting appends the previous output file's raw lines below
// the freshly rendered entries, verbatim — a textual append, not an
// XML-aware merge, matching the original processor and open question (b).
func (r *EntriesRenderer) MergeWithExisting(existing []byte) error {
	r.wrappers = append(r.wrappers, &element{Raw: string(existing)})
	return nil
}
