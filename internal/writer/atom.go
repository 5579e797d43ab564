package writer

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/feedpipeline/feedpipe/internal/model"
)

// Renderer is the common strategy interface behind the two output modes,
// grounded on the original FeedProcessorBase contract (process_all /
// get_xml / cache-merge).
type Renderer interface {
	ProcessAll()
	GetXML() string
	MergeWithExisting(existing []byte) error
}

// AtomRenderer emits a complete Atom feed document (full-document mode).
type AtomRenderer struct {
	aggregate model.GroupAggregate
	root      *element
}

// NewAtomRenderer builds a renderer for one group's aggregate.
func NewAtomRenderer(agg model.GroupAggregate) *AtomRenderer {
	return &AtomRenderer{
		aggregate: agg,
		root: &element{
			Name:  "feed",
			Attrs: []attr{{Name: "xmlns", Value: "http://www.w3.org/2005/Atom"}},
		},
	}
}

// ProcessAll builds the full element tree: the feed's own title/id/updated
// followed by one <entry> per kept entry, fields rendered in the fixed
// order title, published, updated, id, summary, enclosures, tags, link,
// author.
func (r *AtomRenderer) ProcessAll() {
	meta := r.aggregate.Metadata
	r.root.Children = append(r.root.Children,
		textElement("title", meta.Title),
		textElement("id", meta.ID),
		textElement("updated", meta.Updated),
	)

	for _, e := range r.aggregate.Entries {
		r.root.Children = append(r.root.Children, r.buildEntry(e, meta))
	}
}

func (r *AtomRenderer) buildEntry(e model.Entry, meta model.FeedMetadata) *element {
	entry := &element{Name: "entry"}

	title := e.Title
	if title == "" {
		title = "No title"
	}
	entry.Children = append(entry.Children, textElement("title", title))

	if e.Published != "" {
		entry.Children = append(entry.Children, textElement("published", coerceRFC3339(e.Published)))
	}

	updatedSrc := e.Updated
	if updatedSrc == "" {
		updatedSrc = meta.Updated
	}
	entry.Children = append(entry.Children, textElement("updated", coerceRFC3339(updatedSrc)))

	entry.Children = append(entry.Children, textElement("id", resolveAtomID(e.ID)))

	if e.Summary != "" {
		summaryType := mapSummaryType(e.SummaryType)
		entry.Children = append(entry.Children, &element{
			Name:  "summary",
			Attrs: []attr{{Name: "type", Value: summaryType}},
			Text:  e.Summary,
		})
	}

	for _, enc := range e.Enclosures {
		entry.Children = append(entry.Children, &element{
			Name: "link",
			Attrs: []attr{
				{Name: "rel", Value: "enclosure"},
				{Name: "type", Value: defaultString(enc.Type, "text/html")},
				{Name: "length", Value: enc.Length},
				{Name: "href", Value: enc.Href},
			},
		})
	}

	for _, tag := range e.Tags {
		entry.Children = append(entry.Children, &element{
			Name: "category",
			Attrs: []attr{
				{Name: "scheme", Value: tag.Scheme},
				{Name: "label", Value: tag.Label},
				{Name: "term", Value: tag.Term},
			},
		})
	}

	for _, l := range entryLinks(e, meta) {
		if l.Rel == "enclosure" {
			continue
		}
		entry.Children = append(entry.Children, &element{
			Name: "link",
			Attrs: []attr{
				{Name: "rel", Value: defaultString(l.Rel, "alternate")},
				{Name: "type", Value: defaultString(l.Type, "text/html")},
				{Name: "href", Value: l.Href},
			},
		})
	}

	author := defaultString(e.Author, "Anonymous")
	authorEl := &element{Name: "author"}
	authorEl.Children = append(authorEl.Children, textElement("name", author))
	entry.Children = append(entry.Children, authorEl)

	return entry
}

// entryLinks resolves the link list an entry renders, falling back to
// the feed id when the entry has no link of its own.
func entryLinks(e model.Entry, meta model.FeedMetadata) []model.Link {
	if len(e.Links) > 0 {
		return e.Links
	}
	if e.Link != "" {
		return []model.Link{{Href: e.Link}}
	}
	return []model.Link{{Href: meta.ID}}
}

func mapSummaryType(mime string) string {
	switch mime {
	case "text/html":
		return "html"
	case "application/xhtml+xml":
		return "xhtml"
	default:
		return "text"
	}
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// GetXML renders the pretty-printed document, honoring feed_metadata.encoding.
func (r *AtomRenderer) GetXML() string {
	return serialize(r.root, r.aggregate.Metadata.Encoding)
}

// MergeWithExisting parses an existing output file and re-attaches its
// <entry> children, verbatim, after the freshly rendered ones, so the new
// entries read above the prior history. An unparseable existing file is
// dropped with a warning (the caller logs it) rather than blocking the
// new output.
func (r *AtomRenderer) MergeWithExisting(existing []byte) error {
	entries, err := extractTopLevelElements(existing, "entry")
	if err != nil {
		return fmt.Errorf("parse existing document: %w", err)
	}
	for _, raw := range entries {
		r.root.Children = append(r.root.Children, &element{Raw: raw})
	}
	return nil
}

// extractTopLevelElements returns the raw XML of every direct child of
// the document root matching tagName, in document order.
func extractTopLevelElements(data []byte, tagName string) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	depth := 0
	var out []string

	for {
		start := dec.InputOffset()
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 2 && t.Name.Local == tagName {
				if err := dec.Skip(); err != nil {
					return nil, err
				}
				end := dec.InputOffset()
				out = append(out, string(data[start:end]))
				depth--
			}
		case xml.EndElement:
			depth--
		}
	}

	return out, nil
}
