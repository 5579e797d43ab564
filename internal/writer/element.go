package writer

import (
	"bytes"
	"fmt"
	"strings"
)

// attr is an ordered XML attribute; Go maps don't preserve order, and the
// per-entry element rules care about attribute order matching the table.
type attr struct {
	Name  string
	Value string
}

// element is a minimal XML tree node, the same shape as Python's
// xml.etree.ElementTree.Element that the original normalizer builds
// entries against.
type element struct {
	Name     string
	Attrs    []attr
	Text     string
	Children []*element

	// Raw, if non-empty, is already-serialized XML spliced in verbatim
	// (used to re-attach cached entries from a prior run without
	// re-parsing them into the tree).
	Raw string
}

func textElement(name, text string) *element {
	return &element{Name: name, Text: text}
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

// render writes the element tree as pretty-printed XML with two-space
// indentation, mirroring minidom's toprettyxml output.
func render(buf *bytes.Buffer, el *element, depth int) {
	indent := strings.Repeat("  ", depth)

	if el.Raw != "" {
		for _, line := range strings.Split(strings.TrimRight(el.Raw, "\n"), "\n") {
			buf.WriteString(indent)
			buf.WriteString(line)
			buf.WriteString("\n")
		}
		return
	}

	buf.WriteString(indent)
	buf.WriteString("<")
	buf.WriteString(el.Name)
	for _, a := range el.Attrs {
		fmt.Fprintf(buf, ` %s="%s"`, a.Name, escapeXML(a.Value))
	}

	if el.Text == "" && len(el.Children) == 0 {
		buf.WriteString("/>\n")
		return
	}
	buf.WriteString(">")

	if len(el.Children) > 0 {
		buf.WriteString("\n")
		for _, c := range el.Children {
			render(buf, c, depth+1)
		}
		buf.WriteString(indent)
	} else {
		buf.WriteString(escapeXML(el.Text))
	}

	buf.WriteString("</")
	buf.WriteString(el.Name)
	buf.WriteString(">\n")
}

// serialize renders a root element into a full XML document with the
// given declared encoding.
func serialize(root *element, encoding string) string {
	var buf bytes.Buffer
	if encoding == "" {
		encoding = "utf-8"
	}
	fmt.Fprintf(&buf, `<?xml version="1.0" encoding="%s"?>`+"\n", encoding)
	render(&buf, root, 0)
	return buf.String()
}
