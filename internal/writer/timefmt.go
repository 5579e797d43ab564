package writer

import (
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// rfc3339NumericOffset matches scenario 4's expected "+00:00" suffix
// rather than the "Z" shorthand time.RFC3339 would produce for UTC.
const rfc3339NumericOffset = "2006-01-02T15:04:05-07:00"

var (
	uriPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*://.*$`)
	urnPattern = regexp.MustCompile(`^urn:[A-Za-z0-9][A-Za-z0-9-]{0,31}:.*$`)
)

func isRFC3339(s string) bool {
	_, err := time.Parse(time.RFC3339, s)
	return err == nil
}

// coerceRFC3339 accepts an already-valid RFC-3339 timestamp unchanged;
// otherwise attempts a tolerant parse of common RSS date formats
// (treating the "UT" token as UTC) and re-serializes in RFC-3339 at UTC.
// On total failure it substitutes the current UTC time and logs.
func coerceRFC3339(s string) string {
	if s == "" {
		return ""
	}
	if isRFC3339(s) {
		return s
	}
	if t, ok := tolerantParse(s); ok {
		return t.UTC().Format(rfc3339NumericOffset)
	}
	slog.Warn("unparseable timestamp, substituting current time", "value", s)
	return time.Now().UTC().Format(rfc3339NumericOffset)
}

var tolerantLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"02 Jan 2006 15:04:05 -0700",
	"02 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
}

func tolerantParse(s string) (time.Time, bool) {
	normalized := strings.ReplaceAll(s, " UT", " UTC")
	for _, layout := range tolerantLayouts {
		if t, err := time.Parse(layout, normalized); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// isValidAtomID checks the §4.5 URI/URN validity regexes.
func isValidAtomID(id string) bool {
	return uriPattern.MatchString(id) || urnPattern.MatchString(id)
}

// resolveAtomID applies the §4.5 id fallback rule: missing becomes a
// hardcoded placeholder, present-but-invalid is rewritten as a urn:tag.
func resolveAtomID(id string) string {
	if id == "" {
		return "hardcoded-id:0000"
	}
	if !isValidAtomID(id) {
		return "urn:tag:" + id
	}
	return id
}

// isPermaLink reports whether a resolved id is itself a dereferenceable
// URI, for the RSS <guid isPermaLink> attribute.
func isPermaLink(resolvedID string) bool {
	return uriPattern.MatchString(resolvedID)
}
