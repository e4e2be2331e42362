package service

import "regexp"

var (
	citationPattern = regexp.MustCompile(`\[\d+\]`)
	// Trailing "[digits" runs may be completed by the next chunk. The whole
	// run is held: in "[1[2" stripping the inner marker later joins "[1"
	// with the following "]".
	partialCitation = regexp.MustCompile(`(?:\[\d*)+$`)
)

// StripCitations removes "[<digits>]" markers, repeating until none remain
// so that nested leftovers such as "[1[2]]" disappear too.
func StripCitations(s string) string {
	for {
		out := citationPattern.ReplaceAllString(s, "")
		if out == s {
			return out
		}
		s = out
	}
}

// CitationFilter strips citation markers from a stream of text chunks,
// including markers split across chunk boundaries. Not safe for
// concurrent use.
type CitationFilter struct {
	pending string
}

// Push returns the part of chunk that can be emitted now. Text that might
// still turn into a marker is held back until the next Push or Flush.
func (f *CitationFilter) Push(chunk string) string {
	s := StripCitations(f.pending + chunk)
	f.pending = ""

	if loc := partialCitation.FindStringIndex(s); loc != nil {
		f.pending = s[loc[0]:]
		s = s[:loc[0]]
	}
	return s
}

// Flush returns whatever is still held back. Call it once the stream ends.
func (f *CitationFilter) Flush() string {
	s := f.pending
	f.pending = ""
	return s
}
