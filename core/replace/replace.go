// Package replace splices pseudonyms into a document by byte offset.
// Offsets always refer to the original text; applying replacements from
// the end keeps every earlier offset valid.
package replace

import (
	"fmt"
	"sort"
	"strings"
)

// Span represents one replacement of a byte range, End exclusive.
type Span struct {
	Start       int
	End         int
	Replacement string
}

// Resolve orders spans and drops overlaps. Sorting is by start ascending
// with longer spans first, so a full name wins over a surname contained
// in it. The returned slice is sorted and overlap free.
func Resolve(spans []Span) []Span {
	if len(spans) == 0 {
		return nil
	}

	ordered := make([]Span, len(spans))
	copy(ordered, spans)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Start != ordered[j].Start {
			return ordered[i].Start < ordered[j].Start
		}
		return ordered[i].End > ordered[j].End
	})

	resolved := make([]Span, 0, len(ordered))
	lastEnd := -1
	for _, span := range ordered {
		if span.Start < lastEnd {
			continue
		}
		resolved = append(resolved, span)
		lastEnd = span.End
	}
	return resolved
}

// Apply splices resolved spans into the text, working from the last span
// backwards. Spans must be sorted ascending and overlap free, which is
// what Resolve returns.
func Apply(text string, spans []Span) (string, error) {
	for i, span := range spans {
		if span.Start < 0 || span.End > len(text) || span.Start > span.End {
			return "", fmt.Errorf("span %d out of range [%d:%d) for text of %d bytes", i, span.Start, span.End, len(text))
		}
		if i > 0 && span.Start < spans[i-1].End {
			return "", fmt.Errorf("span %d overlaps its predecessor", i)
		}
	}

	var builder strings.Builder
	result := text
	for i := len(spans) - 1; i >= 0; i-- {
		span := spans[i]
		builder.Reset()
		builder.Grow(len(result) - (span.End - span.Start) + len(span.Replacement))
		builder.WriteString(result[:span.Start])
		builder.WriteString(span.Replacement)
		builder.WriteString(result[span.End:])
		result = builder.String()
	}
	return result, nil
}

// Splice resolves and applies in one pass.
func Splice(text string, spans []Span) (string, error) {
	return Apply(text, Resolve(spans))
}
