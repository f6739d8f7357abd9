// Package textdiff applies span edits to documents and renders the
// results as unified diffs. Every transformation funnels through
// Apply, so previewed and committed content come from the same bytes.
package textdiff

import (
	"bytes"
	"fmt"
	"sort"

	"recast/internal/source"
)

// Edit replaces one span of a document with new text. A zero-length
// span inserts at its start offset.
type Edit struct {
	Span    source.Span `json:"span"`
	NewText string      `json:"newText"`
}

// SortEdits returns the edits ordered by start offset. The input is
// left untouched; ties keep their original order.
func SortEdits(edits []Edit) []Edit {
	out := make([]Edit, len(edits))
	copy(out, edits)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Span.Start != out[j].Span.Start {
			return out[i].Span.Start < out[j].Span.Start
		}
		return out[i].Span.End < out[j].Span.End
	})
	return out
}

// Apply rewrites content with the given edits. Edits may arrive in any
// order but must not overlap and must lie within the content.
func Apply(content []byte, edits []Edit) ([]byte, error) {
	if len(edits) == 0 {
		return content, nil
	}
	sorted := SortEdits(edits)

	for i, e := range sorted {
		if e.Span.Start < 0 || e.Span.End < e.Span.Start || e.Span.End > len(content) {
			return nil, fmt.Errorf("edit %d out of range: %s against %d bytes", i, e.Span, len(content))
		}
		if i > 0 && sorted[i-1].Span.End > e.Span.Start {
			return nil, fmt.Errorf("overlapping edits: %s and %s", sorted[i-1].Span, e.Span)
		}
	}

	var buf bytes.Buffer
	buf.Grow(len(content) + growth(sorted))
	last := 0
	for _, e := range sorted {
		buf.Write(content[last:e.Span.Start])
		buf.WriteString(e.NewText)
		last = e.Span.End
	}
	buf.Write(content[last:])
	return buf.Bytes(), nil
}

func growth(edits []Edit) int {
	n := 0
	for _, e := range edits {
		if d := len(e.NewText) - e.Span.Len(); d > 0 {
			n += d
		}
	}
	return n
}

// Replace builds an edit that swaps the span for the text.
func Replace(span source.Span, text string) Edit {
	return Edit{Span: span, NewText: text}
}

// Insert builds a zero-length edit at the offset.
func Insert(offset int, text string) Edit {
	return Edit{Span: source.Span{Start: offset, End: offset}, NewText: text}
}

// Delete builds an edit that removes the span.
func Delete(span source.Span) Edit {
	return Edit{Span: span}
}
