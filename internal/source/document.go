// Package source defines the immutable workspace snapshot that every
// analysis and transformation runs against. A snapshot is a point-in-time
// view of the workspace's documents; transformations never mutate it,
// they derive new snapshots from it.
package source

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// Span is a half-open byte range [Start, End) within a document.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Contains reports whether other lies entirely within s.
func (s Span) Contains(other Span) bool {
	return s.Start <= other.Start && other.End <= s.End
}

// ContainsOffset reports whether the byte offset falls inside the span.
func (s Span) ContainsOffset(offset int) bool {
	return s.Start <= offset && offset < s.End
}

// Overlaps reports whether the two spans share at least one byte.
func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End && other.Start < s.End
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}

// Position is a 1-based line and column for display purposes.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Document is an immutable source file within a snapshot.
type Document struct {
	// Path is the canonical workspace-relative path with forward slashes.
	Path string
	// Content is the raw file content. Callers must not mutate it.
	Content []byte
	// Hash is the hex-encoded SHA-256 of Content. Two documents with the
	// same hash parse to the same tree, which makes it a safe cache key.
	Hash string

	lineStarts []int
}

// NewDocument builds an immutable document from raw content.
func NewDocument(path string, content []byte) *Document {
	sum := sha256.Sum256(content)
	return &Document{
		Path:       path,
		Content:    content,
		Hash:       hex.EncodeToString(sum[:]),
		lineStarts: computeLineStarts(content),
	}
}

func computeLineStarts(content []byte) []int {
	starts := []int{0}
	for i, b := range content {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// Len returns the content length in bytes.
func (d *Document) Len() int {
	return len(d.Content)
}

// Text returns the content as a string.
func (d *Document) Text() string {
	return string(d.Content)
}

// Slice returns the bytes covered by the span. Out-of-range spans are
// clamped to the document.
func (d *Document) Slice(span Span) []byte {
	start := span.Start
	end := span.End
	if start < 0 {
		start = 0
	}
	if end > len(d.Content) {
		end = len(d.Content)
	}
	if start >= end {
		return nil
	}
	return d.Content[start:end]
}

// PositionFor converts a byte offset to a 1-based line and column.
func (d *Document) PositionFor(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(d.Content) {
		offset = len(d.Content)
	}

	// Binary search for the last line start at or before offset
	line := sort.Search(len(d.lineStarts), func(i int) bool {
		return d.lineStarts[i] > offset
	}) - 1

	return Position{
		Line:   line + 1,
		Column: offset - d.lineStarts[line] + 1,
	}
}

// OffsetFor converts a 1-based line and column to a byte offset. Positions
// past the end of a line or the document are clamped.
func (d *Document) OffsetFor(line, column int) int {
	if line < 1 {
		line = 1
	}
	if line > len(d.lineStarts) {
		return len(d.Content)
	}

	start := d.lineStarts[line-1]
	end := len(d.Content)
	if line < len(d.lineStarts) {
		end = d.lineStarts[line] - 1 // exclude the newline
	}

	offset := start + column - 1
	if offset > end {
		offset = end
	}
	if offset < start {
		offset = start
	}
	return offset
}

// LineCount returns the number of lines in the document. A trailing
// newline starts a final empty line, matching how editors count.
func (d *Document) LineCount() int {
	return len(d.lineStarts)
}

// LineSpan returns the span of the given 1-based line, excluding the
// line terminator.
func (d *Document) LineSpan(line int) Span {
	if line < 1 || line > len(d.lineStarts) {
		return Span{}
	}
	start := d.lineStarts[line-1]
	end := len(d.Content)
	if line < len(d.lineStarts) {
		end = d.lineStarts[line] - 1
	}
	return Span{Start: start, End: end}
}
