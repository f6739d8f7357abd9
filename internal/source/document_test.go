package source

import (
	"strings"
	"testing"
)

func TestNewDocument(t *testing.T) {
	doc := NewDocument("src/Engine.cs", []byte("class Engine {}\n"))

	if doc.Path != "src/Engine.cs" {
		t.Errorf("Path = %q", doc.Path)
	}
	if doc.Hash == "" {
		t.Error("Hash should be computed")
	}
	if len(doc.Hash) != 64 {
		t.Errorf("Hash should be 64 hex chars, got %d", len(doc.Hash))
	}
	if doc.Len() != 16 {
		t.Errorf("Len = %d, want 16", doc.Len())
	}
}

func TestDocumentHashStability(t *testing.T) {
	a := NewDocument("A.cs", []byte("class A {}"))
	b := NewDocument("B.cs", []byte("class A {}"))
	c := NewDocument("C.cs", []byte("class C {}"))

	if a.Hash != b.Hash {
		t.Error("Same content should hash identically regardless of path")
	}
	if a.Hash == c.Hash {
		t.Error("Different content should hash differently")
	}
}

func TestSpan(t *testing.T) {
	s := Span{Start: 10, End: 20}

	if s.Len() != 10 {
		t.Errorf("Len = %d, want 10", s.Len())
	}
	if !s.Contains(Span{Start: 10, End: 20}) {
		t.Error("Span should contain itself")
	}
	if !s.Contains(Span{Start: 12, End: 18}) {
		t.Error("Span should contain inner span")
	}
	if s.Contains(Span{Start: 5, End: 15}) {
		t.Error("Span should not contain straddling span")
	}
	if !s.ContainsOffset(10) {
		t.Error("Start offset is inside")
	}
	if s.ContainsOffset(20) {
		t.Error("End offset is outside (half-open)")
	}
	if !s.Overlaps(Span{Start: 15, End: 25}) {
		t.Error("Spans sharing bytes should overlap")
	}
	if s.Overlaps(Span{Start: 20, End: 30}) {
		t.Error("Adjacent spans should not overlap")
	}
}

func TestPositionFor(t *testing.T) {
	doc := NewDocument("T.cs", []byte("line one\nline two\nline three"))

	tests := []struct {
		offset int
		want   Position
	}{
		{0, Position{Line: 1, Column: 1}},
		{4, Position{Line: 1, Column: 5}},
		{8, Position{Line: 1, Column: 9}}, // the newline itself
		{9, Position{Line: 2, Column: 1}},
		{17, Position{Line: 2, Column: 9}},
		{18, Position{Line: 3, Column: 1}},
		{28, Position{Line: 3, Column: 11}}, // end of content
	}

	for _, tt := range tests {
		got := doc.PositionFor(tt.offset)
		if got != tt.want {
			t.Errorf("PositionFor(%d) = %+v, want %+v", tt.offset, got, tt.want)
		}
	}
}

func TestPositionForClamping(t *testing.T) {
	doc := NewDocument("T.cs", []byte("abc"))

	if got := doc.PositionFor(-5); got != (Position{Line: 1, Column: 1}) {
		t.Errorf("Negative offset should clamp to start, got %+v", got)
	}
	if got := doc.PositionFor(100); got != (Position{Line: 1, Column: 4}) {
		t.Errorf("Overlong offset should clamp to end, got %+v", got)
	}
}

func TestOffsetFor(t *testing.T) {
	doc := NewDocument("T.cs", []byte("line one\nline two\n"))

	tests := []struct {
		line, column int
		want         int
	}{
		{1, 1, 0},
		{1, 5, 4},
		{2, 1, 9},
		{2, 9, 17},
		{2, 50, 17}, // clamped to line end
		{99, 1, 18}, // clamped to document end
	}

	for _, tt := range tests {
		got := doc.OffsetFor(tt.line, tt.column)
		if got != tt.want {
			t.Errorf("OffsetFor(%d, %d) = %d, want %d", tt.line, tt.column, got, tt.want)
		}
	}
}

func TestOffsetPositionRoundTrip(t *testing.T) {
	content := "public class A\n{\n    int x;\n}\n"
	doc := NewDocument("A.cs", []byte(content))

	for offset := 0; offset < len(content); offset++ {
		pos := doc.PositionFor(offset)
		back := doc.OffsetFor(pos.Line, pos.Column)
		if back != offset {
			t.Fatalf("Round trip failed at %d: pos %+v, back %d", offset, pos, back)
		}
	}
}

func TestSlice(t *testing.T) {
	doc := NewDocument("T.cs", []byte("hello world"))

	if got := string(doc.Slice(Span{Start: 0, End: 5})); got != "hello" {
		t.Errorf("Slice = %q, want hello", got)
	}
	if got := string(doc.Slice(Span{Start: 6, End: 100})); got != "world" {
		t.Errorf("Out-of-range end should clamp, got %q", got)
	}
	if got := doc.Slice(Span{Start: 8, End: 3}); got != nil {
		t.Errorf("Inverted span should return nil, got %q", got)
	}
}

func TestLineSpan(t *testing.T) {
	doc := NewDocument("T.cs", []byte("one\ntwo\nthree"))

	if got := string(doc.Slice(doc.LineSpan(1))); got != "one" {
		t.Errorf("Line 1 = %q", got)
	}
	if got := string(doc.Slice(doc.LineSpan(2))); got != "two" {
		t.Errorf("Line 2 = %q", got)
	}
	if got := string(doc.Slice(doc.LineSpan(3))); got != "three" {
		t.Errorf("Line 3 = %q", got)
	}
	if got := doc.LineSpan(4); got != (Span{}) {
		t.Errorf("Out-of-range line should be empty, got %v", got)
	}
}

func TestLineCount(t *testing.T) {
	tests := []struct {
		content string
		want    int
	}{
		{"", 1},
		{"one line", 1},
		{"one\ntwo", 2},
		{"trailing\n", 2},
	}

	for _, tt := range tests {
		doc := NewDocument("T.cs", []byte(tt.content))
		if got := doc.LineCount(); got != tt.want {
			t.Errorf("LineCount(%q) = %d, want %d", strings.ReplaceAll(tt.content, "\n", "\\n"), got, tt.want)
		}
	}
}
