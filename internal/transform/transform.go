// Package transform implements the structural edits the engine offers:
// rename, inline, encapsulate, signature change, type moves, stub
// generation, using-directive maintenance, and formatting. Every
// transform computes an outcome against an immutable snapshot; nothing
// here touches storage.
package transform

import (
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"

	recasterr "recast/internal/errors"
	"recast/internal/semantic"
	"recast/internal/source"
	"recast/internal/syntax"
)

const indentUnit = "    "

// unsafe builds an UNSAFE_TRANSFORM error whose details name the
// machine-readable reason.
func unsafe(reason, message string) *recasterr.RecastError {
	return recasterr.New(recasterr.UnsafeTransform, message).
		WithDetails(map[string]interface{}{"reason": reason})
}

// declarationNode locates the syntax node of a symbol's declaration in
// its document tree.
func declarationNode(tree *syntax.Tree, sym *semantic.Symbol, types ...string) *sitter.Node {
	n := syntax.NodeAt(tree.Root(), sym.NameSpan.Start)
	if n == nil {
		return nil
	}
	return syntax.Ancestor(n, types...)
}

// lineExpandedSpan widens a span to cover full lines when nothing but
// whitespace surrounds it on its first and last line. Removing the
// widened span removes the lines instead of leaving them blank.
func lineExpandedSpan(src []byte, span source.Span) source.Span {
	start := span.Start
	for start > 0 && src[start-1] != '\n' {
		if src[start-1] != ' ' && src[start-1] != '\t' {
			return span
		}
		start--
	}

	end := span.End
	for end < len(src) && src[end] != '\n' {
		if src[end] != ' ' && src[end] != '\t' {
			return span
		}
		end++
	}
	if end < len(src) {
		end++ // include the newline
	}
	return source.Span{Start: start, End: end}
}

// indentAt returns the leading whitespace of the line containing the
// offset.
func indentAt(src []byte, offset int) string {
	start := offset
	for start > 0 && src[start-1] != '\n' {
		start--
	}
	end := start
	for end < len(src) && (src[end] == ' ' || src[end] == '\t') {
		end++
	}
	return string(src[start:end])
}

// capitalize upper-cases the first rune.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// lowerFirst lower-cases the first rune.
func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// reindent strips the common leading indentation of every non-blank
// line and prefixes the given indent instead.
func reindent(text, indent string) string {
	lines := strings.Split(text, "\n")

	common := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := 0
		for n < len(line) && (line[n] == ' ' || line[n] == '\t') {
			n++
		}
		if common < 0 || n < common {
			common = n
		}
	}
	if common < 0 {
		common = 0
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lines[i] = ""
			continue
		}
		lines[i] = indent + line[common:]
	}
	return strings.Join(lines, "\n")
}
