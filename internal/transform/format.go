package transform

import (
	"context"
	"fmt"
	"strings"

	"recast/internal/operation"
	"recast/internal/semantic"
	"recast/internal/source"
	"recast/internal/textdiff"
)

// Style carries the formatter's tunable fixed points. The zero value
// formats with four-space indentation and allows runs of up to two
// blank lines.
type Style struct {
	IndentWidth   int
	MaxBlankLines int
}

func (s Style) normalized() Style {
	if s.IndentWidth < 1 {
		s.IndentWidth = 4
	}
	if s.MaxBlankLines < 1 {
		s.MaxBlankLines = 2
	}
	return s
}

// Format normalizes a document: indentation recomputed from brace
// nesting, trailing whitespace trimmed, overlong blank-line runs
// collapsed to one, exactly one trailing newline. Output is
// deterministic and formatting twice is a no-op.
func Format(ctx context.Context, m *semantic.Model, path string, style Style) (*operation.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, doc, err := documentFor(m, path)
	if err != nil {
		return nil, err
	}
	out := operation.NewOutcome()
	out.Description = fmt.Sprintf("format %s", path)
	formatted := formatSource(doc.Content, style.normalized())
	if formatted == string(doc.Content) {
		return out, nil
	}
	out.AddEdit(path, textdiff.Replace(source.Span{Start: 0, End: len(doc.Content)}, formatted))
	return out, nil
}

// lineScanner tracks the lexical state that survives a line break:
// brace and bracket depth, plus whether the line ended inside a block
// comment or a verbatim string literal.
type lineScanner struct {
	braces     int
	parens     int
	inComment  bool
	inVerbatim bool
}

// formatSource rewrites the whole document. Lines that begin inside a
// verbatim string keep their exact bytes; lines that begin inside a
// block comment keep their own indentation.
func formatSource(src []byte, style Style) string {
	if len(src) == 0 {
		return ""
	}
	unit := strings.Repeat(" ", style.IndentWidth)
	lines := strings.Split(string(src), "\n")
	var sc lineScanner
	outLines := make([]string, 0, len(lines))
	blankRun := 0
	flushBlanks := func() {
		if blankRun > style.MaxBlankLines {
			blankRun = 1
		}
		for i := 0; i < blankRun; i++ {
			outLines = append(outLines, "")
		}
		blankRun = 0
	}
	for _, line := range lines {
		startVerbatim := sc.inVerbatim
		startComment := sc.inComment
		code := sc.scan(line)
		if startVerbatim {
			flushBlanks()
			outLines = append(outLines, line)
			continue
		}
		trimmed := strings.TrimRight(line, " \t")
		if startComment {
			flushBlanks()
			outLines = append(outLines, trimmed)
			continue
		}
		body := strings.TrimLeft(trimmed, " \t")
		if body == "" {
			blankRun++
			continue
		}
		flushBlanks()
		outLines = append(outLines, sc.indentFor(body, code, unit)+body)
	}
	// drop trailing blanks, keep a single final newline
	for len(outLines) > 0 && outLines[len(outLines)-1] == "" {
		outLines = outLines[:len(outLines)-1]
	}
	if len(outLines) == 0 {
		return ""
	}
	return strings.Join(outLines, "\n") + "\n"
}

// indentFor computes a line's indentation from the depth recorded
// before the line was scanned. A leading closer sits one level out;
// an open argument list indents its continuation one extra level.
func (sc *lineScanner) indentFor(body string, before lineScanner, unit string) string {
	depth := before.braces
	switch body[0] {
	case '}':
		if depth > 0 {
			depth--
		}
	case ')', ']':
	default:
		if before.parens > 0 {
			depth++
		}
	}
	return strings.Repeat(unit, depth)
}

// scan advances the lexical state across one line and returns the
// state as it was at the start of the line.
func (sc *lineScanner) scan(line string) lineScanner {
	before := *sc
	i := 0
	n := len(line)
	for i < n {
		if sc.inComment {
			if line[i] == '*' && i+1 < n && line[i+1] == '/' {
				sc.inComment = false
				i += 2
				continue
			}
			i++
			continue
		}
		if sc.inVerbatim {
			if line[i] == '"' {
				if i+1 < n && line[i+1] == '"' {
					i += 2
					continue
				}
				sc.inVerbatim = false
			}
			i++
			continue
		}
		c := line[i]
		switch {
		case c == '/' && i+1 < n && line[i+1] == '/':
			return before // rest of line is a comment
		case c == '/' && i+1 < n && line[i+1] == '*':
			sc.inComment = true
			i += 2
		case c == '@' && i+1 < n && line[i+1] == '"':
			sc.inVerbatim = true
			i += 2
		case c == '$' && i+2 < n && line[i+1] == '@' && line[i+2] == '"',
			c == '@' && i+2 < n && line[i+1] == '$' && line[i+2] == '"':
			sc.inVerbatim = true
			i += 3
		case c == '"':
			i = skipString(line, i+1)
		case c == '\'':
			i = skipChar(line, i+1)
		case c == '{':
			sc.braces++
			i++
		case c == '}':
			if sc.braces > 0 {
				sc.braces--
			}
			i++
		case c == '(', c == '[':
			sc.parens++
			i++
		case c == ')', c == ']':
			if sc.parens > 0 {
				sc.parens--
			}
			i++
		default:
			i++
		}
	}
	return before
}

// skipString consumes a regular string literal body starting after the
// opening quote. An unterminated literal ends at the line break.
func skipString(line string, i int) int {
	n := len(line)
	for i < n {
		switch line[i] {
		case '\\':
			i += 2
		case '"':
			return i + 1
		default:
			i++
		}
	}
	return n
}

func skipChar(line string, i int) int {
	n := len(line)
	for i < n {
		switch line[i] {
		case '\\':
			i += 2
		case '\'':
			return i + 1
		default:
			i++
		}
	}
	return n
}
