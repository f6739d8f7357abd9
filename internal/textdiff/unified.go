package textdiff

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	godiff "github.com/sourcegraph/go-diff/diff"
)

const contextLines = 3

// FileChange is one document's before and after content. Old nil means
// the file is created; New nil means it is deleted.
type FileChange struct {
	Path string
	Old  []byte
	New  []byte
}

// Unified renders a single file change as a unified diff with git-style
// a/ b/ headers. Unchanged content renders to "".
func Unified(change FileChange) (string, error) {
	if string(change.Old) == string(change.New) {
		return "", nil
	}

	from := "a/" + change.Path
	to := "b/" + change.Path
	if change.Old == nil {
		from = "/dev/null"
	}
	if change.New == nil {
		to = "/dev/null"
	}

	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(change.Old)),
		B:        difflib.SplitLines(string(change.New)),
		FromFile: from,
		ToFile:   to,
		Context:  contextLines,
	})
	if err != nil {
		return "", fmt.Errorf("diff %s: %w", change.Path, err)
	}
	return text, nil
}

// UnifiedAll renders the changes sorted by path and concatenated into
// one multi-file diff.
func UnifiedAll(changes []FileChange) (string, error) {
	ordered := make([]FileChange, len(changes))
	copy(ordered, changes)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Path < ordered[j].Path })

	var b strings.Builder
	for _, c := range ordered {
		text, err := Unified(c)
		if err != nil {
			return "", err
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

// FileSummary condenses one file's part of a diff for display.
type FileSummary struct {
	Path    string `json:"path"`
	Created bool   `json:"created,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
}

// Summarize parses a unified diff and reports per-file line counts.
func Summarize(diffText string) ([]FileSummary, error) {
	if strings.TrimSpace(diffText) == "" {
		return nil, nil
	}
	fileDiffs, err := godiff.ParseMultiFileDiff([]byte(diffText))
	if err != nil {
		return nil, fmt.Errorf("failed to parse diff: %w", err)
	}

	out := make([]FileSummary, 0, len(fileDiffs))
	for _, fd := range fileDiffs {
		s := FileSummary{Path: cleanPath(fd.NewName)}
		if fd.OrigName == "/dev/null" || fd.OrigName == "" {
			s.Created = true
		}
		if fd.NewName == "/dev/null" || fd.NewName == "" {
			s.Deleted = true
			s.Path = cleanPath(fd.OrigName)
		}
		for _, hunk := range fd.Hunks {
			added, removed := countHunkLines(hunk)
			s.Added += added
			s.Removed += removed
		}
		out = append(out, s)
	}
	return out, nil
}

func countHunkLines(hunk *godiff.Hunk) (added, removed int) {
	for _, line := range strings.Split(string(hunk.Body), "\n") {
		if len(line) == 0 {
			continue
		}
		switch line[0] {
		case '+':
			added++
		case '-':
			removed++
		}
	}
	return added, removed
}

// cleanPath strips the a/ or b/ prefix from a diff header path.
func cleanPath(path string) string {
	if path == "" || path == "/dev/null" {
		return ""
	}
	if strings.HasPrefix(path, "a/") || strings.HasPrefix(path, "b/") {
		return path[2:]
	}
	return path
}
