package operation

import (
	"bytes"
	"sort"
	"time"

	recasterr "recast/internal/errors"
	"recast/internal/semantic"
	"recast/internal/source"
	"recast/internal/textdiff"
)

// Outcome is what the Computing stage produces: every text change a
// transformation wants, expressed against the snapshot it was computed
// from. Nothing here touches storage.
type Outcome struct {
	Edits       map[string][]textdiff.Edit // path -> edits against that document
	Creates     map[string][]byte          // path -> full content of a new file
	Deletes     []string                   // paths removed from the workspace
	Symbol      *semantic.Symbol           // primary symbol affected
	RefsUpdated int
	Description string
}

// NewOutcome returns an empty outcome with initialized maps.
func NewOutcome() *Outcome {
	return &Outcome{
		Edits:   make(map[string][]textdiff.Edit),
		Creates: make(map[string][]byte),
	}
}

// AddEdit appends an edit for the document at path.
func (o *Outcome) AddEdit(path string, e textdiff.Edit) {
	if o.Edits == nil {
		o.Edits = make(map[string][]textdiff.Edit)
	}
	o.Edits[path] = append(o.Edits[path], e)
}

// IsEmpty returns true when the outcome changes nothing.
func (o *Outcome) IsEmpty() bool {
	return len(o.Edits) == 0 && len(o.Creates) == 0 && len(o.Deletes) == 0
}

// ChangeKind classifies a file-level change.
type ChangeKind string

const (
	ChangeCreate ChangeKind = "create"
	ChangeModify ChangeKind = "modify"
	ChangeDelete ChangeKind = "delete"
)

// Change is one file-level mutation, carrying the full before and after
// bytes.
type Change struct {
	Kind ChangeKind
	textdiff.FileChange
}

// Changes materializes the outcome against the snapshot it was computed
// from, sorted by path. Preview rendering and commit writes both consume
// this list, so they can never disagree about the resulting bytes.
// Documents whose edits produce identical content are dropped.
func (o *Outcome) Changes(snap *source.Snapshot) ([]Change, error) {
	changes := make([]Change, 0, len(o.Edits)+len(o.Creates)+len(o.Deletes))

	for path, edits := range o.Edits {
		doc := snap.Document(path)
		if doc == nil {
			return nil, recasterr.New(recasterr.PathInvalid, "edited document not in snapshot: "+path)
		}
		updated, err := textdiff.Apply(doc.Content, edits)
		if err != nil {
			return nil, recasterr.Wrap(recasterr.InternalError, "applying edits to "+path, err)
		}
		if bytes.Equal(updated, doc.Content) {
			continue
		}
		changes = append(changes, Change{
			Kind:       ChangeModify,
			FileChange: textdiff.FileChange{Path: path, Old: doc.Content, New: updated},
		})
	}

	for path, content := range o.Creates {
		if snap.Document(path) != nil {
			return nil, recasterr.New(recasterr.PathInvalid, "create target already in snapshot: "+path)
		}
		changes = append(changes, Change{
			Kind:       ChangeCreate,
			FileChange: textdiff.FileChange{Path: path, New: content},
		})
	}

	for _, path := range o.Deletes {
		if _, edited := o.Edits[path]; edited {
			return nil, recasterr.New(recasterr.InternalError, "document both edited and deleted: "+path)
		}
		doc := snap.Document(path)
		if doc == nil {
			return nil, recasterr.New(recasterr.PathInvalid, "delete target not in snapshot: "+path)
		}
		changes = append(changes, Change{
			Kind:       ChangeDelete,
			FileChange: textdiff.FileChange{Path: path, Old: doc.Content},
		})
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}

// Derived builds the successor snapshot the changes describe.
func Derived(snap *source.Snapshot, changes []Change) *source.Snapshot {
	var upserts []*source.Document
	var removals []string
	for _, c := range changes {
		if c.Kind == ChangeDelete {
			removals = append(removals, c.Path)
			continue
		}
		upserts = append(upserts, source.NewDocument(c.Path, c.New))
	}
	return snap.Derive(upserts, removals)
}

// PendingChange is the preview rendering of one file-level change.
type PendingChange struct {
	Kind        ChangeKind `json:"kind"`
	Path        string     `json:"path"`
	Description string     `json:"description,omitempty"`
	Diff        string     `json:"diff"`
}

// RenderPending renders changes as unified diffs for preview output.
func RenderPending(changes []Change, description string) ([]PendingChange, error) {
	out := make([]PendingChange, 0, len(changes))
	for _, c := range changes {
		diff, err := textdiff.Unified(c.FileChange)
		if err != nil {
			return nil, recasterr.Wrap(recasterr.InternalError, "rendering diff for "+c.Path, err)
		}
		out = append(out, PendingChange{
			Kind:        c.Kind,
			Path:        c.Path,
			Description: description,
			Diff:        diff,
		})
	}
	return out, nil
}

// SymbolDescriptor names the primary symbol an operation affected.
type SymbolDescriptor struct {
	Name      string `json:"name"`
	Qualified string `json:"qualified"`
	Kind      string `json:"kind"`
}

// DescribeSymbol builds a descriptor from a resolved symbol.
func DescribeSymbol(sym *semantic.Symbol) *SymbolDescriptor {
	if sym == nil {
		return nil
	}
	return &SymbolDescriptor{
		Name:      sym.Name,
		Qualified: sym.QualifiedName(),
		Kind:      string(sym.Kind),
	}
}

// Summary describes what a committed operation changed on disk.
type Summary struct {
	FilesModified []string          `json:"filesModified,omitempty"`
	FilesCreated  []string          `json:"filesCreated,omitempty"`
	FilesDeleted  []string          `json:"filesDeleted,omitempty"`
	RefsUpdated   int               `json:"referencesUpdated"`
	Symbol        *SymbolDescriptor `json:"symbol,omitempty"`
}

// Result is the terminal outcome of one pipeline run. Exactly one of
// Summary, Changes, or Data is populated on success; Err carries the
// coded error on failure.
type Result struct {
	OK        bool            `json:"ok"`
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Preview   bool            `json:"preview,omitempty"`
	State     State           `json:"state"`
	ElapsedMS int64           `json:"elapsedMs"`
	Summary   *Summary        `json:"summary,omitempty"`
	Changes   []PendingChange `json:"changes,omitempty"`
	Data      interface{}     `json:"data,omitempty"`

	Elapsed time.Duration `json:"-"`
	Err     error         `json:"-"`
}
