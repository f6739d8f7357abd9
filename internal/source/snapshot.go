package source

import (
	"sort"
)

// Snapshot is an immutable point-in-time view of the workspace. Deriving
// a new snapshot shares the untouched documents with its parent, so the
// cost of an edit is proportional to the number of changed files.
type Snapshot struct {
	version int
	docs    map[string]*Document
	paths   []string
}

// NewSnapshot builds the first snapshot (version 1) from a document set.
func NewSnapshot(docs []*Document) *Snapshot {
	m := make(map[string]*Document, len(docs))
	for _, d := range docs {
		m[d.Path] = d
	}
	return &Snapshot{
		version: 1,
		docs:    m,
		paths:   sortedPaths(m),
	}
}

func sortedPaths(docs map[string]*Document) []string {
	paths := make([]string, 0, len(docs))
	for p := range docs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Version returns the snapshot's monotonically increasing version.
func (s *Snapshot) Version() int {
	return s.version
}

// Len returns the number of documents.
func (s *Snapshot) Len() int {
	return len(s.docs)
}

// Document returns the document at the canonical path, or nil when the
// snapshot does not contain it.
func (s *Snapshot) Document(path string) *Document {
	return s.docs[path]
}

// Paths returns all document paths in sorted order. Callers must not
// mutate the returned slice.
func (s *Snapshot) Paths() []string {
	return s.paths
}

// WithDocument derives a snapshot with the document added or replaced.
func (s *Snapshot) WithDocument(doc *Document) *Snapshot {
	return s.derive([]*Document{doc}, nil)
}

// WithoutDocument derives a snapshot with the document removed. Removing
// an absent path returns an equivalent snapshot at the next version.
func (s *Snapshot) WithoutDocument(path string) *Snapshot {
	return s.derive(nil, []string{path})
}

// Derive builds the successor snapshot in one step: upserts documents
// and removes paths. The receiver is left untouched.
func (s *Snapshot) Derive(upserts []*Document, removals []string) *Snapshot {
	return s.derive(upserts, removals)
}

func (s *Snapshot) derive(upserts []*Document, removals []string) *Snapshot {
	m := make(map[string]*Document, len(s.docs)+len(upserts))
	for p, d := range s.docs {
		m[p] = d
	}
	for _, d := range upserts {
		m[d.Path] = d
	}
	for _, p := range removals {
		delete(m, p)
	}
	return &Snapshot{
		version: s.version + 1,
		docs:    m,
		paths:   sortedPaths(m),
	}
}
