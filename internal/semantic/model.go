package semantic

import (
	"context"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	recasterr "recast/internal/errors"
	"recast/internal/logging"
	"recast/internal/source"
	"recast/internal/syntax"
)

const (
	symbolCacheSize = 512
	treeCacheSize   = 128
)

// Analyzer builds semantic models from snapshots. Per-document
// extraction depends only on document content, so results are cached by
// content hash and survive snapshot version changes that leave a
// document untouched.
type Analyzer struct {
	symbolCache *lru.Cache[string, *DocumentSymbols]
	treeCache   *lru.Cache[string, *syntax.Tree]
	parallel    int
	logger      *logging.Logger
}

// NewAnalyzer creates an analyzer. parallel bounds how many documents
// are parsed concurrently during Analyze.
func NewAnalyzer(parallel int, logger *logging.Logger) (*Analyzer, error) {
	if parallel < 1 {
		parallel = 1
	}
	if logger == nil {
		logger = logging.Nop()
	}
	symbols, err := lru.New[string, *DocumentSymbols](symbolCacheSize)
	if err != nil {
		return nil, err
	}
	trees, err := lru.New[string, *syntax.Tree](treeCacheSize)
	if err != nil {
		return nil, err
	}
	return &Analyzer{
		symbolCache: symbols,
		treeCache:   trees,
		parallel:    parallel,
		logger:      logger,
	}, nil
}

// Tree returns the parsed tree for a document, caching by content hash.
func (a *Analyzer) Tree(ctx context.Context, doc *source.Document) (*syntax.Tree, error) {
	if cached, ok := a.treeCache.Get(doc.Hash); ok {
		return cached, nil
	}
	parser := syntax.NewParser()
	tree, err := parser.ParseDocument(ctx, doc)
	if err != nil {
		return nil, err
	}
	a.treeCache.Add(doc.Hash, tree)
	return tree, nil
}

// DocumentSymbols returns the extracted declarations for a document,
// caching by content hash.
func (a *Analyzer) DocumentSymbols(ctx context.Context, doc *source.Document) (*DocumentSymbols, error) {
	if cached, ok := a.symbolCache.Get(doc.Hash); ok {
		// the cache key is content only, the path may differ
		if cached.Path == doc.Path {
			return cached, nil
		}
	}
	tree, err := a.Tree(ctx, doc)
	if err != nil {
		return nil, err
	}
	ds := ExtractSymbols(tree, doc)
	a.symbolCache.Add(doc.Hash, ds)
	return ds, nil
}

// Analyze builds the semantic model for a snapshot. Documents with
// syntax errors are kept in the model and flagged rather than dropped.
func (a *Analyzer) Analyze(ctx context.Context, snap *source.Snapshot) (*Model, error) {
	paths := snap.Paths()
	results := make([]*DocumentSymbols, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallel)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			ds, err := a.DocumentSymbols(gctx, snap.Document(p))
			if err != nil {
				return err
			}
			results[i] = ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, recasterr.Wrap(recasterr.AnalysisFailed, "snapshot analysis failed", err)
	}

	m := &Model{
		snapshot:  snap,
		analyzer:  a,
		docs:      make(map[string]*DocumentSymbols, len(results)),
		types:     make(map[string][]*TypeDecl),
		qualified: make(map[string]*TypeDecl),
		members:   make(map[string][]*Symbol),
	}
	for _, ds := range results {
		m.docs[ds.Path] = ds
		if ds.HasErrors {
			m.parseErrors = append(m.parseErrors, ds.Path)
		}
		for _, t := range ds.Types {
			m.types[t.Symbol.Name] = append(m.types[t.Symbol.Name], t)
			m.qualified[t.QualifiedName()] = t
			for _, member := range t.Members {
				m.members[member.Name] = append(m.members[member.Name], member)
			}
		}
	}
	sort.Strings(m.parseErrors)

	a.logger.Debug("model built", map[string]interface{}{
		"documents":   len(results),
		"types":       len(m.qualified),
		"parseErrors": len(m.parseErrors),
	})
	return m, nil
}

// Model is the declaration index of one snapshot. It is immutable once
// built; derive a new snapshot and re-analyze instead of mutating.
type Model struct {
	snapshot *source.Snapshot
	analyzer *Analyzer

	docs      map[string]*DocumentSymbols
	types     map[string][]*TypeDecl // simple name
	qualified map[string]*TypeDecl   // namespace-qualified name
	members   map[string][]*Symbol   // simple name

	parseErrors []string
}

// Snapshot returns the snapshot the model was built from.
func (m *Model) Snapshot() *source.Snapshot { return m.snapshot }

// Document returns the extracted declarations of one document.
func (m *Model) Document(path string) *DocumentSymbols { return m.docs[path] }

// Tree returns the parsed tree of a snapshot document.
func (m *Model) Tree(ctx context.Context, path string) (*syntax.Tree, error) {
	doc := m.snapshot.Document(path)
	if doc == nil {
		return nil, recasterr.New(recasterr.PathInvalid, "document not in snapshot: "+path)
	}
	return m.analyzer.Tree(ctx, doc)
}

// ParseErrors returns the paths of documents with syntax errors.
func (m *Model) ParseErrors() []string { return m.parseErrors }

// Stats summarizes the model for status reporting.
type Stats struct {
	Documents   int `json:"documents"`
	Types       int `json:"types"`
	Members     int `json:"members"`
	ParseErrors int `json:"parseErrors"`
}

// Stats returns model-wide declaration counts.
func (m *Model) Stats() Stats {
	members := 0
	for _, t := range m.qualified {
		members += len(t.Members)
	}
	return Stats{
		Documents:   len(m.docs),
		Types:       len(m.qualified),
		Members:     members,
		ParseErrors: len(m.parseErrors),
	}
}

// Types returns every type declaration sorted by qualified name.
func (m *Model) Types() []*TypeDecl {
	out := make([]*TypeDecl, 0, len(m.qualified))
	for _, t := range m.qualified {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].QualifiedName() < out[j].QualifiedName()
	})
	return out
}

// TypeByQualified looks up a type by its namespace-qualified name.
func (m *Model) TypeByQualified(name string) *TypeDecl { return m.qualified[name] }

// DeclaringType returns the type declaration that contains the member
// symbol, or nil for top-level symbols.
func (m *Model) DeclaringType(sym *Symbol) *TypeDecl {
	if !sym.Kind.IsMember() {
		return nil
	}
	return m.qualified[sym.QualifiedContainer()]
}

// ResolveTypeName resolves a type name as seen from a document,
// following the namespace chain outward and then the document's using
// directives. Returns the declaration and how many candidates matched;
// nil with count > 1 means the name is ambiguous from that document.
func (m *Model) ResolveTypeName(name string, from *DocumentSymbols) (*TypeDecl, int) {
	if name == "" {
		return nil, 0
	}
	if t, ok := m.qualified[name]; ok {
		return t, 1
	}

	var candidates []*TypeDecl
	seen := make(map[string]bool)
	add := func(t *TypeDecl) {
		if t != nil && !seen[t.QualifiedName()] {
			seen[t.QualifiedName()] = true
			candidates = append(candidates, t)
		}
	}

	if from != nil {
		// walk the enclosing namespace chain outward
		ns := from.Namespace()
		for ns != "" {
			add(m.qualified[ns+"."+name])
			idx := strings.LastIndex(ns, ".")
			if idx < 0 {
				break
			}
			ns = ns[:idx]
		}
		for _, u := range from.Usings {
			if u.TopLevel && u.Alias == "" && !u.IsStatic && u.Name != "" {
				add(m.qualified[u.Name+"."+name])
			}
		}
	}
	// global namespace
	add(m.qualified[name])

	if from == nil {
		// without a viewpoint, fall back to every type with that name
		for _, t := range m.types[name] {
			add(t)
		}
	}

	if len(candidates) == 1 {
		return candidates[0], 1
	}
	return nil, len(candidates)
}

// Selector identifies declarations by name, optionally narrowed by
// kind, declaring document, and line.
type Selector struct {
	Name string     `json:"name"`
	Kind SymbolKind `json:"kind,omitempty"`
	Path string     `json:"path,omitempty"`
	Line int        `json:"line,omitempty"`
}

// FindDeclarations returns every declaration matching the selector,
// sorted by path then line. Callers decide how to treat zero or
// multiple matches.
func (m *Model) FindDeclarations(sel Selector) []*Symbol {
	name := strings.TrimSpace(sel.Name)
	if name == "" {
		return nil
	}

	simple := name
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		simple = name[idx+1:]
	}

	var out []*Symbol
	add := func(sym *Symbol) {
		if !qualifiedMatches(sym.QualifiedName(), name) {
			return
		}
		if sel.Kind != "" && sym.Kind != sel.Kind {
			return
		}
		if sel.Path != "" && sym.Path != sel.Path {
			return
		}
		if sel.Line > 0 && !m.symbolCoversLine(sym, sel.Line) {
			return
		}
		out = append(out, sym)
	}

	for _, t := range m.types[simple] {
		add(t.Symbol)
	}
	for _, member := range m.members[simple] {
		add(member)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].QualifiedName() < out[j].QualifiedName()
	})
	return out
}

// qualifiedMatches reports whether a dotted selector matches a
// qualified name on segment boundaries.
func qualifiedMatches(qualified, selector string) bool {
	if qualified == selector {
		return true
	}
	return strings.HasSuffix(qualified, "."+selector)
}

func (m *Model) symbolCoversLine(sym *Symbol, line int) bool {
	doc := m.snapshot.Document(sym.Path)
	if doc == nil {
		return sym.Line == line
	}
	start := doc.PositionFor(sym.Span.Start).Line
	end := doc.PositionFor(sym.Span.End).Line
	return line >= start && line <= end
}
