package engine

import (
	"context"
	"path/filepath"
	"strings"

	recasterr "recast/internal/errors"
	"recast/internal/operation"
	"recast/internal/paths"
	"recast/internal/scipexport"
	"recast/internal/semantic"
)

// SymbolPayload is the symbol query result: the resolved declaration
// plus its trimmed declaration line.
type SymbolPayload struct {
	Symbol  *semantic.Symbol `json:"symbol"`
	Context string           `json:"context,omitempty"`
}

// Symbol resolves a selector to a single declaration.
func (e *Engine) Symbol(ctx context.Context, sel semantic.Selector) *operation.Result {
	op := operation.New(operation.KindSymbol, false)
	m := e.Model()

	var sym *semantic.Symbol
	return operation.NewPipeline(op, snapOf(m), e.logger).
		Validate(func(context.Context) error {
			if m == nil {
				return errNotLoaded()
			}
			if strings.TrimSpace(sel.Name) == "" {
				return recasterr.New(recasterr.ParamInvalid, "symbol requires a name")
			}
			return nil
		}).
		Resolve(func(context.Context) error {
			var err error
			sym, err = resolveOne(m, sel)
			return err
		}).
		Query(func(context.Context) (interface{}, error) {
			payload := &SymbolPayload{Symbol: sym}
			if doc := m.Snapshot().Document(sym.Path); doc != nil {
				payload.Context = strings.TrimSpace(string(doc.Slice(doc.LineSpan(sym.Line))))
			}
			return payload, nil
		}).
		Run(ctx)
}

// FileRefs lists one document's references.
type FileRefs struct {
	Path       string               `json:"path"`
	References []semantic.Reference `json:"references"`
}

// RefsPayload is the refs query result: the complete reference set
// grouped by document, with the internal/external partition and the
// binding statistics.
type RefsPayload struct {
	Symbol    *operation.SymbolDescriptor `json:"symbol"`
	Files     []FileRefs                  `json:"files"`
	Total     int                         `json:"total"`
	Shown     int                         `json:"shown"`
	Internal  int                         `json:"internal"`
	External  int                         `json:"external"`
	Exact     int                         `json:"exact"`
	Heuristic int                         `json:"heuristic"`
	Skipped   int                         `json:"skippedAmbiguous,omitempty"`
	Truncated bool                        `json:"truncated,omitempty"`
}

// Refs resolves a selector and returns every reference to it.
func (e *Engine) Refs(ctx context.Context, sel semantic.Selector) *operation.Result {
	op := operation.New(operation.KindRefs, false)
	m := e.Model()

	var sym *semantic.Symbol
	var refs *semantic.ReferenceSet
	return operation.NewPipeline(op, snapOf(m), e.logger).
		Validate(func(context.Context) error {
			if m == nil {
				return errNotLoaded()
			}
			if strings.TrimSpace(sel.Name) == "" {
				return recasterr.New(recasterr.ParamInvalid, "refs requires a name")
			}
			return nil
		}).
		Resolve(func(ctx context.Context) error {
			var err error
			sym, err = resolveOne(m, sel)
			if err != nil {
				return err
			}
			refs, err = m.FindReferences(ctx, sym)
			return err
		}).
		Query(func(context.Context) (interface{}, error) {
			internal, external := m.SplitByDeclaringType(refs)
			payload := &RefsPayload{
				Symbol:    operation.DescribeSymbol(sym),
				Total:     refs.Total(),
				Internal:  len(internal),
				External:  len(external),
				Exact:     refs.Exact,
				Heuristic: refs.Heuristic,
				Skipped:   refs.SkippedAmbiguous,
			}

			limit := e.cfg.Transforms.MaxReferences
			if limit <= 0 {
				limit = payload.Total
			}
			for _, path := range refs.Paths() {
				if payload.Shown >= limit {
					break
				}
				list := refs.ByPath[path]
				if payload.Shown+len(list) > limit {
					list = list[:limit-payload.Shown]
				}
				payload.Files = append(payload.Files, FileRefs{Path: path, References: list})
				payload.Shown += len(list)
			}
			payload.Truncated = payload.Shown < payload.Total
			return payload, nil
		}).
		Run(ctx)
}

// NamespaceIssue flags a document whose declared namespace disagrees
// with the manifest's expectation for its root.
type NamespaceIssue struct {
	Path     string `json:"path"`
	Declared string `json:"declared"`
	Expected string `json:"expected"`
}

// StatusPayload summarizes the loaded workspace.
type StatusPayload struct {
	Root            string           `json:"root"`
	SnapshotVersion int              `json:"snapshotVersion"`
	Stats           semantic.Stats   `json:"stats"`
	ParseErrors     []string         `json:"parseErrors,omitempty"`
	NamespaceIssues []NamespaceIssue `json:"namespaceIssues,omitempty"`
	JournalEntries  int              `json:"journalEntries,omitempty"`
}

// Status reports workspace health: snapshot shape, declaration counts,
// parse failures, and manifest namespace mismatches.
func (e *Engine) Status(ctx context.Context) *operation.Result {
	op := operation.New(operation.KindStatus, false)
	m := e.Model()

	return operation.NewPipeline(op, snapOf(m), e.logger).
		Validate(func(context.Context) error {
			if m == nil {
				return errNotLoaded()
			}
			return nil
		}).
		Query(func(ctx context.Context) (interface{}, error) {
			payload := &StatusPayload{
				Root:            e.root,
				SnapshotVersion: m.Snapshot().Version(),
				Stats:           m.Stats(),
				ParseErrors:     m.ParseErrors(),
				NamespaceIssues: e.namespaceIssues(m),
			}
			if e.journal != nil {
				if n, err := e.journal.Count(ctx); err == nil {
					payload.JournalEntries = n
				}
			}
			return payload, nil
		}).
		Run(ctx)
}

// namespaceIssues compares each document's declared namespace with the
// manifest expectation for its root.
func (e *Engine) namespaceIssues(m *semantic.Model) []NamespaceIssue {
	manifest := e.ws.Manifest
	if manifest == nil {
		return nil
	}
	var issues []NamespaceIssue
	for _, path := range m.Snapshot().Paths() {
		expected := manifest.ExpectedNamespace(path)
		if expected == "" {
			continue
		}
		ds := m.Document(path)
		if ds == nil {
			continue
		}
		declared := ds.Namespace()
		if declared == expected || strings.HasPrefix(declared, expected+".") {
			continue
		}
		issues = append(issues, NamespaceIssue{Path: path, Declared: declared, Expected: expected})
	}
	return issues
}

// Export serializes the current model as a SCIP index. With an empty
// outPath the configured index location is used.
func (e *Engine) Export(ctx context.Context, outPath string) *operation.Result {
	op := operation.New(operation.KindExport, false)
	m := e.Model()

	target := outPath
	if target == "" {
		target = paths.ExportPath(e.root, e.cfg.Export.IndexPath)
	}

	res := operation.NewPipeline(op, snapOf(m), e.logger).
		Validate(func(context.Context) error {
			if m == nil {
				return errNotLoaded()
			}
			return nil
		}).
		Query(func(ctx context.Context) (interface{}, error) {
			return scipexport.Write(ctx, m, scipexport.Options{
				ProjectRoot: e.root,
				ProjectName: filepath.Base(e.root),
			}, target)
		}).
		Run(ctx)

	e.record(target, res)
	return res
}
