package engine

import (
	"context"
	"fmt"
	"strings"

	recasterr "recast/internal/errors"
	"recast/internal/semantic"
	"recast/internal/source"
)

// Candidate describes one declaration that matched an ambiguous
// selector. The list rides SYMBOL_AMBIGUOUS errors so callers can pick
// a declaration by path or line.
type Candidate struct {
	Qualified string `json:"qualified"`
	Kind      string `json:"kind"`
	Path      string `json:"path"`
	Line      int    `json:"line"`
}

// resolveOne maps a selector to exactly one declaration. Zero matches
// fail with SYMBOL_NOT_FOUND; multiple matches fail with
// SYMBOL_AMBIGUOUS and the candidate locations, since picking one
// silently could rewrite the wrong declaration.
func resolveOne(m *semantic.Model, sel semantic.Selector) (*semantic.Symbol, error) {
	sel.Name = strings.TrimSpace(sel.Name)
	if sel.Name == "" {
		return nil, recasterr.New(recasterr.ParamInvalid, "a symbol name is required")
	}

	matches := m.FindDeclarations(sel)
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, recasterr.New(recasterr.SymbolNotFound,
			fmt.Sprintf("no declaration named %q in the workspace", sel.Name))
	}

	candidates := make([]Candidate, len(matches))
	drills := make([]recasterr.Drilldown, len(matches))
	for i, sym := range matches {
		candidates[i] = Candidate{
			Qualified: sym.QualifiedName(),
			Kind:      string(sym.Kind),
			Path:      sym.Path,
			Line:      sym.Line,
		}
		drills[i] = recasterr.Drilldown{
			Label: fmt.Sprintf("%s at %s:%d", sym.QualifiedName(), sym.Path, sym.Line),
			Query: fmt.Sprintf("symbol %s --path=%s --line=%d", sel.Name, sym.Path, sym.Line),
		}
	}
	return nil, recasterr.New(recasterr.SymbolAmbiguous,
		fmt.Sprintf("%d declarations named %q; narrow the selection with a path or line", len(matches), sel.Name)).
		WithDetails(map[string]interface{}{"candidates": candidates}).
		WithDrilldowns(drills)
}

// findReferences runs the reference search and enforces the configured
// reference ceiling for transformations. A set above the limit refuses
// rather than rewriting an unreviewably large change.
func (e *Engine) findReferences(ctx context.Context, m *semantic.Model, sym *semantic.Symbol) (*semantic.ReferenceSet, error) {
	refs, err := m.FindReferences(ctx, sym)
	if err != nil {
		return nil, err
	}
	if max := e.cfg.Transforms.MaxReferences; max > 0 && refs.Total() > max {
		return nil, recasterr.New(recasterr.UnsafeTransform,
			fmt.Sprintf("%s has %d references, above the configured limit of %d",
				sym.QualifiedName(), refs.Total(), max)).
			WithDetails(map[string]interface{}{
				"reason":     "reference-limit",
				"references": refs.Total(),
				"limit":      max,
			})
	}
	return refs, nil
}

func snapOf(m *semantic.Model) *source.Snapshot {
	if m == nil {
		return nil
	}
	return m.Snapshot()
}

func errNotLoaded() error {
	return recasterr.New(recasterr.InternalError, "workspace not loaded")
}
