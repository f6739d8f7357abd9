// Package scipexport serializes a resolved workspace as a SCIP index
// so downstream tooling can consume the symbol table and occurrences
// without re-analyzing the sources.
package scipexport

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	scippb "github.com/sourcegraph/scip/bindings/go/scip"
	"google.golang.org/protobuf/proto"

	recasterr "recast/internal/errors"
	"recast/internal/semantic"
	"recast/internal/source"
	"recast/internal/version"
)

// Options control index metadata.
type Options struct {
	// ProjectRoot is the absolute workspace root, recorded as a
	// file:// URI in the index metadata.
	ProjectRoot string

	// ProjectName is the package name used inside symbol identifiers.
	ProjectName string
}

// Summary describes a produced index.
type Summary struct {
	Documents   int    `json:"documents"`
	Symbols     int    `json:"symbols"`
	Occurrences int    `json:"occurrences"`
	Bytes       int    `json:"bytes"`
	Path        string `json:"path,omitempty"`
}

// Build assembles a SCIP index from the model: one document per source
// file, a symbol information entry per declaration, a definition
// occurrence per declaration and a reference occurrence per resolved
// reference.
func Build(ctx context.Context, m *semantic.Model, opts Options) (*scippb.Index, *Summary, error) {
	if opts.ProjectName == "" {
		opts.ProjectName = "workspace"
	}

	snap := m.Snapshot()
	acc := make(map[string]*docAcc)
	forPath := func(path string) *docAcc {
		if a, ok := acc[path]; ok {
			return a
		}
		a := &docAcc{}
		acc[path] = a
		return a
	}

	summary := &Summary{}
	for _, t := range m.Types() {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if err := exportSymbol(ctx, m, snap, t.Symbol, opts.ProjectName, forPath, summary); err != nil {
			return nil, nil, err
		}
		for _, member := range t.Members {
			if err := exportSymbol(ctx, m, snap, member, opts.ProjectName, forPath, summary); err != nil {
				return nil, nil, err
			}
		}
	}

	paths := make([]string, 0, len(acc))
	for p := range acc {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	index := &scippb.Index{
		Metadata: &scippb.Metadata{
			ToolInfo: &scippb.ToolInfo{
				Name:    "recast",
				Version: version.Version,
			},
			ProjectRoot:          "file://" + opts.ProjectRoot,
			TextDocumentEncoding: scippb.TextEncoding_UTF8,
		},
	}
	for _, p := range paths {
		a := acc[p]
		sortOccurrences(a.occurrences)
		index.Documents = append(index.Documents, &scippb.Document{
			Language:     "csharp",
			RelativePath: p,
			Occurrences:  a.occurrences,
			Symbols:      a.symbols,
		})
	}
	summary.Documents = len(index.Documents)
	return index, summary, nil
}

// Write builds the index, marshals it and writes it to outPath.
func Write(ctx context.Context, m *semantic.Model, opts Options, outPath string) (*Summary, error) {
	index, summary, err := Build(ctx, m, opts)
	if err != nil {
		return nil, err
	}
	data, err := proto.Marshal(index)
	if err != nil {
		return nil, recasterr.Wrap(recasterr.InternalError, "marshaling SCIP index", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return nil, recasterr.Wrap(recasterr.CommitFailed, "writing SCIP index", err)
	}
	summary.Bytes = len(data)
	summary.Path = outPath
	return summary, nil
}

func exportSymbol(
	ctx context.Context,
	m *semantic.Model,
	snap *source.Snapshot,
	sym *semantic.Symbol,
	project string,
	forPath func(string) *docAcc,
	summary *Summary,
) error {
	id := symbolID(project, sym)
	if id == "" {
		return nil
	}

	declDoc := snap.Document(sym.Path)
	if declDoc == nil {
		return nil
	}
	a := forPath(sym.Path)
	a.symbols = append(a.symbols, &scippb.SymbolInformation{
		Symbol:      id,
		DisplayName: sym.Name,
		Kind:        scipKind(sym.Kind),
		Documentation: []string{
			fmt.Sprintf("```csharp\n%s\n```", sym.Signature),
		},
	})
	summary.Symbols++

	a.occurrences = append(a.occurrences, &scippb.Occurrence{
		Range:       occurrenceRange(declDoc, sym.NameSpan),
		Symbol:      id,
		SymbolRoles: int32(scippb.SymbolRole_Definition),
	})
	summary.Occurrences++

	refs, err := m.FindReferences(ctx, sym)
	if err != nil {
		return err
	}
	for _, path := range refs.Paths() {
		doc := snap.Document(path)
		if doc == nil {
			continue
		}
		for _, ref := range refs.ByPath[path] {
			if ref.IsDeclaration {
				continue
			}
			forPath(path).occurrences = append(forPath(path).occurrences, &scippb.Occurrence{
				Range:  occurrenceRange(doc, ref.Span),
				Symbol: id,
			})
			summary.Occurrences++
		}
	}
	return nil
}

// docAcc accumulates per-document output while symbols are walked in
// declaration order.
type docAcc struct {
	occurrences []*scippb.Occurrence
	symbols     []*scippb.SymbolInformation
}

// symbolID renders the SCIP symbol grammar:
// scheme manager package version descriptors.
func symbolID(project string, sym *semantic.Symbol) string {
	desc := descriptor(sym)
	if desc == "" {
		return ""
	}
	return fmt.Sprintf("scip-csharp nuget %s 0.0.0 %s", project, desc)
}

func descriptor(sym *semantic.Symbol) string {
	var b strings.Builder
	if sym.Namespace != "" {
		for _, seg := range strings.Split(sym.Namespace, ".") {
			b.WriteString(seg + "/")
		}
	}
	if sym.Container != "" {
		for _, seg := range strings.Split(sym.Container, ".") {
			b.WriteString(seg + "#")
		}
	}
	switch {
	case sym.Kind.IsType():
		b.WriteString(sym.Name + "#")
	case sym.Kind == semantic.KindMethod || sym.Kind == semantic.KindConstructor:
		b.WriteString(sym.Name + "().")
	case sym.Kind == semantic.KindField || sym.Kind == semantic.KindProperty ||
		sym.Kind == semantic.KindEnumMember:
		b.WriteString(sym.Name + ".")
	default:
		return ""
	}
	return b.String()
}

func scipKind(k semantic.SymbolKind) scippb.SymbolInformation_Kind {
	switch k {
	case semantic.KindClass, semantic.KindRecord:
		return scippb.SymbolInformation_Class
	case semantic.KindStruct:
		return scippb.SymbolInformation_Struct
	case semantic.KindInterface:
		return scippb.SymbolInformation_Interface
	case semantic.KindEnum:
		return scippb.SymbolInformation_Enum
	case semantic.KindEnumMember:
		return scippb.SymbolInformation_EnumMember
	case semantic.KindMethod:
		return scippb.SymbolInformation_Method
	case semantic.KindConstructor:
		return scippb.SymbolInformation_Constructor
	case semantic.KindProperty:
		return scippb.SymbolInformation_Property
	case semantic.KindField:
		return scippb.SymbolInformation_Field
	case semantic.KindNamespace:
		return scippb.SymbolInformation_Namespace
	default:
		return scippb.SymbolInformation_UnspecifiedKind
	}
}

// occurrenceRange renders a same-line half-open range as SCIP's
// three-element zero-based form.
func occurrenceRange(doc *source.Document, span source.Span) []int32 {
	pos := doc.PositionFor(span.Start)
	line := int32(pos.Line - 1)
	start := int32(pos.Column - 1)
	end := start + int32(span.End-span.Start)
	return []int32{line, start, end}
}

func sortOccurrences(occs []*scippb.Occurrence) {
	sort.SliceStable(occs, func(a, b int) bool {
		ra, rb := occs[a].Range, occs[b].Range
		if ra[0] != rb[0] {
			return ra[0] < rb[0]
		}
		return ra[1] < rb[1]
	})
}
