package transform

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	recasterr "recast/internal/errors"
	"recast/internal/operation"
	"recast/internal/semantic"
	"recast/internal/source"
	"recast/internal/syntax"
	"recast/internal/textdiff"
)

// OrganizeUsings rewrites a document's top-level using directives into
// canonical order: System namespaces first, then the remaining plain
// usings, then static usings, then aliases, each group sorted and
// deduplicated. Comments between directives stay where they are.
func OrganizeUsings(ctx context.Context, m *semantic.Model, path string) (*operation.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ds, doc, err := documentFor(m, path)
	if err != nil {
		return nil, err
	}
	src := doc.Content

	type entry struct {
		u      semantic.UsingDirective
		global bool
	}
	var entries []entry
	for _, u := range ds.Usings {
		if !u.TopLevel {
			continue
		}
		text := strings.TrimSpace(string(src[u.Span.Start:u.Span.End]))
		entries = append(entries, entry{u: u, global: strings.HasPrefix(text, "global")})
	}
	out := operation.NewOutcome()
	out.Description = fmt.Sprintf("organize using directives in %s", path)
	if len(entries) == 0 {
		return out, nil
	}

	group := func(e entry) int {
		switch {
		case e.global:
			return 0
		case e.u.Alias != "":
			return 4
		case e.u.IsStatic:
			return 3
		case e.u.Name == "System" || strings.HasPrefix(e.u.Name, "System."):
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(entries, func(a, b int) bool {
		ga, gb := group(entries[a]), group(entries[b])
		if ga != gb {
			return ga < gb
		}
		if ga == 4 {
			return entries[a].u.Alias < entries[b].u.Alias
		}
		return entries[a].u.Name < entries[b].u.Name
	})

	var lines []string
	seen := make(map[string]bool)
	for _, e := range entries {
		key := fmt.Sprintf("%v|%v|%s|%s", e.global, e.u.IsStatic, e.u.Alias, e.u.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		lines = append(lines, renderUsing(e.u, e.global))
	}
	block := strings.Join(lines, "\n") + "\n"

	first := entries[0].u.Span.Start
	for _, e := range entries {
		if e.u.Span.Start < first {
			first = e.u.Span.Start
		}
	}
	insertAt := first
	for insertAt > 0 && src[insertAt-1] != '\n' {
		insertAt--
	}
	out.AddEdit(path, textdiff.Insert(insertAt, block))
	for _, e := range entries {
		out.AddEdit(path, textdiff.Delete(lineExpandedSpan(src, e.u.Span)))
	}
	return out, nil
}

// AddMissingUsings adds a using directive for every type name the
// document uses that does not resolve in its scope but names exactly
// one type in the workspace. Ambiguous names are left for the caller
// to qualify by hand.
func AddMissingUsings(ctx context.Context, m *semantic.Model, path string) (*operation.Outcome, error) {
	ds, _, err := documentFor(m, path)
	if err != nil {
		return nil, err
	}
	tree, err := m.Tree(ctx, path)
	if err != nil {
		return nil, err
	}

	needed := make(map[string]bool)
	for name := range usedSimpleNames(tree) {
		if sd, sc := m.ResolveTypeName(name, ds); sd != nil || sc > 0 {
			continue
		}
		gd, gc := m.ResolveTypeName(name, nil)
		if gd == nil || gc != 1 {
			continue
		}
		ns := gd.Symbol.Namespace
		if ns != "" && !ds.HasUsing(ns) {
			needed[ns] = true
		}
	}

	out := operation.NewOutcome()
	if len(needed) == 0 {
		out.Description = fmt.Sprintf("no missing using directives in %s", path)
		return out, nil
	}
	namespaces := make([]string, 0, len(needed))
	for ns := range needed {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)
	if hasTopLevelUsing(ds) {
		for _, ns := range namespaces {
			insertUsing(out, m, path, ns)
		}
	} else {
		var b strings.Builder
		for _, ns := range namespaces {
			b.WriteString("using " + ns + ";\n")
		}
		b.WriteString("\n")
		out.AddEdit(path, textdiff.Insert(0, b.String()))
	}
	out.Description = fmt.Sprintf("add %d using directive(s) to %s", len(namespaces), path)
	return out, nil
}

func hasTopLevelUsing(ds *semantic.DocumentSymbols) bool {
	for _, u := range ds.Usings {
		if u.TopLevel {
			return true
		}
	}
	return false
}

// RemoveUnusedUsings removes the document's plain using directives for
// workspace-declared namespaces that no name in the document resolves
// through. Directives for namespaces outside the workspace, static
// usings, and aliases are never touched, since the resolver cannot see
// what they provide.
func RemoveUnusedUsings(ctx context.Context, m *semantic.Model, path string) (*operation.Outcome, error) {
	ds, doc, err := documentFor(m, path)
	if err != nil {
		return nil, err
	}
	tree, err := m.Tree(ctx, path)
	if err != nil {
		return nil, err
	}
	src := doc.Content

	used := usedSimpleNames(tree)
	out := operation.NewOutcome()
	removedCount := 0
	for _, u := range ds.Usings {
		if !u.TopLevel || u.IsStatic || u.Alias != "" {
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(string(src[u.Span.Start:u.Span.End])), "global") {
			continue // a global using serves other documents too
		}
		if !workspaceDeclaresNamespace(m, u.Name) {
			continue
		}
		if namespaceServesNames(m, u.Name, used) {
			continue
		}
		out.AddEdit(path, textdiff.Delete(lineExpandedSpan(src, u.Span)))
		removedCount++
	}
	if removedCount == 0 {
		out.Description = fmt.Sprintf("no unused using directives in %s", path)
		return out, nil
	}
	out.Description = fmt.Sprintf("remove %d unused using directive(s) from %s", removedCount, path)
	return out, nil
}

func documentFor(m *semantic.Model, path string) (*semantic.DocumentSymbols, *source.Document, error) {
	doc := m.Snapshot().Document(path)
	ds := m.Document(path)
	if doc == nil || ds == nil {
		return nil, nil, recasterr.New(recasterr.PathInvalid,
			fmt.Sprintf("%s is not part of the workspace", path))
	}
	return ds, doc, nil
}

func renderUsing(u semantic.UsingDirective, global bool) string {
	var b strings.Builder
	if global {
		b.WriteString("global ")
	}
	b.WriteString("using ")
	if u.IsStatic {
		b.WriteString("static ")
	}
	if u.Alias != "" {
		b.WriteString(u.Alias + " = ")
	}
	b.WriteString(u.Name + ";")
	return b.String()
}

// usedSimpleNames collects the identifiers that could resolve through a
// using directive: simple names and the leftmost segment of qualified
// chains. Using directives themselves are excluded.
func usedSimpleNames(tree *syntax.Tree) map[string]bool {
	used := make(map[string]bool)
	src := tree.Source()
	syntax.Walk(tree.Root(), func(n *sitter.Node) bool {
		if n.Type() == "using_directive" {
			return false
		}
		if n.Type() != "identifier" {
			return true
		}
		if parent := n.Parent(); parent != nil {
			switch parent.Type() {
			case "qualified_name", "member_access_expression":
				if n.StartByte() != parent.StartByte() {
					return true
				}
			}
		}
		used[syntax.Text(n, src)] = true
		return true
	})
	return used
}

// workspaceDeclaresNamespace reports whether any workspace type lives
// in the namespace or below it.
func workspaceDeclaresNamespace(m *semantic.Model, ns string) bool {
	if ns == "" {
		return false
	}
	for _, t := range m.Types() {
		tns := t.Symbol.Namespace
		if tns == ns || strings.HasPrefix(tns, ns+".") {
			return true
		}
	}
	return false
}

// namespaceServesNames reports whether any used name denotes a type
// declared directly in the namespace.
func namespaceServesNames(m *semantic.Model, ns string, used map[string]bool) bool {
	for name := range used {
		if m.TypeByQualified(ns+"."+name) != nil {
			return true
		}
	}
	return false
}
