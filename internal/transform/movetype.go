package transform

import (
	"context"
	"fmt"
	"path"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	recasterr "recast/internal/errors"
	"recast/internal/operation"
	"recast/internal/semantic"
	"recast/internal/source"
	"recast/internal/syntax"
	"recast/internal/textdiff"
)

var typeDeclarationKinds = []string{
	"class_declaration", "struct_declaration", "interface_declaration",
	"enum_declaration", "record_declaration", "record_struct_declaration",
}

// MoveType relocates a type declaration into a new file, optionally
// under a different namespace. The declaration moves together with its
// leading comment lines; when the namespace changes, qualified
// references are re-prefixed and files that referenced the type
// unqualified gain a using directive for the new namespace.
func MoveType(ctx context.Context, m *semantic.Model, refs *semantic.ReferenceSet, targetPath, targetNamespace string) (*operation.Outcome, error) {
	sym := refs.Symbol
	if !sym.Kind.IsType() {
		return nil, recasterr.New(recasterr.ParamInvalid,
			fmt.Sprintf("%s is a %s, not a type", sym.QualifiedName(), sym.Kind))
	}
	if targetPath == "" || !strings.HasSuffix(targetPath, ".cs") {
		return nil, recasterr.New(recasterr.ParamInvalid, "target path must name a .cs file")
	}
	cleaned := path.Clean(targetPath)
	if path.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return nil, recasterr.New(recasterr.PathInvalid,
			fmt.Sprintf("target path %q escapes the workspace", targetPath))
	}
	targetPath = cleaned
	if targetPath == sym.Path {
		return nil, recasterr.New(recasterr.ParamInvalid,
			fmt.Sprintf("%s already lives in %s", sym.QualifiedName(), targetPath))
	}

	oldNs := sym.Namespace
	newNs := targetNamespace
	if newNs == "" {
		newNs = oldNs
	}

	tree, err := m.Tree(ctx, sym.Path)
	if err != nil {
		return nil, err
	}
	src := tree.Source()

	declNode := declarationNode(tree, sym, typeDeclarationKinds...)
	if declNode == nil {
		return nil, recasterr.New(recasterr.AnalysisFailed,
			fmt.Sprintf("cannot locate the declaration of %s", sym.QualifiedName()))
	}
	if syntax.Ancestor(declNode.Parent(), "class_declaration", "struct_declaration",
		"interface_declaration", "record_declaration") != nil {
		return nil, unsafe("nested-type",
			fmt.Sprintf("%s is nested inside another type", sym.QualifiedName()))
	}

	declSpan := syntax.SpanOf(declNode)
	triviaStart := commentTriviaStart(src, declSpan.Start)
	removal := lineExpandedSpan(src, source.Span{Start: triviaStart, End: declSpan.End})
	if removal.End < len(src) && src[removal.End] == '\n' {
		removal.End++ // take one separating blank line along
	}
	movedText := string(src[removal.Start:removal.End])

	out := operation.NewOutcome()
	out.AddEdit(sym.Path, textdiff.Delete(removal))

	ds := m.Document(sym.Path)
	var b strings.Builder
	for _, u := range ds.Usings {
		if !u.TopLevel {
			continue
		}
		b.WriteString(strings.TrimSpace(string(src[u.Span.Start:u.Span.End])))
		b.WriteString("\n")
	}
	if newNs != oldNs && oldNs != "" && !ds.HasUsing(oldNs) {
		// the moved body may still reference siblings it leaves behind
		b.WriteString("using " + oldNs + ";\n")
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}

	lineBase := strings.Count(b.String(), "\n")
	body := strings.TrimRight(movedText, "\n")
	if newNs != "" {
		b.WriteString("namespace " + newNs + "\n{\n")
		lineBase += 2
		b.WriteString(reindent(body, indentUnit) + "\n")
		b.WriteString("}\n")
	} else {
		b.WriteString(reindent(body, "") + "\n")
	}
	out.Creates[targetPath] = []byte(b.String())

	declLineStart := declSpan.Start
	for declLineStart > 0 && src[declLineStart-1] != '\n' {
		declLineStart--
	}
	triviaLines := strings.Count(string(src[removal.Start:declLineStart]), "\n")

	needsUsing := make(map[string]bool)
	for _, p := range refs.Paths() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rtree, err := m.Tree(ctx, p)
		if err != nil {
			return nil, err
		}
		for _, ref := range refs.ByPath[p] {
			if ref.IsDeclaration {
				continue
			}
			if p == sym.Path && ref.Span.Start >= removal.Start && ref.Span.End <= removal.End {
				continue // moves along with the declaration text
			}
			if newNs == oldNs {
				continue // same namespace, references keep resolving
			}
			id := syntax.IdentifierAt(rtree.Root(), ref.Span.Start)
			if id == nil {
				continue
			}
			parent := id.Parent()
			if parent != nil && parent.Type() == "qualified_name" {
				if ok := rewriteQualified(out, rtree, parent, id, p, oldNs, newNs, sym.Name); ok {
					out.RefsUpdated++
				}
				continue
			}
			if parent != nil && parent.Type() == "member_access_expression" {
				name := parent.ChildByFieldName("name")
				if name != nil && name.StartByte() == id.StartByte() {
					expr := parent.ChildByFieldName("expression")
					if expr != nil && rtree.Text(expr) == oldNs {
						out.AddEdit(p, textdiff.Replace(syntax.SpanOf(parent), newNs+"."+sym.Name))
						out.RefsUpdated++
					}
					continue
				}
			}
			rds := m.Document(p)
			if rds != nil && rds.Namespace() != newNs && !rds.HasUsing(newNs) {
				needsUsing[p] = true
			}
			out.RefsUpdated++
		}
	}
	for p := range needsUsing {
		insertUsing(out, m, p, newNs)
	}

	moved := *sym
	moved.Namespace = newNs
	moved.Path = targetPath
	moved.Line = lineBase + triviaLines + 1
	out.Symbol = &moved
	if newNs != oldNs {
		out.Description = fmt.Sprintf("move %s to %s in namespace %s", sym.QualifiedName(), targetPath, newNs)
	} else {
		out.Description = fmt.Sprintf("move %s to %s", sym.QualifiedName(), targetPath)
	}
	return out, nil
}

// rewriteQualified re-prefixes a namespace-qualified type reference.
// Alias-qualified or otherwise unexpected prefixes are left alone.
func rewriteQualified(out *operation.Outcome, tree *syntax.Tree, qualified, id *sitter.Node, p, oldNs, newNs, typeName string) bool {
	name := qualified.ChildByFieldName("name")
	if name == nil {
		count := int(qualified.NamedChildCount())
		if count > 0 {
			name = qualified.NamedChild(count - 1)
		}
	}
	if name == nil || name.StartByte() != id.StartByte() {
		return false
	}
	qualifier := qualified.ChildByFieldName("qualifier")
	if qualifier == nil && qualified.NamedChildCount() > 1 {
		qualifier = qualified.NamedChild(0)
	}
	if qualifier == nil || tree.Text(qualifier) != oldNs {
		return false
	}
	out.AddEdit(p, textdiff.Replace(syntax.SpanOf(qualified), newNs+"."+typeName))
	return true
}

// insertUsing adds a using directive after the document's last
// top-level using, or at the top of the file.
func insertUsing(out *operation.Outcome, m *semantic.Model, p, ns string) {
	ds := m.Document(p)
	doc := m.Snapshot().Document(p)
	if ds == nil || doc == nil {
		return
	}
	last := -1
	for _, u := range ds.Usings {
		if u.TopLevel && u.Span.End > last {
			last = u.Span.End
		}
	}
	if last < 0 {
		out.AddEdit(p, textdiff.Insert(0, "using "+ns+";\n\n"))
		return
	}
	insertAt := last
	for insertAt < len(doc.Content) && doc.Content[insertAt] != '\n' {
		insertAt++
	}
	if insertAt < len(doc.Content) {
		insertAt++
	}
	out.AddEdit(p, textdiff.Insert(insertAt, "using "+ns+";\n"))
}

// commentTriviaStart walks upward over contiguous comment lines and
// returns the offset where the declaration's leading trivia begins.
func commentTriviaStart(src []byte, declStart int) int {
	start := declStart
	for start > 0 && src[start-1] != '\n' {
		start--
	}
	for start > 0 {
		prevEnd := start - 1 // the newline ending the previous line
		prevStart := prevEnd
		for prevStart > 0 && src[prevStart-1] != '\n' {
			prevStart--
		}
		line := strings.TrimSpace(string(src[prevStart:prevEnd]))
		if !strings.HasPrefix(line, "//") {
			break
		}
		start = prevStart
	}
	return start
}
