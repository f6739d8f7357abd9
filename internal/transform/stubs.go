package transform

import (
	"context"
	"fmt"
	"strings"

	recasterr "recast/internal/errors"
	"recast/internal/operation"
	"recast/internal/semantic"
	"recast/internal/textdiff"
)

// Stubs generates member stubs for the interface members a class lists
// in its base types but does not implement. Members are emitted in the
// interface's declaration order, each throwing NotImplementedException.
// With interfaceName set, only that interface is stubbed.
func Stubs(ctx context.Context, m *semantic.Model, refs *semantic.ReferenceSet, interfaceName string) (*operation.Outcome, error) {
	sym := refs.Symbol
	if sym.Kind != semantic.KindClass && sym.Kind != semantic.KindStruct {
		return nil, recasterr.New(recasterr.ParamInvalid,
			fmt.Sprintf("%s is a %s; stubs target classes and structs", sym.QualifiedName(), sym.Kind))
	}
	decl := m.TypeByQualified(sym.QualifiedName())
	if decl == nil {
		return nil, recasterr.New(recasterr.AnalysisFailed,
			fmt.Sprintf("cannot locate the declaration of %s", sym.QualifiedName()))
	}

	ifaces := interfaceClosure(m, decl, sym.Path)
	if interfaceName != "" {
		var picked []*semantic.TypeDecl
		for _, it := range ifaces {
			if it.Symbol.Name == interfaceName || it.QualifiedName() == interfaceName {
				picked = append(picked, it)
			}
		}
		if len(picked) == 0 {
			return nil, recasterr.New(recasterr.ParamInvalid,
				fmt.Sprintf("%s does not implement an interface named %q", sym.QualifiedName(), interfaceName))
		}
		ifaces = picked
	}

	have := make(map[string]bool, len(decl.Members))
	for _, member := range decl.Members {
		have[member.Name] = true
	}

	var missing []*semantic.Symbol
	seen := make(map[string]bool)
	for _, it := range ifaces {
		for _, member := range it.Members {
			if member.Kind != semantic.KindMethod && member.Kind != semantic.KindProperty {
				continue
			}
			if have[member.Name] || seen[member.Name] {
				continue
			}
			seen[member.Name] = true
			missing = append(missing, member)
		}
	}

	out := operation.NewOutcome()
	out.Symbol = sym
	if len(missing) == 0 {
		out.Description = fmt.Sprintf("%s already implements every interface member", sym.QualifiedName())
		return out, nil
	}

	tree, err := m.Tree(ctx, sym.Path)
	if err != nil {
		return nil, err
	}
	src := tree.Source()

	classIndent := indentAt(src, sym.Span.Start)
	memberIndent := classIndent + indentUnit

	closeBrace := decl.BodySpan.End - 1
	lineStart := closeBrace
	for lineStart > 0 && src[lineStart-1] != '\n' {
		lineStart--
	}
	// a single-line body keeps its braces; stubs go between them
	singleLine := lineStart <= decl.BodySpan.Start
	insertAt := lineStart
	if singleLine {
		insertAt = closeBrace
	}

	var b strings.Builder
	if singleLine {
		b.WriteString("\n")
	}
	hasMembers := len(decl.Members) > 0
	for i, member := range missing {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if hasMembers || i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(renderStub(member, memberIndent))
	}
	if singleLine {
		b.WriteString(classIndent)
	}
	out.AddEdit(sym.Path, textdiff.Insert(insertAt, b.String()))

	ds := m.Document(sym.Path)
	if ds != nil && !ds.HasUsing("System") {
		insertUsing(out, m, sym.Path, "System")
	}

	out.Description = fmt.Sprintf("generate %d member stub(s) in %s", len(missing), sym.QualifiedName())
	return out, nil
}

// interfaceClosure resolves the type's base interfaces, including
// interfaces those interfaces extend, bounded against cyclic base
// lists.
func interfaceClosure(m *semantic.Model, decl *semantic.TypeDecl, fromPath string) []*semantic.TypeDecl {
	from := m.Document(fromPath)
	var closure []*semantic.TypeDecl
	visited := make(map[string]bool)

	var walk func(t *semantic.TypeDecl, depth int)
	walk = func(t *semantic.TypeDecl, depth int) {
		if depth > 8 {
			return
		}
		for _, base := range t.BaseTypes {
			resolved, _ := m.ResolveTypeName(base, from)
			if resolved == nil || resolved.Symbol.Kind != semantic.KindInterface {
				continue
			}
			q := resolved.QualifiedName()
			if visited[q] {
				continue
			}
			visited[q] = true
			closure = append(closure, resolved)
			walk(resolved, depth+1)
		}
	}
	walk(decl, 0)
	return closure
}

// renderStub renders one missing interface member as a throwing stub.
func renderStub(member *semantic.Symbol, indent string) string {
	inner := indent + indentUnit
	var b strings.Builder
	switch member.Kind {
	case semantic.KindProperty:
		b.WriteString(indent + "public " + member.TypeText + " " + member.Name + "\n")
		b.WriteString(indent + "{\n")
		if member.HasGetter {
			b.WriteString(inner + "get { throw new NotImplementedException(); }\n")
		}
		if member.HasSetter {
			b.WriteString(inner + "set { throw new NotImplementedException(); }\n")
		}
		b.WriteString(indent + "}\n")
	default:
		params := make([]string, len(member.Params))
		for i, p := range member.Params {
			params[i] = p.Text()
		}
		b.WriteString(indent + "public " + member.TypeText + " " + member.Name + "(" + strings.Join(params, ", ") + ")\n")
		b.WriteString(indent + "{\n")
		b.WriteString(inner + "throw new NotImplementedException();\n")
		b.WriteString(indent + "}\n")
	}
	return b.String()
}
