package transform

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	recasterr "recast/internal/errors"
	"recast/internal/operation"
	"recast/internal/semantic"
	"recast/internal/syntax"
	"recast/internal/textdiff"
)

// Encapsulate wraps a field in a property. External references move to
// the property; access inside the declaring type stays direct. When the
// property name collides with the field name case-insensitively, the
// field itself is renamed to an underscore-prefixed backing name.
func Encapsulate(ctx context.Context, m *semantic.Model, refs *semantic.ReferenceSet, propertyName string) (*operation.Outcome, error) {
	sym := refs.Symbol
	if sym.Kind != semantic.KindField {
		return nil, recasterr.New(recasterr.ParamInvalid,
			fmt.Sprintf("%s is a %s, not a field", sym.QualifiedName(), sym.Kind))
	}
	if sym.HasModifier("const") {
		return nil, unsafe("const-field",
			fmt.Sprintf("%s is const and cannot be encapsulated", sym.QualifiedName()))
	}

	if propertyName == "" {
		propertyName = derivePropertyName(sym.Name)
	}
	if !IsLegalIdentifier(propertyName) {
		return nil, recasterr.New(recasterr.ParamInvalid,
			fmt.Sprintf("%q is not a legal identifier", propertyName))
	}
	if siblingCollision(m, sym, propertyName) {
		return nil, unsafe("name-collision",
			fmt.Sprintf("%s already contains a member named %q", sym.QualifiedContainer(), propertyName))
	}

	// a property differing from the field only by case would clash with
	// the field declaration, so the field moves to a backing name
	backingName := sym.Name
	if strings.EqualFold(propertyName, sym.Name) {
		backingName = "_" + lowerFirst(propertyName)
		if backingName == sym.Name || siblingCollision(m, sym, backingName) {
			return nil, unsafe("name-collision",
				fmt.Sprintf("no usable backing field name for %s", sym.QualifiedName()))
		}
	}

	tree, err := m.Tree(ctx, sym.Path)
	if err != nil {
		return nil, err
	}
	src := tree.Source()

	fieldDecl := declarationNode(tree, sym, "field_declaration")
	if fieldDecl == nil {
		return nil, recasterr.New(recasterr.AnalysisFailed,
			fmt.Sprintf("cannot locate the declaration of %s", sym.QualifiedName()))
	}

	out := operation.NewOutcome()

	// only a single-variable declaration can be demoted without
	// changing the visibility of sibling declarators
	if decl := syntax.ChildOfType(fieldDecl, "variable_declaration"); decl != nil {
		if len(syntax.ChildrenOfType(decl, "variable_declarator")) == 1 {
			demoteAccess(out, fieldDecl, src, sym.Path)
		}
	}

	internalRefs, externalRefs := m.SplitByDeclaringType(refs)
	for _, ref := range externalRefs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if ref.IsDeclaration {
			continue
		}
		out.AddEdit(ref.Path, textdiff.Replace(ref.Span, propertyName))
		out.RefsUpdated++
	}
	if backingName != sym.Name {
		for _, ref := range internalRefs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out.AddEdit(ref.Path, textdiff.Replace(ref.Span, backingName))
			if !ref.IsDeclaration {
				out.RefsUpdated++
			}
		}
	}

	indent := indentAt(src, sym.Span.Start)
	static := sym.HasModifier("static")
	readonly := sym.HasModifier("readonly")

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(indent)
	b.WriteString("public ")
	if static {
		b.WriteString("static ")
	}
	b.WriteString(sym.TypeText)
	b.WriteString(" ")
	b.WriteString(propertyName)
	b.WriteString("\n")
	b.WriteString(indent + "{\n")
	b.WriteString(indent + indentUnit + "get { return " + backingName + "; }\n")
	if !readonly {
		b.WriteString(indent + indentUnit + "set { " + backingName + " = value; }\n")
	}
	b.WriteString(indent + "}\n")

	insertAt := sym.Span.End
	for insertAt < len(src) && src[insertAt] != '\n' {
		insertAt++
	}
	text := b.String()
	if insertAt < len(src) {
		insertAt++
	} else {
		text = "\n" + text
	}
	out.AddEdit(sym.Path, textdiff.Insert(insertAt, text))

	doc := m.Snapshot().Document(sym.Path)
	modifiers := []string{"public"}
	if static {
		modifiers = append(modifiers, "static")
	}
	out.Symbol = &semantic.Symbol{
		Name:      propertyName,
		Kind:      semantic.KindProperty,
		Namespace: sym.Namespace,
		Container: sym.Container,
		Path:      sym.Path,
		Line:      doc.PositionFor(insertAt).Line + 1,
		Modifiers: modifiers,
		TypeText:  sym.TypeText,
		HasGetter: true,
		HasSetter: !readonly,
	}
	out.Description = fmt.Sprintf("encapsulate %s into property %s", sym.QualifiedName(), propertyName)
	return out, nil
}

// derivePropertyName strips a conventional private-field prefix and
// capitalizes the remainder.
func derivePropertyName(field string) string {
	name := field
	switch {
	case strings.HasPrefix(name, "m_"):
		name = name[2:]
	case strings.HasPrefix(name, "_"):
		name = strings.TrimLeft(name, "_")
	}
	if name == "" {
		name = field
	}
	return capitalize(name)
}

// demoteAccess rewrites the declaration's access modifiers to private.
// Fields without an access modifier are already private and need no
// edit.
func demoteAccess(out *operation.Outcome, decl *sitter.Node, src []byte, path string) {
	first := true
	for i := 0; i < int(decl.ChildCount()); i++ {
		child := decl.Child(i)
		if child.Type() != "modifier" {
			continue
		}
		switch syntax.Text(child, src) {
		case "public", "internal", "protected":
		default:
			continue
		}
		span := syntax.SpanOf(child)
		if first {
			out.AddEdit(path, textdiff.Replace(span, "private"))
			first = false
			continue
		}
		if span.End < len(src) && src[span.End] == ' ' {
			span.End++
		}
		out.AddEdit(path, textdiff.Delete(span))
	}
}
