package transform

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	recasterr "recast/internal/errors"
	"recast/internal/operation"
	"recast/internal/semantic"
	"recast/internal/source"
	"recast/internal/syntax"
	"recast/internal/textdiff"
)

// Inline replaces every use of a local variable with its initializer
// expression and removes the declaration. The safety checks are
// conservative: any initializer that might observe or change state, any
// reassignment of the variable, and any ref/out usage refuse the
// transform rather than risk changing behavior.
func Inline(ctx context.Context, m *semantic.Model, path, name string, line int) (*operation.Outcome, error) {
	tree, err := m.Tree(ctx, path)
	if err != nil {
		return nil, err
	}
	doc := m.Snapshot().Document(path)
	src := tree.Source()

	declarator, err := findInlineTarget(tree, doc, name, line)
	if err != nil {
		return nil, err
	}

	varDecl := declarator.Parent()
	stmt := varDecl.Parent()
	if stmt.Type() == "for_statement" {
		return nil, unsafe("loop-variable",
			fmt.Sprintf("%q is a for-loop variable and cannot be inlined", name))
	}

	init := declaratorInitializer(declarator)
	if init == nil {
		return nil, unsafe("missing-initializer",
			fmt.Sprintf("%q has no initializer to inline", name))
	}
	if impurity := initializerImpurity(init, src); impurity != "" {
		return nil, unsafe("side-effects",
			fmt.Sprintf("initializer of %q contains an %s", name, impurity))
	}

	uses := semantic.LocalUses(tree, declarator)
	for _, use := range uses {
		if !use.IsWrite {
			continue
		}
		if isRefOrOutUse(tree, use.Span) {
			return nil, unsafe("ref-out-usage",
				fmt.Sprintf("%q is passed by ref or out and cannot be inlined", name))
		}
		return nil, unsafe("reassigned",
			fmt.Sprintf("%q is reassigned after its declaration", name))
	}

	initText := tree.Text(init)
	parenthesize := init.Type() == "binary_expression" || init.Type() == "conditional_expression"

	out := operation.NewOutcome()
	for _, use := range uses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := initText
		if parenthesize && needsParens(tree, use.Span) {
			text = "(" + initText + ")"
		}
		out.AddEdit(path, textdiff.Replace(use.Span, text))
	}

	out.AddEdit(path, textdiff.Delete(removalSpan(src, declarator, varDecl, stmt)))

	nameNode := syntax.NameNode(declarator)
	sym := &semantic.Symbol{
		Name:     name,
		Kind:     semantic.KindLocal,
		Path:     path,
		Line:     doc.PositionFor(int(declarator.StartByte())).Line,
		Span:     syntax.SpanOf(stmt),
		NameSpan: syntax.SpanOf(nameNode),
	}
	if typeNode := varDecl.ChildByFieldName("type"); typeNode != nil {
		sym.TypeText = tree.Text(typeNode)
	}

	out.Symbol = sym
	out.RefsUpdated = len(uses)
	out.Description = fmt.Sprintf("inline %s into %d use(s)", name, len(uses))
	return out, nil
}

// findInlineTarget locates the declarator of the named local variable,
// using the line to disambiguate when the document declares the name
// more than once.
func findInlineTarget(tree *syntax.Tree, doc *source.Document, name string, line int) (*sitter.Node, error) {
	src := tree.Source()

	var candidates []*sitter.Node
	syntax.Walk(tree.Root(), func(n *sitter.Node) bool {
		if n.Type() != "variable_declarator" {
			return true
		}
		parent := n.Parent()
		if parent == nil || parent.Type() != "variable_declaration" {
			return true
		}
		gp := parent.Parent()
		if gp == nil || (gp.Type() != "local_declaration_statement" && gp.Type() != "for_statement") {
			return true
		}
		if nn := syntax.NameNode(n); nn != nil && syntax.Text(nn, src) == name {
			candidates = append(candidates, n)
		}
		return true
	})

	if line > 0 {
		var filtered []*sitter.Node
		for _, c := range candidates {
			if doc.PositionFor(int(c.StartByte())).Line == line {
				filtered = append(filtered, c)
			}
		}
		candidates = filtered
	}

	switch len(candidates) {
	case 0:
		msg := fmt.Sprintf("no local variable %q in %s", name, doc.Path)
		if line > 0 {
			msg = fmt.Sprintf("no local variable %q at %s:%d", name, doc.Path, line)
		}
		return nil, recasterr.New(recasterr.SymbolNotFound, msg)
	case 1:
		return candidates[0], nil
	}

	lines := make([]int, 0, len(candidates))
	for _, c := range candidates {
		lines = append(lines, doc.PositionFor(int(c.StartByte())).Line)
	}
	return nil, recasterr.New(recasterr.SymbolAmbiguous,
		fmt.Sprintf("%q is declared %d times in %s; pass a line to disambiguate", name, len(candidates), doc.Path)).
		WithDetails(map[string]interface{}{"lines": lines})
}

// declaratorInitializer returns the initializer expression of a
// variable declarator, handling both equals_value_clause wrapping and
// grammars that inline the expression after the = token.
func declaratorInitializer(declarator *sitter.Node) *sitter.Node {
	if clause := syntax.ChildOfType(declarator, "equals_value_clause"); clause != nil {
		if v := clause.ChildByFieldName("value"); v != nil {
			return v
		}
		count := int(clause.NamedChildCount())
		if count > 0 {
			return clause.NamedChild(count - 1)
		}
		return nil
	}

	seenEq := false
	for i := 0; i < int(declarator.ChildCount()); i++ {
		child := declarator.Child(i)
		if child.Type() == "=" {
			seenEq = true
			continue
		}
		if seenEq && child.IsNamed() {
			return child
		}
	}
	return nil
}

// isRefOrOutUse reports whether the use site is a ref or out argument.
func isRefOrOutUse(tree *syntax.Tree, span source.Span) bool {
	id := syntax.IdentifierAt(tree.Root(), span.Start)
	if id == nil {
		return false
	}
	arg := id.Parent()
	if arg == nil || arg.Type() != "argument" {
		return false
	}
	for i := 0; i < int(arg.ChildCount()); i++ {
		switch arg.Child(i).Type() {
		case "ref", "out":
			return true
		}
	}
	return false
}

// needsParens reports whether substituting a binary or conditional
// expression at the use site would change precedence.
func needsParens(tree *syntax.Tree, span source.Span) bool {
	id := syntax.IdentifierAt(tree.Root(), span.Start)
	if id == nil {
		return false
	}
	parent := id.Parent()
	if parent == nil {
		return false
	}
	switch parent.Type() {
	case "binary_expression", "conditional_expression", "member_access_expression":
		return true
	}
	return false
}

// removalSpan computes the span that deletes the declarator: the whole
// statement when it declares a single variable, otherwise just the
// declarator and its separating comma.
func removalSpan(src []byte, declarator, varDecl, stmt *sitter.Node) source.Span {
	declarators := syntax.ChildrenOfType(varDecl, "variable_declarator")
	if len(declarators) <= 1 {
		return lineExpandedSpan(src, syntax.SpanOf(stmt))
	}

	idx := 0
	for i, d := range declarators {
		if d.StartByte() == declarator.StartByte() {
			idx = i
			break
		}
	}
	if idx == 0 {
		// first declarator: remove through the start of the next one
		return source.Span{
			Start: int(declarator.StartByte()),
			End:   int(declarators[1].StartByte()),
		}
	}
	// later declarator: remove from the end of the previous one
	return source.Span{
		Start: int(declarators[idx-1].EndByte()),
		End:   int(declarator.EndByte()),
	}
}
