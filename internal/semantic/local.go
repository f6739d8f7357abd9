package semantic

import (
	sitter "github.com/smacker/go-tree-sitter"

	"recast/internal/source"
	"recast/internal/syntax"
)

// LocalUse is one occurrence of a local variable after its declaration.
type LocalUse struct {
	Span    source.Span
	IsWrite bool // assignment target, increment, decrement, or ref/out argument
}

// functionScopes are the nodes that bound local variable visibility.
var functionScopes = []string{
	"method_declaration", "constructor_declaration", "destructor_declaration",
	"operator_declaration", "local_function_statement", "accessor_declaration",
	"property_declaration", "lambda_expression", "anonymous_method_expression",
}

// LocalUses returns every identifier in the enclosing function body
// that binds to the given variable declarator, in source order. The
// declarator's own name is excluded. Occurrences shadowed by a nested
// redeclaration of the same name bind to the inner declaration and are
// not returned.
func LocalUses(tree *syntax.Tree, declarator *sitter.Node) []LocalUse {
	src := tree.Source()
	nameNode := declarator.ChildByFieldName("name")
	if nameNode == nil {
		nameNode = syntax.ChildOfType(declarator, "identifier")
	}
	if nameNode == nil {
		return nil
	}
	name := syntax.Text(nameNode, src)

	scope := syntax.Ancestor(declarator, functionScopes...)
	if scope == nil {
		return nil
	}

	var uses []LocalUse
	syntax.Walk(scope, func(n *sitter.Node) bool {
		if n.Type() != "identifier" || syntax.Text(n, src) != name {
			return true
		}
		if n.StartByte() < declarator.EndByte() {
			return true
		}
		if !isValueContext(n) {
			return true
		}
		if binds := bindingDeclaration(n, name, src); binds != nil &&
			binds.StartByte() == declarator.StartByte() && binds.EndByte() == declarator.EndByte() {
			uses = append(uses, LocalUse{
				Span:    syntax.SpanOf(n),
				IsWrite: isWriteContext(n, src),
			})
		}
		return true
	})
	return uses
}

// bindingDeclaration finds the declaration a name occurrence binds to:
// the nearest preceding local declaration walking outward through
// enclosing scopes, then a parameter, then nothing.
func bindingDeclaration(occ *sitter.Node, name string, src []byte) *sitter.Node {
	for p := occ.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "block", "switch_section":
			var latest *sitter.Node
			for i := 0; i < int(p.NamedChildCount()); i++ {
				stmt := p.NamedChild(i)
				if stmt.StartByte() >= occ.StartByte() {
					break
				}
				if stmt.Type() != "local_declaration_statement" {
					continue
				}
				decl := syntax.ChildOfType(stmt, "variable_declaration")
				if decl == nil {
					continue
				}
				for _, d := range syntax.ChildrenOfType(decl, "variable_declarator") {
					if nn := syntax.NameNode(d); nn != nil && syntax.Text(nn, src) == name {
						latest = d
					}
				}
			}
			if latest != nil {
				return latest
			}
		case "for_statement":
			if init := p.ChildByFieldName("initializer"); init != nil && init.Type() == "variable_declaration" {
				for _, d := range syntax.ChildrenOfType(init, "variable_declarator") {
					if nn := syntax.NameNode(d); nn != nil && syntax.Text(nn, src) == name {
						return d
					}
				}
			}
		case "foreach_statement":
			if nn := syntax.ForeachVarNode(p); nn != nil && syntax.Text(nn, src) == name {
				return p
			}
		case "method_declaration", "constructor_declaration", "destructor_declaration",
			"operator_declaration", "local_function_statement",
			"lambda_expression", "anonymous_method_expression":
			if params := syntax.ChildOfType(p, "parameter_list"); params != nil {
				for _, param := range syntax.ChildrenOfType(params, "parameter") {
					if nn := syntax.NameNode(param); nn != nil && syntax.Text(nn, src) == name {
						return param
					}
				}
			}
			if p.Type() != "lambda_expression" && p.Type() != "anonymous_method_expression" {
				return nil
			}
		case "class_declaration", "struct_declaration", "interface_declaration", "record_declaration":
			return nil
		}
	}
	return nil
}

// isValueContext filters out identifier positions that can never read a
// local: member names after a dot, qualified type names, and named
// argument labels.
func isValueContext(id *sitter.Node) bool {
	parent := id.Parent()
	if parent == nil {
		return true
	}
	switch parent.Type() {
	case "member_access_expression":
		name := parent.ChildByFieldName("name")
		return name == nil || name.StartByte() != id.StartByte()
	case "qualified_name", "name_colon", "name_equals":
		return false
	}
	return true
}

// isWriteContext reports whether the identifier occurrence mutates the
// variable.
func isWriteContext(id *sitter.Node, src []byte) bool {
	parent := id.Parent()
	if parent == nil {
		return false
	}
	switch parent.Type() {
	case "assignment_expression":
		left := parent.ChildByFieldName("left")
		return left != nil && left.StartByte() == id.StartByte() && left.EndByte() == id.EndByte()
	case "prefix_unary_expression", "postfix_unary_expression":
		text := syntax.Text(parent, src)
		return len(text) >= 2 && (text[:2] == "++" || text[:2] == "--" ||
			text[len(text)-2:] == "++" || text[len(text)-2:] == "--")
	case "argument":
		for i := 0; i < int(parent.ChildCount()); i++ {
			switch parent.Child(i).Type() {
			case "ref", "out":
				return true
			}
		}
	}
	return false
}

// DeclaratorAt returns the variable declarator whose name identifier
// covers the given offset, or nil.
func DeclaratorAt(tree *syntax.Tree, offset int) *sitter.Node {
	n := syntax.NodeAt(tree.Root(), offset)
	if n == nil {
		return nil
	}
	return syntax.Ancestor(n, "variable_declarator")
}

// FindLocalDeclarator locates the declarator of a local variable by
// name inside the function that contains the given offset. Used when a
// transform addresses a local through name plus position.
func FindLocalDeclarator(tree *syntax.Tree, name string, offset int) *sitter.Node {
	src := tree.Source()
	start := syntax.NodeAt(tree.Root(), offset)
	if start == nil {
		start = tree.Root()
	}
	scope := syntax.Ancestor(start, functionScopes...)
	if scope == nil {
		scope = tree.Root()
	}

	var found *sitter.Node
	syntax.Walk(scope, func(n *sitter.Node) bool {
		if found != nil {
			return false
		}
		if n.Type() != "variable_declarator" {
			return true
		}
		if p := n.Parent(); p == nil || p.Type() != "variable_declaration" {
			return true
		}
		if gp := n.Parent().Parent(); gp == nil ||
			(gp.Type() != "local_declaration_statement" && gp.Type() != "for_statement") {
			return true
		}
		if nn := syntax.NameNode(n); nn != nil && syntax.Text(nn, src) == name {
			found = n
		}
		return true
	})
	return found
}
