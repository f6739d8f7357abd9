package syntax

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"recast/internal/source"
)

// SpanOf converts a node's byte range to a source span.
func SpanOf(n *sitter.Node) source.Span {
	if n == nil {
		return source.Span{}
	}
	return source.Span{Start: int(n.StartByte()), End: int(n.EndByte())}
}

// Text returns the source text covered by a node.
func Text(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return string(src[n.StartByte():n.EndByte()])
}

// NameNode locates the identifier that names a declaration. It prefers the
// grammar's "name" field and falls back to scanning children, which keeps
// the lookup working across grammar revisions that moved field labels.
func NameNode(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}

	// Field declarations name their variables inside declarators
	if n.Type() == "field_declaration" || n.Type() == "event_field_declaration" {
		if decl := ChildOfType(n, "variable_declaration"); decl != nil {
			if declarator := ChildOfType(decl, "variable_declarator"); declarator != nil {
				return NameNode(declarator)
			}
		}
		return nil
	}

	if name := n.ChildByFieldName("name"); name != nil {
		return name
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "identifier", "qualified_name":
			return child
		}
	}
	return nil
}

// Name returns the declared name of a node, or "" if it has none.
func Name(n *sitter.Node, src []byte) string {
	return Text(NameNode(n), src)
}

// ForeachVarNode returns the loop variable identifier of a foreach
// statement. The variable sits in the "left" field; when that field is
// missing the identifier following the type child is used instead, so
// the type name is never mistaken for the variable.
func ForeachVarNode(n *sitter.Node) *sitter.Node {
	if n == nil || n.Type() != "foreach_statement" {
		return nil
	}
	if left := n.ChildByFieldName("left"); left != nil && left.Type() == "identifier" {
		return left
	}
	var last *sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		if child.Type() == "in" {
			break
		}
		if child.Type() == "identifier" {
			last = child
		}
	}
	return last
}

// ChildOfType returns the first direct child with the given type.
func ChildOfType(n *sitter.Node, typ string) *sitter.Node {
	if n == nil {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child != nil && child.Type() == typ {
			return child
		}
	}
	return nil
}

// ChildrenOfType returns all direct children with the given type.
func ChildrenOfType(n *sitter.Node, typ string) []*sitter.Node {
	if n == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child != nil && child.Type() == typ {
			out = append(out, child)
		}
	}
	return out
}

// NamedChildren returns all named children of a node.
func NamedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child != nil {
			out = append(out, child)
		}
	}
	return out
}

// FindNodes collects all nodes of the given types in document order.
func FindNodes(root *sitter.Node, types ...string) []*sitter.Node {
	if root == nil || len(types) == 0 {
		return nil
	}

	var result []*sitter.Node
	Walk(root, func(n *sitter.Node) bool {
		for _, t := range types {
			if n.Type() == t {
				result = append(result, n)
				break
			}
		}
		return true
	})
	return result
}

// Walk visits nodes depth-first in document order. Returning false from
// the callback skips the node's subtree.
func Walk(root *sitter.Node, fn func(*sitter.Node) bool) {
	if root == nil {
		return
	}
	if !fn(root) {
		return
	}
	for i := 0; i < int(root.ChildCount()); i++ {
		Walk(root.Child(i), fn)
	}
}

// Ancestor returns the nearest ancestor (including n itself) whose type is
// one of the given types.
func Ancestor(n *sitter.Node, types ...string) *sitter.Node {
	for cur := n; cur != nil; cur = cur.Parent() {
		for _, t := range types {
			if cur.Type() == t {
				return cur
			}
		}
	}
	return nil
}

// NodeAt returns the deepest named node containing the byte offset.
func NodeAt(root *sitter.Node, offset int) *sitter.Node {
	if root == nil || !SpanOf(root).ContainsOffset(offset) {
		return nil
	}

	node := root
	for {
		var next *sitter.Node
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child != nil && SpanOf(child).ContainsOffset(offset) {
				next = child
				break
			}
		}
		if next == nil {
			return node
		}
		node = next
	}
}

// IdentifierAt returns the identifier node at the byte offset, or nil if
// the offset is not inside an identifier.
func IdentifierAt(root *sitter.Node, offset int) *sitter.Node {
	node := NodeAt(root, offset)
	if node != nil && node.Type() == "identifier" {
		return node
	}
	return nil
}

// Modifiers returns the modifier keywords on a declaration, in order.
func Modifiers(n *sitter.Node, src []byte) []string {
	if n == nil {
		return nil
	}
	var mods []string
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child != nil && child.Type() == "modifier" {
			mods = append(mods, Text(child, src))
		}
	}
	return mods
}

// HasModifier reports whether a declaration carries the modifier keyword.
func HasModifier(n *sitter.Node, src []byte, mod string) bool {
	for _, m := range Modifiers(n, src) {
		if m == mod {
			return true
		}
	}
	return false
}

// TypeDeclarationTypes lists the node types that declare a C# type.
func TypeDeclarationTypes() []string {
	return []string{
		"class_declaration",
		"struct_declaration",
		"interface_declaration",
		"enum_declaration",
		"record_declaration",
	}
}

// TypeNameOf extracts the plain type name from a type node, unwrapping
// nullable/array/generic shapes down to the base identifier. Returns ""
// for types with no usable name (var, tuples, pointers).
func TypeNameOf(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "identifier", "predefined_type":
		return Text(n, src)
	case "qualified_name":
		// Rightmost component names the type
		if name := n.ChildByFieldName("name"); name != nil {
			return Text(name, src)
		}
		txt := Text(n, src)
		if i := strings.LastIndex(txt, "."); i >= 0 {
			return txt[i+1:]
		}
		return txt
	case "generic_name":
		if id := ChildOfType(n, "identifier"); id != nil {
			return Text(id, src)
		}
		return ""
	case "nullable_type", "array_type", "pointer_type":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if name := TypeNameOf(n.NamedChild(i), src); name != "" {
				return name
			}
		}
		return ""
	default:
		return ""
	}
}
