package transform

import (
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"

	"recast/internal/semantic"
	"recast/internal/syntax"
)

// csharpKeywords are the reserved words that cannot be used as plain
// identifiers.
var csharpKeywords = map[string]bool{
	"abstract": true, "as": true, "base": true, "bool": true,
	"break": true, "byte": true, "case": true, "catch": true,
	"char": true, "checked": true, "class": true, "const": true,
	"continue": true, "decimal": true, "default": true, "delegate": true,
	"do": true, "double": true, "else": true, "enum": true,
	"event": true, "explicit": true, "extern": true, "false": true,
	"finally": true, "fixed": true, "float": true, "for": true,
	"foreach": true, "goto": true, "if": true, "implicit": true,
	"in": true, "int": true, "interface": true, "internal": true,
	"is": true, "lock": true, "long": true, "namespace": true,
	"new": true, "null": true, "object": true, "operator": true,
	"out": true, "override": true, "params": true, "private": true,
	"protected": true, "public": true, "readonly": true, "ref": true,
	"return": true, "sbyte": true, "sealed": true, "short": true,
	"sizeof": true, "stackalloc": true, "static": true, "string": true,
	"struct": true, "switch": true, "this": true, "throw": true,
	"true": true, "try": true, "typeof": true, "uint": true,
	"ulong": true, "unchecked": true, "unsafe": true, "ushort": true,
	"using": true, "virtual": true, "void": true, "volatile": true,
	"while": true,
}

// IsLegalIdentifier reports whether the name is a usable C# identifier.
// A leading @ escapes keywords.
func IsLegalIdentifier(name string) bool {
	if name == "" {
		return false
	}
	escaped := false
	if name[0] == '@' {
		escaped = true
		name = name[1:]
		if name == "" {
			return false
		}
	}
	if !escaped && csharpKeywords[name] {
		return false
	}
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}

// siblingCollision reports whether a declaration named name already
// exists in the same container scope as the symbol. The symbol itself
// is excluded.
func siblingCollision(m *semantic.Model, sym *semantic.Symbol, name string) bool {
	if sym.Kind.IsMember() {
		decl := m.DeclaringType(sym)
		if decl == nil {
			return false
		}
		for _, member := range decl.Members {
			if member == sym {
				continue
			}
			if member.Name == name {
				return true
			}
		}
		return false
	}

	// types collide with other types in the same namespace and container
	scope := sym.QualifiedContainer()
	qualified := name
	if scope != "" {
		qualified = scope + "." + name
	}
	if t := m.TypeByQualified(qualified); t != nil && t.Symbol != sym {
		return true
	}
	return false
}

// sideEffectNodes are expression forms that disqualify an initializer
// from inlining. The check is deliberately over-approximate: anything
// that might observe or change state refuses the transform.
var sideEffectNodes = map[string]string{
	"invocation_expression":               "invocation",
	"object_creation_expression":          "object creation",
	"implicit_object_creation_expression": "object creation",
	"await_expression":                    "await",
	"assignment_expression":               "assignment",
}

// initializerImpurity scans an initializer subtree and returns a short
// description of the first side-effecting construct, or "".
func initializerImpurity(init *sitter.Node, src []byte) string {
	found := ""
	syntax.Walk(init, func(n *sitter.Node) bool {
		if found != "" {
			return false
		}
		if desc, ok := sideEffectNodes[n.Type()]; ok {
			found = desc
			return false
		}
		if n.Type() == "prefix_unary_expression" || n.Type() == "postfix_unary_expression" {
			text := syntax.Text(n, src)
			if len(text) >= 2 && (text[:2] == "++" || text[:2] == "--" ||
				text[len(text)-2:] == "++" || text[len(text)-2:] == "--") {
				found = "increment or decrement"
				return false
			}
		}
		return true
	})
	return found
}
