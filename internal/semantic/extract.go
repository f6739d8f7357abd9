package semantic

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"recast/internal/source"
	"recast/internal/syntax"
)

// UsingDirective is a using directive with its exact source extent.
type UsingDirective struct {
	Name     string
	Alias    string // alias name for `using X = Y;`
	IsStatic bool
	Span     source.Span
	Line     int
	TopLevel bool // direct child of the compilation unit
}

// NamespaceDecl records a namespace declaration in a document.
type NamespaceDecl struct {
	Name       string
	Span       source.Span
	BodySpan   source.Span // declaration body including braces, zero for file-scoped
	FileScoped bool
}

// TypeDecl is a type declaration together with its extracted members.
type TypeDecl struct {
	Symbol    *Symbol
	Members   []*Symbol // declaration order
	BodySpan  source.Span
	BaseTypes []string
}

// QualifiedName returns the namespace-qualified name of the type.
func (t *TypeDecl) QualifiedName() string {
	return t.Symbol.QualifiedName()
}

// Member returns the first member with the given name, or nil.
func (t *TypeDecl) Member(name string) *Symbol {
	for _, m := range t.Members {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// DocumentSymbols is the declaration model of a single document. It
// depends only on the document's content, which makes it cacheable by
// content hash.
type DocumentSymbols struct {
	Path       string
	Hash       string
	HasErrors  bool
	Usings     []UsingDirective
	Namespaces []NamespaceDecl
	Types      []*TypeDecl // flattened, nested types included
}

// Namespace returns the primary namespace of the document, or "".
func (d *DocumentSymbols) Namespace() string {
	if len(d.Namespaces) == 0 {
		return ""
	}
	return d.Namespaces[0].Name
}

// HasUsing reports whether the document imports the namespace at the
// top level.
func (d *DocumentSymbols) HasUsing(namespace string) bool {
	for _, u := range d.Usings {
		if u.TopLevel && u.Alias == "" && !u.IsStatic && u.Name == namespace {
			return true
		}
	}
	return false
}

// ExtractSymbols walks a parsed document and extracts its declarations.
func ExtractSymbols(tree *syntax.Tree, doc *source.Document) *DocumentSymbols {
	ex := &extractor{
		doc: doc,
		src: tree.Source(),
		out: &DocumentSymbols{
			Path:      doc.Path,
			Hash:      doc.Hash,
			HasErrors: tree.HasErrors(),
		},
	}
	ex.walkScope(tree.Root(), "", "")
	return ex.out
}

type extractor struct {
	doc *source.Document
	src []byte
	out *DocumentSymbols
}

// walkScope visits a compilation unit or namespace body and collects
// the declarations it contains. namespace is the accumulated namespace
// path, container the accumulated nesting of type names.
func (ex *extractor) walkScope(n *sitter.Node, namespace, container string) {
	topLevel := n.Type() == "compilation_unit"
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "using_directive":
			ex.addUsing(child, topLevel)
		case "namespace_declaration", "file_scoped_namespace_declaration":
			ex.addNamespace(child, namespace, container)
		case "class_declaration", "struct_declaration", "interface_declaration",
			"enum_declaration", "record_declaration":
			ex.addType(child, namespace, container)
		case "global_statement":
			// top-level statements carry no declarations we track
		}
	}
}

func (ex *extractor) addUsing(n *sitter.Node, topLevel bool) {
	u := UsingDirective{
		Span:     syntax.SpanOf(n),
		Line:     int(n.StartPoint().Row) + 1,
		TopLevel: topLevel,
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Type() {
		case "static":
			u.IsStatic = true
		case "identifier", "qualified_name":
			u.Name = syntax.Text(c, ex.src)
		case "name_equals":
			// `using Alias = Target;` puts the alias inside name_equals
			// and the target after it
			if id := syntax.ChildOfType(c, "identifier"); id != nil {
				u.Alias = syntax.Text(id, ex.src)
			}
			u.Name = ""
		}
	}
	ex.out.Usings = append(ex.out.Usings, u)
}

func (ex *extractor) addNamespace(n *sitter.Node, outer, container string) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		nameNode = syntax.ChildOfType(n, "qualified_name")
	}
	if nameNode == nil {
		nameNode = syntax.ChildOfType(n, "identifier")
	}
	name := ""
	if nameNode != nil {
		name = syntax.Text(nameNode, ex.src)
	}
	if outer != "" && name != "" {
		name = outer + "." + name
	} else if name == "" {
		name = outer
	}

	decl := NamespaceDecl{
		Name:       name,
		Span:       syntax.SpanOf(n),
		FileScoped: n.Type() == "file_scoped_namespace_declaration",
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		body = syntax.ChildOfType(n, "declaration_list")
	}
	if body != nil {
		decl.BodySpan = syntax.SpanOf(body)
	}
	ex.out.Namespaces = append(ex.out.Namespaces, decl)

	if body != nil {
		ex.walkScope(body, name, container)
	} else {
		// file-scoped namespaces hold their declarations as siblings
		ex.walkScope(n, name, container)
	}
}

func (ex *extractor) addType(n *sitter.Node, namespace, container string) {
	nameNode := syntax.NameNode(n)
	if nameNode == nil {
		return
	}
	name := syntax.Text(nameNode, ex.src)

	kind := KindClass
	switch n.Type() {
	case "struct_declaration":
		kind = KindStruct
	case "interface_declaration":
		kind = KindInterface
	case "enum_declaration":
		kind = KindEnum
	case "record_declaration":
		kind = KindRecord
	}

	sym := ex.newSymbol(n, nameNode, name, kind, namespace, container)
	decl := &TypeDecl{Symbol: sym}
	// append before walking members so containers precede nested types
	ex.out.Types = append(ex.out.Types, decl)

	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "base_list":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				if bn := syntax.TypeNameOf(c.NamedChild(j), ex.src); bn != "" {
					decl.BaseTypes = append(decl.BaseTypes, bn)
				}
			}
		case "declaration_list", "enum_member_declaration_list":
			decl.BodySpan = syntax.SpanOf(c)
			ex.addMembers(c, decl, namespace, ex.childContainer(container, name))
		}
	}
}

func (ex *extractor) childContainer(container, name string) string {
	if container == "" {
		return name
	}
	return container + "." + name
}

func (ex *extractor) addMembers(body *sitter.Node, decl *TypeDecl, namespace, container string) {
	for i := 0; i < int(body.NamedChildCount()); i++ {
		c := body.NamedChild(i)
		switch c.Type() {
		case "method_declaration":
			decl.Members = append(decl.Members, ex.methodSymbol(c, KindMethod, namespace, container))
		case "constructor_declaration":
			decl.Members = append(decl.Members, ex.methodSymbol(c, KindConstructor, namespace, container))
		case "property_declaration":
			decl.Members = append(decl.Members, ex.propertySymbol(c, namespace, container))
		case "field_declaration", "event_field_declaration":
			decl.Members = append(decl.Members, ex.fieldSymbols(c, namespace, container)...)
		case "enum_member_declaration":
			if nameNode := syntax.NameNode(c); nameNode != nil {
				sym := ex.newSymbol(c, nameNode, syntax.Text(nameNode, ex.src), KindEnumMember, namespace, container)
				decl.Members = append(decl.Members, sym)
			}
		case "class_declaration", "struct_declaration", "interface_declaration",
			"enum_declaration", "record_declaration":
			ex.addType(c, namespace, container)
		}
	}
}

func (ex *extractor) methodSymbol(n *sitter.Node, kind SymbolKind, namespace, container string) *Symbol {
	nameNode := syntax.NameNode(n)
	name := ""
	if nameNode != nil {
		name = syntax.Text(nameNode, ex.src)
	}
	sym := ex.newSymbol(n, nameNode, name, kind, namespace, container)

	if kind == KindMethod {
		if tn := ex.returnTypeNode(n, nameNode); tn != nil {
			sym.TypeText = syntax.Text(tn, ex.src)
			sym.TypeName = syntax.TypeNameOf(tn, ex.src)
		}
	}

	params := n.ChildByFieldName("parameters")
	if params == nil {
		params = syntax.ChildOfType(n, "parameter_list")
	}
	if params != nil {
		sym.Params = ex.extractParams(params)
	}
	return sym
}

// returnTypeNode finds the return type of a method. Not every grammar
// revision exposes it as a field, so fall back to the last type-shaped
// node before the name.
func (ex *extractor) returnTypeNode(n *sitter.Node, nameNode *sitter.Node) *sitter.Node {
	if tn := n.ChildByFieldName("returns"); tn != nil {
		return tn
	}
	if tn := n.ChildByFieldName("type"); tn != nil {
		return tn
	}
	if nameNode == nil {
		return nil
	}
	var found *sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.StartByte() >= nameNode.StartByte() {
			break
		}
		switch c.Type() {
		case "predefined_type", "identifier", "qualified_name", "generic_name",
			"nullable_type", "array_type", "pointer_type", "tuple_type":
			found = c
		}
	}
	return found
}

func (ex *extractor) extractParams(list *sitter.Node) []Param {
	var out []Param
	for i := 0; i < int(list.NamedChildCount()); i++ {
		p := list.NamedChild(i)
		if p.Type() != "parameter" && p.Type() != "params_parameter" {
			continue
		}
		param := Param{Span: syntax.SpanOf(p)}

		nameNode := p.ChildByFieldName("name")
		typeNode := p.ChildByFieldName("type")
		fromField := nameNode != nil
		seenEq := false
		for j := 0; j < int(p.ChildCount()); j++ {
			c := p.Child(j)
			switch c.Type() {
			case "ref", "out", "in", "params":
				param.Modifier = c.Type()
			case "parameter_modifier":
				param.Modifier = syntax.Text(c, ex.src)
			case "equals_value_clause":
				if c.NamedChildCount() > 0 {
					param.Default = syntax.Text(c.NamedChild(0), ex.src)
				}
				seenEq = true
			case "=":
				seenEq = true
			default:
				if seenEq {
					// grammars without the clause wrapper put the
					// default expression right after the equals sign
					if param.Default == "" && c.IsNamed() {
						param.Default = syntax.Text(c, ex.src)
					}
				} else if !fromField && c.Type() == "identifier" {
					// last identifier before any default is the name,
					// an earlier one can only be the type
					nameNode = c
				}
			}
		}
		if typeNode == nil {
			for j := 0; j < int(p.NamedChildCount()); j++ {
				c := p.NamedChild(j)
				if nameNode != nil && c.StartByte() >= nameNode.StartByte() {
					break
				}
				switch c.Type() {
				case "predefined_type", "qualified_name", "generic_name",
					"nullable_type", "array_type", "tuple_type", "implicit_type":
					typeNode = c
				case "identifier":
					if nameNode != nil && c.StartByte() < nameNode.StartByte() {
						typeNode = c
					}
				}
			}
		}
		if nameNode != nil {
			param.Name = syntax.Text(nameNode, ex.src)
		}
		if typeNode != nil && (nameNode == nil || typeNode.StartByte() != nameNode.StartByte()) {
			param.TypeText = syntax.Text(typeNode, ex.src)
		}
		out = append(out, param)
	}
	return out
}

func (ex *extractor) propertySymbol(n *sitter.Node, namespace, container string) *Symbol {
	nameNode := syntax.NameNode(n)
	name := ""
	if nameNode != nil {
		name = syntax.Text(nameNode, ex.src)
	}
	sym := ex.newSymbol(n, nameNode, name, KindProperty, namespace, container)

	if tn := ex.returnTypeNode(n, nameNode); tn != nil {
		sym.TypeText = syntax.Text(tn, ex.src)
		sym.TypeName = syntax.TypeNameOf(tn, ex.src)
	}

	if accessors := syntax.ChildOfType(n, "accessor_list"); accessors != nil {
		for i := 0; i < int(accessors.NamedChildCount()); i++ {
			a := accessors.NamedChild(i)
			if a.Type() != "accessor_declaration" {
				continue
			}
			text := syntax.Text(a, ex.src)
			if strings.Contains(text, "get") {
				sym.HasGetter = true
			}
			if strings.Contains(text, "set") || strings.Contains(text, "init") {
				sym.HasSetter = true
			}
		}
	} else if syntax.ChildOfType(n, "arrow_expression_clause") != nil {
		sym.HasGetter = true
	}
	return sym
}

// fieldSymbols extracts one symbol per declarator in a field
// declaration. All declarators share the declaration span; the name
// span points at the individual declarator identifier.
func (ex *extractor) fieldSymbols(n *sitter.Node, namespace, container string) []*Symbol {
	varDecl := syntax.ChildOfType(n, "variable_declaration")
	if varDecl == nil {
		return nil
	}

	var typeNode *sitter.Node
	if tn := varDecl.ChildByFieldName("type"); tn != nil {
		typeNode = tn
	} else if varDecl.NamedChildCount() > 0 && varDecl.NamedChild(0).Type() != "variable_declarator" {
		typeNode = varDecl.NamedChild(0)
	}

	var out []*Symbol
	for i := 0; i < int(varDecl.NamedChildCount()); i++ {
		d := varDecl.NamedChild(i)
		if d.Type() != "variable_declarator" {
			continue
		}
		nameNode := d.ChildByFieldName("name")
		if nameNode == nil {
			nameNode = syntax.ChildOfType(d, "identifier")
		}
		if nameNode == nil {
			continue
		}
		sym := ex.newSymbol(n, nameNode, syntax.Text(nameNode, ex.src), KindField, namespace, container)
		if typeNode != nil {
			sym.TypeText = syntax.Text(typeNode, ex.src)
			sym.TypeName = syntax.TypeNameOf(typeNode, ex.src)
		}
		out = append(out, sym)
	}
	return out
}

func (ex *extractor) newSymbol(n *sitter.Node, nameNode *sitter.Node, name string, kind SymbolKind, namespace, container string) *Symbol {
	sym := &Symbol{
		Name:      name,
		Kind:      kind,
		Namespace: namespace,
		Container: container,
		Path:      ex.doc.Path,
		Line:      int(n.StartPoint().Row) + 1,
		Span:      syntax.SpanOf(n),
		Modifiers: syntax.Modifiers(n, ex.src),
		Signature: ex.signature(n),
	}
	if nameNode != nil {
		sym.NameSpan = syntax.SpanOf(nameNode)
	}
	sym.ID = StableID(sym)
	return sym
}

// signature is the first line of the declaration, trimmed of the body
// opener. Used for display only.
func (ex *extractor) signature(n *sitter.Node) string {
	text := syntax.Text(n, ex.src)
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "{")
	return strings.TrimSpace(text)
}
