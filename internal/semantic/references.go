package semantic

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"golang.org/x/sync/errgroup"

	recasterr "recast/internal/errors"
	"recast/internal/source"
	"recast/internal/syntax"
)

// baseChainLimit bounds inheritance walks so cyclic base lists in
// broken sources cannot loop.
const baseChainLimit = 8

// FindReferences locates every occurrence of a symbol across the
// snapshot. Occurrences that bind through resolved receiver or scope
// types are exact; name-only matches where the receiver could not be
// resolved are heuristic and only reported when the name is unique in
// the workspace. Matches that cannot be bound at all are counted as
// skipped so callers can refuse unsafe rewrites.
func (m *Model) FindReferences(ctx context.Context, target *Symbol) (*ReferenceSet, error) {
	if target == nil {
		return nil, recasterr.New(recasterr.ParamInvalid, "reference query requires a symbol")
	}

	paths := m.snapshot.Paths()
	results := make([]*docRefs, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.analyzer.parallel)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			refs, err := m.findInDocument(gctx, p, target)
			if err != nil {
				return err
			}
			results[i] = refs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, recasterr.Wrap(recasterr.AnalysisFailed, "reference search failed", err)
	}

	set := &ReferenceSet{
		Symbol: target,
		ByPath: make(map[string][]Reference),
	}
	for _, dr := range results {
		if dr == nil {
			continue
		}
		if len(dr.refs) > 0 {
			set.ByPath[dr.path] = dr.refs
		}
		set.Exact += dr.exact
		set.Heuristic += dr.heuristic
		set.SkippedAmbiguous += dr.skipped
	}
	return set, nil
}

type docRefs struct {
	path      string
	refs      []Reference
	exact     int
	heuristic int
	skipped   int
}

func (m *Model) findInDocument(ctx context.Context, path string, target *Symbol) (*docRefs, error) {
	doc := m.snapshot.Document(path)
	ds := m.docs[path]
	if doc == nil || ds == nil {
		return nil, nil
	}

	// a document that never mentions the name cannot reference it
	if !strings.Contains(string(doc.Content), target.Name) {
		return nil, nil
	}

	tree, err := m.analyzer.Tree(ctx, doc)
	if err != nil {
		return nil, err
	}

	b := &binder{
		m:      m,
		target: target,
		doc:    doc,
		ds:     ds,
		src:    tree.Source(),
		out:    &docRefs{path: path},
	}
	if target.Kind.IsMember() {
		b.declType = m.qualified[target.QualifiedContainer()]
	} else if target.Kind.IsType() {
		b.targetType = m.typeDeclFor(target)
	}

	syntax.Walk(tree.Root(), func(n *sitter.Node) bool {
		if n.Type() == "identifier" && syntax.Text(n, b.src) == target.Name {
			b.bind(n)
		}
		return true
	})
	return b.out, nil
}

// typeDeclFor maps a type symbol back to its TypeDecl.
func (m *Model) typeDeclFor(sym *Symbol) *TypeDecl {
	if t, ok := m.qualified[sym.QualifiedName()]; ok && t.Symbol == sym {
		return t
	}
	for _, t := range m.types[sym.Name] {
		if t.Symbol == sym {
			return t
		}
	}
	return m.qualified[sym.QualifiedName()]
}

// binder classifies one document's identifier occurrences against a
// single target symbol.
type binder struct {
	m      *Model
	target *Symbol
	doc    *source.Document
	ds     *DocumentSymbols
	src    []byte
	out    *docRefs

	declType   *TypeDecl // declaring type when target is a member
	targetType *TypeDecl // the type itself when target is a type
}

func (b *binder) bind(id *sitter.Node) {
	span := syntax.SpanOf(id)

	// the declaration's own name
	if b.doc.Path == b.target.Path && span == b.target.NameSpan {
		b.add(id, true, true)
		return
	}

	// identifiers that declare something else are never references
	if declared, ofTarget := b.declaresOther(id); declared && !ofTarget {
		return
	} else if ofTarget {
		// constructor or destructor of the target type
		b.add(id, false, true)
		return
	}

	if b.insideNamespaceName(id) {
		return
	}
	if dir := syntax.Ancestor(id, "using_directive"); dir != nil {
		b.bindInUsing(id, dir)
		return
	}

	if b.target.Kind.IsType() {
		b.bindType(id)
		return
	}
	if b.target.Kind.IsMember() {
		b.bindMember(id)
	}
}

// declaresOther reports whether the identifier is the declared name of
// some construct. The second result is true for constructor and
// destructor names of the target type, which rename together with it.
func (b *binder) declaresOther(id *sitter.Node) (declared, ofTarget bool) {
	parent := id.Parent()
	if parent == nil {
		return false, false
	}
	switch parent.Type() {
	case "constructor_declaration", "destructor_declaration":
		if b.target.Kind.IsType() {
			if enc := b.enclosingType(parent); enc != nil && enc == b.targetType {
				return true, true
			}
		}
		return true, false
	case "foreach_statement":
		name := syntax.ForeachVarNode(parent)
		if name != nil && name.StartByte() == id.StartByte() && name.EndByte() == id.EndByte() {
			return true, false
		}
	case "variable_declarator", "parameter", "params_parameter",
		"method_declaration", "property_declaration", "local_function_statement",
		"enum_member_declaration", "event_declaration", "delegate_declaration",
		"class_declaration", "struct_declaration", "interface_declaration",
		"enum_declaration", "record_declaration", "type_parameter":
		name := syntax.NameNode(parent)
		if name != nil && name.StartByte() == id.StartByte() && name.EndByte() == id.EndByte() {
			return true, false
		}
	}
	return false, false
}

// insideNamespaceName reports whether the identifier is part of a
// namespace declaration's name.
func (b *binder) insideNamespaceName(id *sitter.Node) bool {
	p := id
	for p.Parent() != nil && p.Parent().Type() == "qualified_name" {
		p = p.Parent()
	}
	parent := p.Parent()
	if parent == nil {
		return false
	}
	return parent.Type() == "namespace_declaration" || parent.Type() == "file_scoped_namespace_declaration"
}

// bindInUsing binds identifiers inside using directives. Only a full
// qualified match against the target type counts; namespace imports
// that happen to share the name are not references.
func (b *binder) bindInUsing(id *sitter.Node, dir *sitter.Node) {
	if !b.target.Kind.IsType() || b.targetType == nil {
		return
	}
	p := id
	for p.Parent() != nil && p.Parent().Type() == "qualified_name" && p.Parent().EndByte() <= dir.EndByte() {
		p = p.Parent()
	}
	full := syntax.Text(p, b.src)
	if t, ok := b.m.qualified[full]; ok && t == b.targetType {
		// the target must be the trailing segment
		if strings.HasSuffix(full, b.target.Name) {
			b.add(id, false, true)
		}
	}
}

func (b *binder) bindType(id *sitter.Node) {
	if b.targetType == nil {
		return
	}
	parent := id.Parent()

	// part of a dotted name: resolve the dotted prefix ending at this
	// identifier so `Outer.Inner` binds Outer and Inner independently
	if parent != nil && parent.Type() == "qualified_name" {
		prefix := b.dottedPrefix(id)
		if t, n := b.m.ResolveTypeName(prefix, b.ds); n == 1 && t == b.targetType {
			b.add(id, false, true)
		} else if n > 1 {
			b.skip(id)
		}
		return
	}

	// receiver of a static access: Invoice.Create()
	if parent != nil && parent.Type() == "member_access_expression" {
		if expr := parent.ChildByFieldName("expression"); expr != nil && expr.StartByte() == id.StartByte() && expr.EndByte() == id.EndByte() {
			if b.localShadows(id) {
				return
			}
			b.resolveTypeOccurrence(id)
			return
		}
		// rightmost position: nested type accessed through its owner
		full := syntax.Text(parent, b.src)
		if t, ok := b.m.qualified[full]; ok && t == b.targetType {
			b.add(id, false, true)
		}
		return
	}

	// plain type position: declarations, casts, generics, base lists,
	// object creation, typeof, is/as
	b.resolveTypeOccurrence(id)
}

// dottedPrefix builds the dotted name from the outermost qualifier down
// to and including this identifier.
func (b *binder) dottedPrefix(id *sitter.Node) string {
	outer := id
	for outer.Parent() != nil && outer.Parent().Type() == "qualified_name" {
		outer = outer.Parent()
	}
	full := syntax.Text(outer, b.src)
	end := id.EndByte() - outer.StartByte()
	if int(end) <= len(full) {
		return full[:end]
	}
	return full
}

func (b *binder) resolveTypeOccurrence(id *sitter.Node) {
	t, n := b.m.ResolveTypeName(b.target.Name, b.ds)
	switch {
	case n == 1 && t == b.targetType:
		b.add(id, false, true)
	case n == 1:
		// binds to a different type with the same name
	case n == 0:
		if len(b.m.types[b.target.Name]) == 1 {
			b.add(id, false, false)
		} else {
			b.skip(id)
		}
	default:
		b.skip(id)
	}
}

func (b *binder) bindMember(id *sitter.Node) {
	if b.declType == nil {
		return
	}
	parent := id.Parent()

	// receiver.Member or receiver.Member(...)
	if parent != nil && parent.Type() == "member_access_expression" {
		name := parent.ChildByFieldName("name")
		if name != nil && name.StartByte() == id.StartByte() {
			b.bindQualifiedMember(id, parent)
			return
		}
		// identifier is the receiver, not the member
		return
	}

	// unqualified occurrence inside some type body
	if b.localShadows(id) {
		return
	}
	enc := b.enclosingType(id)
	if enc != nil {
		member, owner := b.m.lookupMember(enc, b.target.Name, baseChainLimit)
		if member != nil {
			if owner == b.declType && b.sameMember(member, id) {
				b.add(id, false, true)
			}
			return
		}
	}
	b.bindHeuristic(id)
}

func (b *binder) bindQualifiedMember(id *sitter.Node, access *sitter.Node) {
	receiver := access.ChildByFieldName("expression")
	if receiver == nil && access.NamedChildCount() > 0 {
		receiver = access.NamedChild(0)
	}
	rtype := b.inferType(receiver, baseChainLimit)
	if rtype == nil {
		b.bindHeuristic(id)
		return
	}
	member, owner := b.m.lookupMember(rtype, b.target.Name, baseChainLimit)
	if member == nil {
		// receiver resolved but the member is not declared on it;
		// either external code or an inference miss
		b.bindHeuristic(id)
		return
	}
	if owner == b.declType && b.sameMember(member, id) {
		b.add(id, false, true)
	}
}

// sameMember confirms the looked-up member is the target. Overloaded
// names are refined by call-site arity, since lookupMember only returns
// the first member with a matching name.
func (b *binder) sameMember(member *Symbol, id *sitter.Node) bool {
	overloads := 0
	if b.declType != nil {
		for _, m := range b.declType.Members {
			if m.Name == b.target.Name {
				overloads++
			}
		}
	}
	if overloads > 1 {
		if args := b.callArity(id); args >= 0 {
			return args == b.target.Arity()
		}
		// method group or nameof: the occurrence names the whole
		// overload set, so a rename must carry it along
		return true
	}
	return member == b.target
}

// callArity returns the argument count when the identifier is the
// callee of an invocation, or -1 otherwise.
func (b *binder) callArity(id *sitter.Node) int {
	n := id
	if p := n.Parent(); p != nil && p.Type() == "member_access_expression" {
		n = p
	}
	p := n.Parent()
	if p == nil || p.Type() != "invocation_expression" {
		return -1
	}
	if fn := p.ChildByFieldName("function"); fn != nil && fn.StartByte() != n.StartByte() {
		return -1
	}
	args := syntax.ChildOfType(p, "argument_list")
	if args == nil {
		return 0
	}
	return int(args.NamedChildCount())
}

// bindHeuristic records a name-only match when the name is unique in
// the workspace, otherwise counts it as skipped.
func (b *binder) bindHeuristic(id *sitter.Node) {
	if len(b.m.members[b.target.Name]) == 1 {
		b.add(id, false, false)
		return
	}
	b.skip(id)
}

// localShadows reports whether a local, parameter, or foreach variable
// with the target's name is in scope at the identifier.
func (b *binder) localShadows(id *sitter.Node) bool {
	name := b.target.Name
	for p := id.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "block", "switch_section":
			for i := 0; i < int(p.NamedChildCount()); i++ {
				stmt := p.NamedChild(i)
				if stmt.StartByte() >= id.StartByte() {
					break
				}
				if stmt.Type() != "local_declaration_statement" {
					continue
				}
				if b.declaresLocal(stmt, name) {
					return true
				}
			}
		case "foreach_statement":
			if nn := syntax.ForeachVarNode(p); nn != nil && syntax.Text(nn, b.src) == name {
				return true
			}
		case "for_statement":
			if init := p.ChildByFieldName("initializer"); init != nil && init.Type() == "variable_declaration" {
				if b.declaratorNamed(init, name) {
					return true
				}
			}
		case "method_declaration", "constructor_declaration", "local_function_statement",
			"lambda_expression", "anonymous_method_expression":
			if params := syntax.ChildOfType(p, "parameter_list"); params != nil {
				for _, param := range syntax.ChildrenOfType(params, "parameter") {
					if nn := syntax.NameNode(param); nn != nil && syntax.Text(nn, b.src) == name {
						return true
					}
				}
			}
			if p.Type() != "lambda_expression" && p.Type() != "anonymous_method_expression" {
				return false
			}
		case "class_declaration", "struct_declaration", "interface_declaration", "record_declaration":
			return false
		}
	}
	return false
}

func (b *binder) declaresLocal(stmt *sitter.Node, name string) bool {
	decl := syntax.ChildOfType(stmt, "variable_declaration")
	if decl == nil {
		return false
	}
	return b.declaratorNamed(decl, name)
}

func (b *binder) declaratorNamed(decl *sitter.Node, name string) bool {
	for _, d := range syntax.ChildrenOfType(decl, "variable_declarator") {
		if nn := syntax.NameNode(d); nn != nil && syntax.Text(nn, b.src) == name {
			return true
		}
	}
	return false
}

// enclosingType returns the TypeDecl whose declaration contains the
// node.
func (b *binder) enclosingType(n *sitter.Node) *TypeDecl {
	anc := syntax.Ancestor(n.Parent(), syntax.TypeDeclarationTypes()...)
	if anc == nil {
		return nil
	}
	span := syntax.SpanOf(anc)
	for _, t := range b.ds.Types {
		if t.Symbol.Span == span {
			return t
		}
	}
	return nil
}

// inferType determines the workspace type of an expression, or nil when
// the type is unknown or declared outside the workspace.
func (b *binder) inferType(expr *sitter.Node, depth int) *TypeDecl {
	if expr == nil || depth <= 0 {
		return nil
	}
	switch expr.Type() {
	case "this_expression":
		return b.enclosingType(expr)
	case "base_expression":
		enc := b.enclosingType(expr)
		if enc == nil || len(enc.BaseTypes) == 0 {
			return nil
		}
		t, n := b.m.ResolveTypeName(enc.BaseTypes[0], b.m.docs[enc.Symbol.Path])
		if n == 1 {
			return t
		}
		return nil
	case "parenthesized_expression":
		if expr.NamedChildCount() > 0 {
			return b.inferType(expr.NamedChild(0), depth-1)
		}
		return nil
	case "identifier":
		name := syntax.Text(expr, b.src)
		if tn := b.localTypeName(expr, name); tn != "" {
			if t, n := b.m.ResolveTypeName(tn, b.ds); n == 1 {
				return t
			}
			return nil
		}
		if enc := b.enclosingType(expr); enc != nil {
			if member, _ := b.m.lookupMember(enc, name, depth); member != nil && member.TypeName != "" {
				if t, n := b.m.ResolveTypeName(member.TypeName, b.ds); n == 1 {
					return t
				}
				return nil
			}
		}
		// not a value in scope: try as a type name for static access
		if t, n := b.m.ResolveTypeName(name, b.ds); n == 1 {
			return t
		}
		return nil
	case "member_access_expression":
		nameNode := expr.ChildByFieldName("name")
		receiver := expr.ChildByFieldName("expression")
		if nameNode == nil || receiver == nil {
			return nil
		}
		rtype := b.inferType(receiver, depth-1)
		if rtype == nil {
			// perhaps the whole access is a qualified type
			if t, ok := b.m.qualified[syntax.Text(expr, b.src)]; ok {
				return t
			}
			return nil
		}
		member, _ := b.m.lookupMember(rtype, syntax.Text(nameNode, b.src), depth)
		if member == nil || member.TypeName == "" {
			return nil
		}
		if t, n := b.m.ResolveTypeName(member.TypeName, b.m.docs[rtype.Symbol.Path]); n == 1 {
			return t
		}
		return nil
	case "invocation_expression":
		fn := expr.ChildByFieldName("function")
		return b.inferType(fn, depth-1)
	case "object_creation_expression":
		tn := expr.ChildByFieldName("type")
		if tn == nil {
			return nil
		}
		if t, n := b.m.ResolveTypeName(syntax.TypeNameOf(tn, b.src), b.ds); n == 1 {
			return t
		}
		return nil
	}
	return nil
}

// localTypeName finds the declared type of a local, parameter, or
// foreach variable visible at the identifier. Returns "" when no such
// declaration exists or the type is implicit.
func (b *binder) localTypeName(id *sitter.Node, name string) string {
	for p := id.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "block", "switch_section":
			var found string
			for i := 0; i < int(p.NamedChildCount()); i++ {
				stmt := p.NamedChild(i)
				if stmt.StartByte() >= id.StartByte() {
					break
				}
				if stmt.Type() != "local_declaration_statement" {
					continue
				}
				decl := syntax.ChildOfType(stmt, "variable_declaration")
				if decl == nil || !b.declaratorNamed(decl, name) {
					continue
				}
				found = b.declaredTypeName(decl)
			}
			if found != "" {
				return found
			}
		case "foreach_statement":
			if nn := syntax.ForeachVarNode(p); nn != nil && syntax.Text(nn, b.src) == name {
				if tn := p.ChildByFieldName("type"); tn != nil {
					return syntax.TypeNameOf(tn, b.src)
				}
				return ""
			}
		case "method_declaration", "constructor_declaration", "local_function_statement":
			if params := syntax.ChildOfType(p, "parameter_list"); params != nil {
				for _, param := range syntax.ChildrenOfType(params, "parameter") {
					nn := syntax.NameNode(param)
					if nn == nil || syntax.Text(nn, b.src) != name {
						continue
					}
					if tn := param.ChildByFieldName("type"); tn != nil {
						return syntax.TypeNameOf(tn, b.src)
					}
					return ""
				}
			}
			return ""
		case "class_declaration", "struct_declaration", "interface_declaration", "record_declaration":
			return ""
		}
	}
	return ""
}

func (b *binder) declaredTypeName(decl *sitter.Node) string {
	if tn := decl.ChildByFieldName("type"); tn != nil {
		if tn.Type() == "implicit_type" {
			return ""
		}
		return syntax.TypeNameOf(tn, b.src)
	}
	if decl.NamedChildCount() > 0 {
		first := decl.NamedChild(0)
		if first.Type() != "variable_declarator" && first.Type() != "implicit_type" {
			return syntax.TypeNameOf(first, b.src)
		}
	}
	return ""
}

// lookupMember finds a member by name on a type or its base chain.
// Returns the member and the type that declares it.
func (m *Model) lookupMember(t *TypeDecl, name string, depth int) (*Symbol, *TypeDecl) {
	if t == nil || depth <= 0 {
		return nil, nil
	}
	for _, member := range t.Members {
		if member.Name == name {
			return member, t
		}
	}
	from := m.docs[t.Symbol.Path]
	for _, base := range t.BaseTypes {
		bt, n := m.ResolveTypeName(base, from)
		if n != 1 || bt == t {
			continue
		}
		if member, owner := m.lookupMember(bt, name, depth-1); member != nil {
			return member, owner
		}
	}
	return nil, nil
}

func (b *binder) add(id *sitter.Node, isDecl, exact bool) {
	span := syntax.SpanOf(id)
	pos := b.doc.PositionFor(span.Start)
	b.out.refs = append(b.out.refs, Reference{
		Path:          b.doc.Path,
		Span:          span,
		Line:          pos.Line,
		Column:        pos.Column,
		Context:       b.lineContext(pos.Line),
		IsDeclaration: isDecl,
		Exact:         exact,
	})
	if exact {
		b.out.exact++
	} else {
		b.out.heuristic++
	}
}

func (b *binder) skip(id *sitter.Node) {
	b.out.skipped++
}

func (b *binder) lineContext(line int) string {
	span := b.doc.LineSpan(line)
	return strings.TrimSpace(string(b.doc.Slice(span)))
}
