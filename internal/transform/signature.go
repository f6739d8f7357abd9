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
	"recast/internal/syntax"
	"recast/internal/textdiff"
)

// ParamChange describes one parameter edit in a signature change.
// A change either modifies an existing parameter named Name, or, with
// Add set, introduces a new parameter. Position is the 0-based index
// the parameter should occupy in the new order; without it, parameters
// keep declaration order and additions go to the end.
type ParamChange struct {
	Name     string `json:"name"`
	Add      bool   `json:"add,omitempty"`
	Remove   bool   `json:"remove,omitempty"`
	NewName  string `json:"newName,omitempty"`
	Type     string `json:"type,omitempty"`
	Default  string `json:"default,omitempty"`
	Position *int   `json:"position,omitempty"`
}

// paramSlot is one parameter of the new signature with its sort key and
// the information call-site rewriting needs.
type paramSlot struct {
	rendered  semantic.Param
	origIndex int    // index in the old parameter list, -1 for additions
	fill      string // call-site expression for additions
	key       int
	seq       int
}

// ChangeSignature rewrites a method's parameter list and every call
// site found through reference search. Arguments of retained parameters
// are carried over, named-argument labels follow parameter renames,
// and added parameters are filled from the supplied default expression
// or a visible placeholder so no call site is left silently
// inconsistent with the new signature.
func ChangeSignature(ctx context.Context, m *semantic.Model, refs *semantic.ReferenceSet, changes []ParamChange) (*operation.Outcome, error) {
	sym := refs.Symbol
	if sym.Kind != semantic.KindMethod {
		return nil, recasterr.New(recasterr.ParamInvalid,
			fmt.Sprintf("%s is a %s; change-signature targets methods", sym.QualifiedName(), sym.Kind))
	}
	if len(changes) == 0 {
		return nil, recasterr.New(recasterr.ParamInvalid, "no parameter changes supplied")
	}
	if overloaded(m, sym) {
		return nil, unsafe("overloaded-method",
			fmt.Sprintf("%s is overloaded; call sites cannot be rewritten safely", sym.QualifiedName()))
	}

	slots, err := planSignature(sym.Params, changes)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(slots))
	for i, s := range slots {
		texts[i] = s.rendered.Text()
	}
	newList := "(" + strings.Join(texts, ", ") + ")"

	out := operation.NewOutcome()

	declTree, err := m.Tree(ctx, sym.Path)
	if err != nil {
		return nil, err
	}
	decl := declarationNode(declTree, sym, "method_declaration", "local_function_statement")
	if decl == nil {
		return nil, recasterr.New(recasterr.AnalysisFailed,
			fmt.Sprintf("cannot locate the declaration of %s", sym.QualifiedName()))
	}
	plist := decl.ChildByFieldName("parameters")
	if plist == nil {
		plist = syntax.ChildOfType(decl, "parameter_list")
	}
	if plist == nil {
		return nil, recasterr.New(recasterr.AnalysisFailed,
			fmt.Sprintf("%s has no parameter list", sym.QualifiedName()))
	}
	if declTree.Text(plist) != newList {
		out.AddEdit(sym.Path, textdiff.Replace(syntax.SpanOf(plist), newList))
	}

	for _, path := range refs.Paths() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tree, err := m.Tree(ctx, path)
		if err != nil {
			return nil, err
		}
		for _, ref := range refs.ByPath[path] {
			if ref.IsDeclaration {
				continue
			}
			args := enclosingArgumentList(tree, ref.Span.Start)
			if args == nil {
				continue // method group or nameof, no argument list to touch
			}
			newArgs, err := rewriteArguments(tree, args, sym.Params, slots)
			if err != nil {
				return nil, err
			}
			if newArgs == tree.Text(args) {
				continue
			}
			out.AddEdit(path, textdiff.Replace(syntax.SpanOf(args), newArgs))
			out.RefsUpdated++
		}
	}

	changed := *sym
	changed.Params = make([]semantic.Param, len(slots))
	for i, s := range slots {
		changed.Params[i] = s.rendered
	}
	if i := strings.IndexByte(sym.Signature, '('); i >= 0 {
		changed.Signature = sym.Signature[:i] + newList
	} else {
		changed.Signature = sym.Name + newList
	}
	out.Symbol = &changed
	out.Description = fmt.Sprintf("change signature of %s to %s%s", sym.QualifiedName(), sym.Name, newList)
	return out, nil
}

// overloaded reports whether the declaring type has another method with
// the same name.
func overloaded(m *semantic.Model, sym *semantic.Symbol) bool {
	decl := m.DeclaringType(sym)
	if decl == nil {
		return false
	}
	for _, member := range decl.Members {
		if member == sym {
			continue
		}
		if member.Kind == semantic.KindMethod && member.Name == sym.Name {
			return true
		}
	}
	return false
}

// planSignature validates the change list and produces the new
// parameter order: a stable sort keyed by explicit position when given,
// original index otherwise, with additions after the existing
// parameters.
func planSignature(old []semantic.Param, changes []ParamChange) ([]paramSlot, error) {
	byName := make(map[string]int, len(old))
	for i, p := range old {
		byName[p.Name] = i
	}

	type override struct {
		newName  string
		typeText string
		position *int
	}
	overrides := make(map[int]override)
	removed := make(map[int]bool)
	var additions []paramSlot
	addIndex := 0

	for _, ch := range changes {
		if ch.Add {
			if ch.Remove || ch.NewName != "" {
				return nil, recasterr.New(recasterr.ParamInvalid,
					fmt.Sprintf("added parameter %q cannot also be removed or renamed", ch.Name))
			}
			if !IsLegalIdentifier(ch.Name) {
				return nil, recasterr.New(recasterr.ParamInvalid,
					fmt.Sprintf("%q is not a legal parameter name", ch.Name))
			}
			if ch.Type == "" {
				return nil, recasterr.New(recasterr.ParamInvalid,
					fmt.Sprintf("added parameter %q needs a type", ch.Name))
			}
			if ch.Position != nil && *ch.Position < 0 {
				return nil, recasterr.New(recasterr.ParamInvalid, "position must not be negative")
			}
			slot := paramSlot{
				rendered:  semantic.Param{Name: ch.Name, TypeText: ch.Type},
				origIndex: -1,
				fill:      ch.Default,
				key:       len(old) + addIndex,
				seq:       len(old) + addIndex,
			}
			if ch.Position != nil {
				slot.key = *ch.Position
			}
			additions = append(additions, slot)
			addIndex++
			continue
		}

		idx, ok := byName[ch.Name]
		if !ok {
			return nil, recasterr.New(recasterr.ParamInvalid,
				fmt.Sprintf("no parameter named %q", ch.Name))
		}
		if _, dup := overrides[idx]; dup || removed[idx] {
			return nil, recasterr.New(recasterr.ParamInvalid,
				fmt.Sprintf("parameter %q changed more than once", ch.Name))
		}
		if ch.Default != "" {
			return nil, recasterr.New(recasterr.ParamInvalid,
				fmt.Sprintf("default only applies to added parameters, not %q", ch.Name))
		}
		if ch.Remove {
			if ch.NewName != "" || ch.Type != "" || ch.Position != nil {
				return nil, recasterr.New(recasterr.ParamInvalid,
					fmt.Sprintf("removed parameter %q cannot carry other changes", ch.Name))
			}
			removed[idx] = true
			continue
		}
		if ch.NewName != "" && !IsLegalIdentifier(ch.NewName) {
			return nil, recasterr.New(recasterr.ParamInvalid,
				fmt.Sprintf("%q is not a legal parameter name", ch.NewName))
		}
		if ch.Position != nil && *ch.Position < 0 {
			return nil, recasterr.New(recasterr.ParamInvalid, "position must not be negative")
		}
		overrides[idx] = override{newName: ch.NewName, typeText: ch.Type, position: ch.Position}
	}

	slots := make([]paramSlot, 0, len(old)+len(additions))
	for i, p := range old {
		if removed[i] {
			continue
		}
		rendered := p
		ov := overrides[i]
		if ov.newName != "" {
			rendered.Name = ov.newName
		}
		if ov.typeText != "" {
			rendered.TypeText = ov.typeText
		}
		slot := paramSlot{rendered: rendered, origIndex: i, key: i, seq: i}
		if ov.position != nil {
			slot.key = *ov.position
		}
		slots = append(slots, slot)
	}
	slots = append(slots, additions...)

	sort.SliceStable(slots, func(a, b int) bool {
		if slots[a].key != slots[b].key {
			return slots[a].key < slots[b].key
		}
		return slots[a].seq < slots[b].seq
	})

	names := make(map[string]bool, len(slots))
	for _, s := range slots {
		if names[s.rendered.Name] {
			return nil, recasterr.New(recasterr.ParamInvalid,
				fmt.Sprintf("the new signature declares %q twice", s.rendered.Name))
		}
		names[s.rendered.Name] = true
	}
	return slots, nil
}

// enclosingArgumentList returns the argument_list of the invocation
// whose function expression ends at the referenced name, or nil when
// the reference is not a call.
func enclosingArgumentList(tree *syntax.Tree, offset int) *sitter.Node {
	id := syntax.IdentifierAt(tree.Root(), offset)
	if id == nil {
		return nil
	}
	expr := id
	for {
		parent := expr.Parent()
		if parent == nil {
			return nil
		}
		switch parent.Type() {
		case "generic_name":
			expr = parent
			continue
		case "member_access_expression":
			name := parent.ChildByFieldName("name")
			if name == nil || name.StartByte() != expr.StartByte() {
				return nil
			}
			expr = parent
			continue
		case "invocation_expression":
			fn := parent.ChildByFieldName("function")
			if fn == nil || fn.StartByte() != expr.StartByte() || fn.EndByte() != expr.EndByte() {
				return nil
			}
			return parent.ChildByFieldName("arguments")
		}
		return nil
	}
}

// callArg is one parsed argument of a call site.
type callArg struct {
	text  string // full argument text, including any label and modifier
	expr  string // text with the label stripped
	label string // named-argument label, "" for positional
}

// rewriteArguments renders a call's argument list against the new
// parameter order.
func rewriteArguments(tree *syntax.Tree, argList *sitter.Node, old []semantic.Param, slots []paramSlot) (string, error) {
	var positional []callArg
	named := make(map[string]callArg)
	for _, arg := range syntax.ChildrenOfType(argList, "argument") {
		ca := parseArgument(tree, arg)
		if ca.label == "" {
			positional = append(positional, ca)
			continue
		}
		named[ca.label] = ca
	}

	// extra positional arguments belong to a trailing params array
	if len(positional) > len(old) {
		last := len(old) - 1
		if last < 0 || old[last].Modifier != "params" {
			return tree.Text(argList), nil // not a call of this arity, leave it alone
		}
		lastSlot := -1
		for i, s := range slots {
			if s.origIndex == last {
				lastSlot = i
			}
		}
		if lastSlot >= 0 && lastSlot != len(slots)-1 {
			return "", unsafe("params-array",
				fmt.Sprintf("a params parameter %q must stay last to keep expanded call sites valid", old[last].Name))
		}
	}

	type rendered struct {
		text    string
		omitted bool
		filler  string // declared default used when the slot cannot stay omitted
	}
	outArgs := make([]rendered, 0, len(slots))
	for _, s := range slots {
		if s.origIndex < 0 {
			text := s.fill
			if text == "" {
				text = "default /* TODO: " + s.rendered.Name + " */"
			}
			outArgs = append(outArgs, rendered{text: text})
			continue
		}

		oldParam := old[s.origIndex]
		if a, ok := named[oldParam.Name]; ok {
			label := oldParam.Name
			if s.rendered.Name != oldParam.Name {
				label = s.rendered.Name
			}
			outArgs = append(outArgs, rendered{text: label + ": " + a.expr})
			continue
		}
		if s.origIndex < len(positional) {
			if oldParam.Modifier == "params" && s.origIndex == len(old)-1 && len(positional) > len(old) {
				parts := make([]string, 0, len(positional)-s.origIndex)
				for _, a := range positional[s.origIndex:] {
					parts = append(parts, a.text)
				}
				outArgs = append(outArgs, rendered{text: strings.Join(parts, ", ")})
				continue
			}
			outArgs = append(outArgs, rendered{text: positional[s.origIndex].text})
			continue
		}
		// the call omitted this optional parameter
		outArgs = append(outArgs, rendered{omitted: true, filler: s.rendered.Default})
	}

	// trailing omissions stay omitted; interior ones are filled with the
	// declared default so the call keeps its meaning
	end := len(outArgs)
	for end > 0 && outArgs[end-1].omitted {
		end--
	}
	parts := make([]string, 0, end)
	for _, a := range outArgs[:end] {
		if !a.omitted {
			parts = append(parts, a.text)
			continue
		}
		filler := a.filler
		if filler == "" {
			filler = "default"
		}
		parts = append(parts, filler)
	}
	return "(" + strings.Join(parts, ", ") + ")", nil
}

// parseArgument splits an argument node into label and expression
// text.
func parseArgument(tree *syntax.Tree, arg *sitter.Node) callArg {
	ca := callArg{text: tree.Text(arg), expr: tree.Text(arg)}
	nameColon := syntax.ChildOfType(arg, "name_colon")
	if nameColon == nil {
		return ca
	}
	if int(nameColon.NamedChildCount()) > 0 {
		ca.label = tree.Text(nameColon.NamedChild(0))
	}
	src := tree.Source()
	rest := int(nameColon.EndByte())
	for rest < int(arg.EndByte()) && (src[rest] == ' ' || src[rest] == '\t') {
		rest++
	}
	ca.expr = string(src[rest:arg.EndByte()])
	return ca
}
