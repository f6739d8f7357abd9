package engine

import (
	"context"
	"fmt"
	"strings"

	recasterr "recast/internal/errors"
	"recast/internal/operation"
	"recast/internal/semantic"
	"recast/internal/transform"
)

// RenameParams select a declaration and the name it should get.
type RenameParams struct {
	Target  semantic.Selector `json:"target"`
	NewName string            `json:"newName"`
	Preview bool              `json:"preview,omitempty"`
}

// Rename renames a declaration and rewrites every reference.
func (e *Engine) Rename(ctx context.Context, p RenameParams) *operation.Result {
	op := operation.New(operation.KindRename, p.Preview)
	m := e.Model()

	var refs *semantic.ReferenceSet
	res := operation.NewPipeline(op, snapOf(m), e.logger).
		Validate(func(context.Context) error {
			if m == nil {
				return errNotLoaded()
			}
			if strings.TrimSpace(p.Target.Name) == "" {
				return recasterr.New(recasterr.ParamInvalid, "rename requires a symbol name")
			}
			if strings.TrimSpace(p.NewName) == "" {
				return recasterr.New(recasterr.ParamInvalid, "rename requires a new name")
			}
			return nil
		}).
		Resolve(func(ctx context.Context) error {
			sym, err := resolveOne(m, p.Target)
			if err != nil {
				return err
			}
			refs, err = e.findReferences(ctx, m, sym)
			return err
		}).
		Compute(func(ctx context.Context) (*operation.Outcome, error) {
			return transform.Rename(ctx, m, refs, p.NewName)
		}).
		Commit(e.commitStage(m)).
		Run(ctx)

	e.record(p.Target.Name, res)
	return res
}

// InlineParams locate a local variable by document, name, and an
// optional disambiguating line.
type InlineParams struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Line    int    `json:"line,omitempty"`
	Preview bool   `json:"preview,omitempty"`
}

// Inline replaces every use of a local variable with its initializer
// and removes the declaration.
func (e *Engine) Inline(ctx context.Context, p InlineParams) *operation.Result {
	op := operation.New(operation.KindInline, p.Preview)
	m := e.Model()

	res := operation.NewPipeline(op, snapOf(m), e.logger).
		Validate(func(context.Context) error {
			if m == nil {
				return errNotLoaded()
			}
			if p.Path == "" || strings.TrimSpace(p.Name) == "" {
				return recasterr.New(recasterr.ParamInvalid, "inline requires a document path and a variable name")
			}
			return nil
		}).
		Resolve(func(context.Context) error {
			return documentInSnapshot(m, p.Path)
		}).
		Compute(func(ctx context.Context) (*operation.Outcome, error) {
			return transform.Inline(ctx, m, p.Path, p.Name, p.Line)
		}).
		Commit(e.commitStage(m)).
		Run(ctx)

	e.record(p.Name, res)
	return res
}

// EncapsulateParams select a field and optionally the property name to
// generate for it.
type EncapsulateParams struct {
	Target       semantic.Selector `json:"target"`
	PropertyName string            `json:"propertyName,omitempty"`
	Preview      bool              `json:"preview,omitempty"`
}

// Encapsulate turns a field into a property, rewriting external
// references to go through the accessor.
func (e *Engine) Encapsulate(ctx context.Context, p EncapsulateParams) *operation.Result {
	op := operation.New(operation.KindEncapsulate, p.Preview)
	m := e.Model()

	var refs *semantic.ReferenceSet
	res := operation.NewPipeline(op, snapOf(m), e.logger).
		Validate(func(context.Context) error {
			if m == nil {
				return errNotLoaded()
			}
			if strings.TrimSpace(p.Target.Name) == "" {
				return recasterr.New(recasterr.ParamInvalid, "encapsulate requires a field name")
			}
			return nil
		}).
		Resolve(func(ctx context.Context) error {
			sym, err := resolveOne(m, p.Target)
			if err != nil {
				return err
			}
			refs, err = e.findReferences(ctx, m, sym)
			return err
		}).
		Compute(func(ctx context.Context) (*operation.Outcome, error) {
			return transform.Encapsulate(ctx, m, refs, p.PropertyName)
		}).
		Commit(e.commitStage(m)).
		Run(ctx)

	e.record(p.Target.Name, res)
	return res
}

// SignatureParams select a method and the parameter changes to apply.
type SignatureParams struct {
	Target  semantic.Selector       `json:"target"`
	Changes []transform.ParamChange `json:"changes"`
	Preview bool                    `json:"preview,omitempty"`
}

// ChangeSignature rewrites a method's parameter list and every call
// site.
func (e *Engine) ChangeSignature(ctx context.Context, p SignatureParams) *operation.Result {
	op := operation.New(operation.KindSignature, p.Preview)
	m := e.Model()

	var refs *semantic.ReferenceSet
	res := operation.NewPipeline(op, snapOf(m), e.logger).
		Validate(func(context.Context) error {
			if m == nil {
				return errNotLoaded()
			}
			if strings.TrimSpace(p.Target.Name) == "" {
				return recasterr.New(recasterr.ParamInvalid, "change-signature requires a method name")
			}
			if len(p.Changes) == 0 {
				return recasterr.New(recasterr.ParamInvalid, "change-signature requires at least one parameter change")
			}
			for i, c := range p.Changes {
				if c.Add && strings.TrimSpace(c.Name) == "" {
					return recasterr.New(recasterr.ParamInvalid,
						fmt.Sprintf("parameter change %d adds a parameter without a name", i))
				}
			}
			return nil
		}).
		Resolve(func(ctx context.Context) error {
			sym, err := resolveOne(m, p.Target)
			if err != nil {
				return err
			}
			refs, err = e.findReferences(ctx, m, sym)
			return err
		}).
		Compute(func(ctx context.Context) (*operation.Outcome, error) {
			return transform.ChangeSignature(ctx, m, refs, p.Changes)
		}).
		Commit(e.commitStage(m)).
		Run(ctx)

	e.record(p.Target.Name, res)
	return res
}

// MoveTypeParams select a type and where it should live.
type MoveTypeParams struct {
	Target          semantic.Selector `json:"target"`
	TargetPath      string            `json:"targetPath"`
	TargetNamespace string            `json:"targetNamespace,omitempty"`
	Preview         bool              `json:"preview,omitempty"`
}

// MoveType relocates a type declaration to another file, optionally
// into another namespace.
func (e *Engine) MoveType(ctx context.Context, p MoveTypeParams) *operation.Result {
	op := operation.New(operation.KindMoveType, p.Preview)
	m := e.Model()

	var refs *semantic.ReferenceSet
	res := operation.NewPipeline(op, snapOf(m), e.logger).
		Validate(func(context.Context) error {
			if m == nil {
				return errNotLoaded()
			}
			if strings.TrimSpace(p.Target.Name) == "" {
				return recasterr.New(recasterr.ParamInvalid, "move-type requires a type name")
			}
			if p.TargetPath == "" {
				return recasterr.New(recasterr.ParamInvalid, "move-type requires a target path")
			}
			return nil
		}).
		Resolve(func(ctx context.Context) error {
			sym, err := resolveOne(m, p.Target)
			if err != nil {
				return err
			}
			refs, err = e.findReferences(ctx, m, sym)
			return err
		}).
		Compute(func(ctx context.Context) (*operation.Outcome, error) {
			return transform.MoveType(ctx, m, refs, p.TargetPath, p.TargetNamespace)
		}).
		Commit(e.commitStage(m)).
		Run(ctx)

	e.record(p.Target.Name, res)
	return res
}

// StubsParams select the class to complete and optionally one
// interface to stub.
type StubsParams struct {
	Target    semantic.Selector `json:"target"`
	Interface string            `json:"interface,omitempty"`
	Preview   bool              `json:"preview,omitempty"`
}

// Stubs generates member stubs for unimplemented interface members.
func (e *Engine) Stubs(ctx context.Context, p StubsParams) *operation.Result {
	op := operation.New(operation.KindStubs, p.Preview)
	m := e.Model()

	var refs *semantic.ReferenceSet
	res := operation.NewPipeline(op, snapOf(m), e.logger).
		Validate(func(context.Context) error {
			if m == nil {
				return errNotLoaded()
			}
			if strings.TrimSpace(p.Target.Name) == "" {
				return recasterr.New(recasterr.ParamInvalid, "stubs requires a class name")
			}
			return nil
		}).
		Resolve(func(ctx context.Context) error {
			sym, err := resolveOne(m, p.Target)
			if err != nil {
				return err
			}
			refs, err = e.findReferences(ctx, m, sym)
			return err
		}).
		Compute(func(ctx context.Context) (*operation.Outcome, error) {
			return transform.Stubs(ctx, m, refs, p.Interface)
		}).
		Commit(e.commitStage(m)).
		Run(ctx)

	e.record(p.Target.Name, res)
	return res
}

// DirectivesMode selects which using-directive cleanup runs.
type DirectivesMode string

const (
	DirectivesOrganize     DirectivesMode = "organize"
	DirectivesAddMissing   DirectivesMode = "add-missing"
	DirectivesRemoveUnused DirectivesMode = "remove-unused"
)

// DirectivesParams name the document and the cleanup mode.
type DirectivesParams struct {
	Path    string         `json:"path"`
	Mode    DirectivesMode `json:"mode"`
	Preview bool           `json:"preview,omitempty"`
}

// Directives reorganizes, completes, or prunes a document's using
// directives depending on the mode.
func (e *Engine) Directives(ctx context.Context, p DirectivesParams) *operation.Result {
	op := operation.New(operation.KindDirectives, p.Preview)
	m := e.Model()

	res := operation.NewPipeline(op, snapOf(m), e.logger).
		Validate(func(context.Context) error {
			if m == nil {
				return errNotLoaded()
			}
			if p.Path == "" {
				return recasterr.New(recasterr.ParamInvalid, "directives requires a document path")
			}
			switch p.Mode {
			case DirectivesOrganize, DirectivesAddMissing, DirectivesRemoveUnused:
				return nil
			}
			return recasterr.New(recasterr.ParamInvalid,
				fmt.Sprintf("unknown directives mode %q; use organize, add-missing, or remove-unused", p.Mode))
		}).
		Resolve(func(context.Context) error {
			return documentInSnapshot(m, p.Path)
		}).
		Compute(func(ctx context.Context) (*operation.Outcome, error) {
			switch p.Mode {
			case DirectivesAddMissing:
				return transform.AddMissingUsings(ctx, m, p.Path)
			case DirectivesRemoveUnused:
				return transform.RemoveUnusedUsings(ctx, m, p.Path)
			default:
				return transform.OrganizeUsings(ctx, m, p.Path)
			}
		}).
		Commit(e.commitStage(m)).
		Run(ctx)

	e.record(p.Path, res)
	return res
}

// FormatParams name the document to normalize.
type FormatParams struct {
	Path    string `json:"path"`
	Preview bool   `json:"preview,omitempty"`
}

// Format normalizes a document's whitespace.
func (e *Engine) Format(ctx context.Context, p FormatParams) *operation.Result {
	op := operation.New(operation.KindFormat, p.Preview)
	m := e.Model()

	res := operation.NewPipeline(op, snapOf(m), e.logger).
		Validate(func(context.Context) error {
			if m == nil {
				return errNotLoaded()
			}
			if p.Path == "" {
				return recasterr.New(recasterr.ParamInvalid, "format requires a document path")
			}
			return nil
		}).
		Resolve(func(context.Context) error {
			return documentInSnapshot(m, p.Path)
		}).
		Compute(func(ctx context.Context) (*operation.Outcome, error) {
			return transform.Format(ctx, m, p.Path, transform.Style{
				IndentWidth:   e.cfg.Transforms.IndentWidth,
				MaxBlankLines: e.cfg.Transforms.MaxBlankLines,
			})
		}).
		Commit(e.commitStage(m)).
		Run(ctx)

	e.record(p.Path, res)
	return res
}

func documentInSnapshot(m *semantic.Model, path string) error {
	if m.Snapshot().Document(path) == nil {
		return recasterr.New(recasterr.PathInvalid,
			fmt.Sprintf("%s is not part of the workspace", path))
	}
	return nil
}
