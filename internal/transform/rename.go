package transform

import (
	"context"
	"fmt"

	recasterr "recast/internal/errors"
	"recast/internal/operation"
	"recast/internal/semantic"
	"recast/internal/textdiff"
)

// Rename renames the resolved declaration and rewrites every bound
// reference, including constructor and destructor names when the target
// is a type. Occurrences the resolver could not bind are left alone and
// surface through the reference set's ambiguity count.
func Rename(ctx context.Context, m *semantic.Model, refs *semantic.ReferenceSet, newName string) (*operation.Outcome, error) {
	sym := refs.Symbol

	if !IsLegalIdentifier(newName) {
		return nil, recasterr.New(recasterr.ParamInvalid,
			fmt.Sprintf("%q is not a legal identifier", newName))
	}
	if newName == sym.Name {
		out := operation.NewOutcome()
		out.Symbol = sym
		out.Description = fmt.Sprintf("%s is already named %s", sym.QualifiedName(), newName)
		return out, nil
	}
	if siblingCollision(m, sym, newName) {
		return nil, unsafe("name-collision",
			fmt.Sprintf("%s already contains a declaration named %q", sym.QualifiedContainer(), newName))
	}

	out := operation.NewOutcome()
	for _, path := range refs.Paths() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, ref := range refs.ByPath[path] {
			out.AddEdit(path, textdiff.Replace(ref.Span, newName))
			if !ref.IsDeclaration {
				out.RefsUpdated++
			}
		}
	}

	renamed := *sym
	renamed.Name = newName
	out.Symbol = &renamed
	out.Description = fmt.Sprintf("rename %s to %s", sym.QualifiedName(), newName)
	return out, nil
}
