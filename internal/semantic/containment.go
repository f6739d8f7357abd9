package semantic

import "recast/internal/source"

// SplitByDeclaringType partitions a reference set into references that
// fall inside the declaring type of the symbol and references outside
// it. Containment is scope containment, not file identity: a reference
// is internal only when its span lies within a declaration span of the
// declaring type, so a second type in the same file classifies as
// external and a partial declaration in another file classifies as
// internal.
func (m *Model) SplitByDeclaringType(refs *ReferenceSet) (internal, external []Reference) {
	decl := m.DeclaringType(refs.Symbol)
	if decl == nil {
		return nil, refs.All()
	}

	type scope struct {
		path string
		span source.Span
	}
	qualified := decl.QualifiedName()
	var scopes []scope
	// the simple-name index keeps every partial declaration
	for _, t := range m.types[decl.Symbol.Name] {
		if t.QualifiedName() != qualified {
			continue
		}
		scopes = append(scopes, scope{t.Symbol.Path, t.Symbol.Span})
	}

	for _, path := range refs.Paths() {
		for _, ref := range refs.ByPath[path] {
			inside := false
			for _, sc := range scopes {
				if sc.path == path && ref.Span.Start >= sc.span.Start && ref.Span.End <= sc.span.End {
					inside = true
					break
				}
			}
			if inside {
				internal = append(internal, ref)
			} else {
				external = append(external, ref)
			}
		}
	}
	return internal, external
}
