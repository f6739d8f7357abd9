// Package semantic builds the declaration and reference model on top of the
// syntax layer. It answers two questions for every transformation: which
// declaration does a selector mean, and where is that declaration used.
package semantic

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"recast/internal/source"
)

// SymbolKind classifies a declaration.
type SymbolKind string

const (
	KindNamespace   SymbolKind = "namespace"
	KindClass       SymbolKind = "class"
	KindStruct      SymbolKind = "struct"
	KindInterface   SymbolKind = "interface"
	KindEnum        SymbolKind = "enum"
	KindRecord      SymbolKind = "record"
	KindMethod      SymbolKind = "method"
	KindConstructor SymbolKind = "constructor"
	KindProperty    SymbolKind = "property"
	KindField       SymbolKind = "field"
	KindEnumMember  SymbolKind = "enum-member"
	KindLocal       SymbolKind = "local"
	KindParameter   SymbolKind = "parameter"
)

// IsType reports whether the kind declares a type.
func (k SymbolKind) IsType() bool {
	switch k {
	case KindClass, KindStruct, KindInterface, KindEnum, KindRecord:
		return true
	}
	return false
}

// IsMember reports whether the kind declares a type member.
func (k SymbolKind) IsMember() bool {
	switch k {
	case KindMethod, KindConstructor, KindProperty, KindField, KindEnumMember:
		return true
	}
	return false
}

// Param describes one parameter of a method or constructor.
type Param struct {
	Name     string      `json:"name"`
	TypeText string      `json:"type"`               // full type text as written
	Modifier string      `json:"modifier,omitempty"` // ref, out, in, params
	Default  string      `json:"default,omitempty"`  // default value text
	Span     source.Span `json:"-"`                  // full parameter span
}

// Text renders the parameter the way it appears in a parameter list.
func (p Param) Text() string {
	var b strings.Builder
	if p.Modifier != "" {
		b.WriteString(p.Modifier)
		b.WriteByte(' ')
	}
	b.WriteString(p.TypeText)
	b.WriteByte(' ')
	b.WriteString(p.Name)
	if p.Default != "" {
		b.WriteString(" = ")
		b.WriteString(p.Default)
	}
	return b.String()
}

// Symbol is a declaration in the workspace.
type Symbol struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Kind      SymbolKind `json:"kind"`
	Namespace string     `json:"namespace,omitempty"` // containing namespace
	Container string     `json:"container,omitempty"` // containing type name
	Path      string     `json:"path"`                // declaring document
	Line      int        `json:"line"`                // 1-based start line
	Signature string     `json:"signature,omitempty"`

	Span     source.Span `json:"-"` // full declaration span
	NameSpan source.Span `json:"-"` // identifier span

	Modifiers []string `json:"modifiers,omitempty"`
	TypeText  string   `json:"type,omitempty"` // declared/return type as written
	TypeName  string   `json:"-"`              // base name of TypeText
	Params    []Param  `json:"params,omitempty"`

	// Property shape, meaningful only for KindProperty
	HasGetter bool `json:"-"`
	HasSetter bool `json:"-"`
}

// QualifiedName joins namespace, container, and name.
func (s *Symbol) QualifiedName() string {
	parts := make([]string, 0, 3)
	if s.Namespace != "" {
		parts = append(parts, s.Namespace)
	}
	if s.Container != "" {
		parts = append(parts, s.Container)
	}
	parts = append(parts, s.Name)
	return strings.Join(parts, ".")
}

// QualifiedContainer joins namespace and container.
func (s *Symbol) QualifiedContainer() string {
	if s.Container == "" {
		return s.Namespace
	}
	if s.Namespace == "" {
		return s.Container
	}
	return s.Namespace + "." + s.Container
}

// HasModifier reports whether the declaration carries the modifier.
func (s *Symbol) HasModifier(mod string) bool {
	for _, m := range s.Modifiers {
		if m == mod {
			return true
		}
	}
	return false
}

// IsStatic reports whether the declaration is static.
func (s *Symbol) IsStatic() bool {
	return s.HasModifier("static")
}

// Arity returns the parameter count for methods and constructors.
func (s *Symbol) Arity() int {
	return len(s.Params)
}

// StableID computes a deterministic ID from the symbol's identity
// components. The ID survives edits that do not change what the symbol
// is, which makes it usable as a journal and export key.
func StableID(s *Symbol) string {
	parts := []string{
		"container:" + s.QualifiedContainer(),
		"name:" + s.Name,
		"kind:" + string(s.Kind),
	}
	if s.Kind == KindMethod || s.Kind == KindConstructor {
		parts = append(parts, fmt.Sprintf("arity:%d", s.Arity()))
	}

	sort.Strings(parts)
	canonical := strings.Join(parts, "|")
	hash := sha256.Sum256([]byte(canonical))
	return "recast:sym:" + hex.EncodeToString(hash[:])[:24]
}

// Reference is one occurrence of a symbol in a document.
type Reference struct {
	Path          string      `json:"path"`
	Span          source.Span `json:"-"`
	Line          int         `json:"line"`
	Column        int         `json:"column"`
	Context       string      `json:"context,omitempty"` // trimmed source line
	IsDeclaration bool        `json:"isDeclaration,omitempty"`
	Exact         bool        `json:"-"` // bound via type resolution, not name match
}

// ReferenceSet is the result of a reference query, grouped by document.
type ReferenceSet struct {
	Symbol *Symbol
	ByPath map[string][]Reference

	// Binding statistics for confidence reporting
	Exact     int
	Heuristic int

	// Identifiers that matched by name but could not be bound to any
	// declaration, reported so conservative callers can warn.
	SkippedAmbiguous int
}

// Total returns the total number of references across all documents.
func (r *ReferenceSet) Total() int {
	n := 0
	for _, refs := range r.ByPath {
		n += len(refs)
	}
	return n
}

// Paths returns the documents containing references, sorted.
func (r *ReferenceSet) Paths() []string {
	paths := make([]string, 0, len(r.ByPath))
	for p := range r.ByPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// All returns every reference ordered by path then position.
func (r *ReferenceSet) All() []Reference {
	var out []Reference
	for _, p := range r.Paths() {
		out = append(out, r.ByPath[p]...)
	}
	return out
}
