// Package syntax wraps tree-sitter parsing of C# documents. It exposes the
// raw syntax nodes plus the small set of accessors the rest of the engine
// needs; all higher-level meaning lives in internal/semantic.
package syntax

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"

	"recast/internal/source"
)

// Parser wraps a tree-sitter parser configured for C#.
// A Parser is not safe for concurrent use; create one per goroutine.
type Parser struct {
	parser *sitter.Parser
}

// NewParser creates a new C# parser.
func NewParser() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(csharp.GetLanguage())
	return &Parser{parser: p}
}

// Parse parses document content and returns the syntax tree.
func (p *Parser) Parse(ctx context.Context, content []byte) (*Tree, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return &Tree{tree: tree, source: content}, nil
}

// ParseDocument parses a snapshot document.
func (p *Parser) ParseDocument(ctx context.Context, doc *source.Document) (*Tree, error) {
	return p.Parse(ctx, doc.Content)
}

// Tree is a parsed document. It keeps the source alongside the nodes so
// callers can slice node text without carrying the content separately.
type Tree struct {
	tree   *sitter.Tree
	source []byte
}

// Root returns the compilation unit node.
func (t *Tree) Root() *sitter.Node {
	return t.tree.RootNode()
}

// Source returns the content the tree was parsed from.
func (t *Tree) Source() []byte {
	return t.source
}

// Text returns the source text covered by a node.
func (t *Tree) Text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(t.source[n.StartByte():n.EndByte()])
}

// HasErrors reports whether the tree contains parse errors.
func (t *Tree) HasErrors() bool {
	return t.tree.RootNode().HasError()
}
