package semantic

import (
	"context"
	"testing"

	"recast/internal/logging"
	"recast/internal/source"
)

func buildModel(t *testing.T, files map[string]string) *Model {
	t.Helper()
	analyzer, err := NewAnalyzer(2, logging.Nop())
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	return analyzeWith(t, analyzer, files)
}

func analyzeWith(t *testing.T, analyzer *Analyzer, files map[string]string) *Model {
	t.Helper()
	docs := make([]*source.Document, 0, len(files))
	for path, content := range files {
		docs = append(docs, source.NewDocument(path, []byte(content)))
	}
	model, err := analyzer.Analyze(context.Background(), source.NewSnapshot(docs))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	return model
}

func mustDecl(t *testing.T, m *Model, sel Selector) *Symbol {
	t.Helper()
	syms := m.FindDeclarations(sel)
	if len(syms) != 1 {
		t.Fatalf("FindDeclarations(%+v) returned %d symbols, want 1", sel, len(syms))
	}
	return syms[0]
}

func TestAnalyzeBuildsIndexes(t *testing.T) {
	m := buildModel(t, map[string]string{
		"Models/Invoice.cs": `namespace Billing
{
    public class Invoice
    {
        public int Total { get; set; }
    }
}
`,
		"Models/Status.cs": `namespace Billing
{
    public enum Status { Open, Closed }
}
`,
	})

	stats := m.Stats()
	if stats.Documents != 2 {
		t.Errorf("Documents = %d, want 2", stats.Documents)
	}
	if stats.Types != 2 {
		t.Errorf("Types = %d, want 2", stats.Types)
	}
	// Total, Open, Closed
	if stats.Members != 3 {
		t.Errorf("Members = %d, want 3", stats.Members)
	}
	if stats.ParseErrors != 0 {
		t.Errorf("ParseErrors = %d, want 0", stats.ParseErrors)
	}

	types := m.Types()
	if len(types) != 2 || types[0].QualifiedName() != "Billing.Invoice" || types[1].QualifiedName() != "Billing.Status" {
		t.Errorf("Types() order = %v, %v", types[0].QualifiedName(), types[1].QualifiedName())
	}

	if m.TypeByQualified("Billing.Invoice") == nil {
		t.Error("TypeByQualified should find Billing.Invoice")
	}
	if m.TypeByQualified("Invoice") != nil {
		t.Error("TypeByQualified must not match simple names")
	}
}

func TestAnalyzeTracksParseErrors(t *testing.T) {
	m := buildModel(t, map[string]string{
		"Good.cs": "namespace App { public class Good { } }\n",
		"Bad.cs":  "namespace App { public class Bad { void M( }\n",
	})

	if len(m.ParseErrors()) != 1 || m.ParseErrors()[0] != "Bad.cs" {
		t.Errorf("ParseErrors = %v", m.ParseErrors())
	}
	// broken documents stay in the model
	if m.Document("Bad.cs") == nil {
		t.Error("broken document should still be indexed")
	}
}

func TestAnalyzerCachesByContentHash(t *testing.T) {
	analyzer, err := NewAnalyzer(1, logging.Nop())
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	files := map[string]string{
		"A.cs": "namespace App { public class A { } }\n",
	}

	m1 := analyzeWith(t, analyzer, files)
	m2 := analyzeWith(t, analyzer, files)

	if m1.Document("A.cs") != m2.Document("A.cs") {
		t.Error("unchanged content should reuse the cached extraction")
	}
}

func TestFindDeclarations(t *testing.T) {
	m := buildModel(t, map[string]string{
		"Billing/Invoice.cs": `namespace Billing
{
    public class Invoice
    {
        public int Total { get; set; }
        public void Send() { }
    }
}
`,
		"Archive/Invoice.cs": `namespace Archive
{
    public class Invoice
    {
        public int Total { get; set; }
    }
}
`,
	})

	// simple name matches both namespaces
	if got := m.FindDeclarations(Selector{Name: "Invoice"}); len(got) != 2 {
		t.Errorf("Invoice matches = %d, want 2", len(got))
	}

	// dotted selector narrows to one namespace
	sym := mustDecl(t, m, Selector{Name: "Billing.Invoice"})
	if sym.Path != "Billing/Invoice.cs" {
		t.Errorf("Path = %q", sym.Path)
	}

	// member selection through the containing type
	if got := m.FindDeclarations(Selector{Name: "Invoice.Total"}); len(got) != 2 {
		t.Errorf("Invoice.Total matches = %d, want 2", len(got))
	}
	total := mustDecl(t, m, Selector{Name: "Archive.Invoice.Total"})
	if total.Kind != KindProperty || total.Namespace != "Archive" {
		t.Errorf("Total = %+v", total)
	}

	// kind filter
	if got := m.FindDeclarations(Selector{Name: "Invoice", Kind: KindClass}); len(got) != 2 {
		t.Errorf("kind filter matches = %d, want 2", len(got))
	}
	if got := m.FindDeclarations(Selector{Name: "Invoice", Kind: KindMethod}); len(got) != 0 {
		t.Errorf("method filter matches = %d, want 0", len(got))
	}

	// path filter
	byPath := mustDecl(t, m, Selector{Name: "Invoice", Path: "Archive/Invoice.cs"})
	if byPath.Namespace != "Archive" {
		t.Errorf("path filter got namespace %q", byPath.Namespace)
	}

	// line filter selects the declaration covering that line
	send := mustDecl(t, m, Selector{Name: "Send", Line: 6})
	if send.Kind != KindMethod {
		t.Errorf("Send = %+v", send)
	}
	if got := m.FindDeclarations(Selector{Name: "Send", Line: 2}); len(got) != 0 {
		t.Errorf("line 2 matches = %d, want 0", len(got))
	}

	// no matches for unknown names
	if got := m.FindDeclarations(Selector{Name: "Missing"}); got != nil {
		t.Errorf("Missing = %v", got)
	}
}

func TestFindDeclarationsSorted(t *testing.T) {
	m := buildModel(t, map[string]string{
		"B.cs": "namespace Two { public class Widget { } }\n",
		"A.cs": "namespace One { public class Widget { } }\n",
	})

	got := m.FindDeclarations(Selector{Name: "Widget"})
	if len(got) != 2 {
		t.Fatalf("matches = %d, want 2", len(got))
	}
	if got[0].Path != "A.cs" || got[1].Path != "B.cs" {
		t.Errorf("order = %q, %q", got[0].Path, got[1].Path)
	}
}

func TestResolveTypeName(t *testing.T) {
	m := buildModel(t, map[string]string{
		"Billing/Invoice.cs": `namespace Billing
{
    public class Invoice { }
}
`,
		"Billing/Inner/Receipt.cs": `namespace Billing.Inner
{
    public class Receipt { }
}
`,
		"App/Program.cs": `using Billing;

namespace App
{
    public class Program { }
}
`,
		"Clash/One.cs": `namespace One
{
    public class Widget { }
}
`,
		"Clash/Two.cs": `namespace Two
{
    public class Widget { }
}
`,
		"Clash/User.cs": `using One;
using Two;

namespace Clash
{
    public class User { }
}
`,
	})

	// qualified names resolve from anywhere
	if decl, n := m.ResolveTypeName("Billing.Invoice", nil); n != 1 || decl == nil {
		t.Errorf("qualified resolve: n=%d", n)
	}

	// the namespace chain walks outward
	inner := m.Document("Billing/Inner/Receipt.cs")
	if decl, n := m.ResolveTypeName("Invoice", inner); n != 1 || decl.QualifiedName() != "Billing.Invoice" {
		t.Errorf("outward walk: n=%d decl=%v", n, decl)
	}

	// using directives bring namespaces into scope
	app := m.Document("App/Program.cs")
	if decl, n := m.ResolveTypeName("Invoice", app); n != 1 || decl.QualifiedName() != "Billing.Invoice" {
		t.Errorf("using resolve: n=%d", n)
	}

	// two usings providing the same name is ambiguous
	user := m.Document("Clash/User.cs")
	if decl, n := m.ResolveTypeName("Widget", user); decl != nil || n != 2 {
		t.Errorf("ambiguous resolve: decl=%v n=%d", decl, n)
	}

	// no viewpoint and no qualifier: unique simple names still resolve
	if decl, n := m.ResolveTypeName("Invoice", nil); n != 1 || decl == nil {
		t.Errorf("global resolve: n=%d", n)
	}
	if decl, n := m.ResolveTypeName("Widget", nil); decl != nil || n != 2 {
		t.Errorf("global ambiguous: decl=%v n=%d", decl, n)
	}

	// unknown names resolve to nothing
	if _, n := m.ResolveTypeName("Missing", app); n != 0 {
		t.Errorf("missing resolve: n=%d", n)
	}
}

func TestLookupMemberThroughBaseChain(t *testing.T) {
	m := buildModel(t, map[string]string{
		"Base.cs": `namespace App
{
    public class Document
    {
        public int Version { get; set; }
    }
}
`,
		"Derived.cs": `namespace App
{
    public class Invoice : Document
    {
        public int Total { get; set; }
    }
}
`,
	})

	invoice := m.TypeByQualified("App.Invoice")
	if invoice == nil {
		t.Fatal("App.Invoice not found")
	}

	member, owner := m.lookupMember(invoice, "Total", baseChainLimit)
	if member == nil || owner != invoice {
		t.Fatalf("Total lookup: member=%v owner=%v", member, owner)
	}

	member, owner = m.lookupMember(invoice, "Version", baseChainLimit)
	if member == nil {
		t.Fatal("Version should resolve through the base chain")
	}
	if owner == nil || owner.QualifiedName() != "App.Document" {
		t.Errorf("Version owner = %v", owner)
	}

	if member, _ := m.lookupMember(invoice, "Missing", baseChainLimit); member != nil {
		t.Errorf("Missing lookup = %v", member)
	}
}

func TestDeclaringType(t *testing.T) {
	m := buildModel(t, map[string]string{
		"A.cs": `namespace App
{
    public class Invoice
    {
        public int Total { get; set; }
    }
}
`,
	})

	total := mustDecl(t, m, Selector{Name: "Total"})
	decl := m.DeclaringType(total)
	if decl == nil || decl.QualifiedName() != "App.Invoice" {
		t.Errorf("DeclaringType = %v", decl)
	}

	invoice := mustDecl(t, m, Selector{Name: "Invoice"})
	if m.DeclaringType(invoice) != nil {
		t.Error("types have no declaring type")
	}
}
