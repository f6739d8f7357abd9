package textdiff

import (
	"strings"
	"testing"
)

func TestUnifiedRendersChange(t *testing.T) {
	text, err := Unified(FileChange{
		Path: "Models/Invoice.cs",
		Old:  []byte("class Invoice\n{\n    int Total;\n}\n"),
		New:  []byte("class Receipt\n{\n    int Total;\n}\n"),
	})
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(text, "--- a/Models/Invoice.cs") {
		t.Errorf("missing old header:\n%s", text)
	}
	if !strings.Contains(text, "+++ b/Models/Invoice.cs") {
		t.Errorf("missing new header:\n%s", text)
	}
	if !strings.Contains(text, "-class Invoice") || !strings.Contains(text, "+class Receipt") {
		t.Errorf("missing change lines:\n%s", text)
	}
}

func TestUnifiedIdenticalContent(t *testing.T) {
	text, err := Unified(FileChange{
		Path: "A.cs",
		Old:  []byte("same\n"),
		New:  []byte("same\n"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if text != "" {
		t.Errorf("identical content should render empty, got:\n%s", text)
	}
}

func TestUnifiedCreateAndDelete(t *testing.T) {
	created, err := Unified(FileChange{
		Path: "New.cs",
		New:  []byte("class New { }\n"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(created, "--- /dev/null") {
		t.Errorf("create should diff from /dev/null:\n%s", created)
	}

	deleted, err := Unified(FileChange{
		Path: "Gone.cs",
		Old:  []byte("class Gone { }\n"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(deleted, "+++ /dev/null") {
		t.Errorf("delete should diff to /dev/null:\n%s", deleted)
	}
}

func TestUnifiedAllSortsByPath(t *testing.T) {
	text, err := UnifiedAll([]FileChange{
		{Path: "b.cs", Old: []byte("x\n"), New: []byte("y\n")},
		{Path: "a.cs", Old: []byte("x\n"), New: []byte("y\n")},
	})
	if err != nil {
		t.Fatal(err)
	}
	first := strings.Index(text, "a/a.cs")
	second := strings.Index(text, "a/b.cs")
	if first < 0 || second < 0 || first > second {
		t.Errorf("files not ordered by path:\n%s", text)
	}
}

func TestSummarizeRoundTrip(t *testing.T) {
	text, err := UnifiedAll([]FileChange{
		{
			Path: "Models/Invoice.cs",
			Old:  []byte("one\ntwo\nthree\n"),
			New:  []byte("one\n2\nthree\nfour\n"),
		},
		{
			Path: "New.cs",
			New:  []byte("created\n"),
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	summaries, err := Summarize(text)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 {
		t.Fatalf("summaries = %d, want 2", len(summaries))
	}

	invoice := summaries[0]
	if invoice.Path != "Models/Invoice.cs" {
		t.Errorf("path = %q", invoice.Path)
	}
	// "two" became "2" and "four" was appended
	if invoice.Added != 2 || invoice.Removed != 1 {
		t.Errorf("added=%d removed=%d", invoice.Added, invoice.Removed)
	}
	if invoice.Created || invoice.Deleted {
		t.Errorf("flags = %+v", invoice)
	}

	created := summaries[1]
	if !created.Created || created.Path != "New.cs" {
		t.Errorf("created = %+v", created)
	}
	if created.Added != 1 || created.Removed != 0 {
		t.Errorf("created counts = %+v", created)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	summaries, err := Summarize("")
	if err != nil {
		t.Fatal(err)
	}
	if summaries != nil {
		t.Errorf("got %v", summaries)
	}
}
