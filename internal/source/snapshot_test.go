package source

import (
	"reflect"
	"testing"
)

func snapshotWith(t *testing.T, files map[string]string) *Snapshot {
	t.Helper()
	docs := make([]*Document, 0, len(files))
	for path, content := range files {
		docs = append(docs, NewDocument(path, []byte(content)))
	}
	return NewSnapshot(docs)
}

func TestNewSnapshot(t *testing.T) {
	snap := snapshotWith(t, map[string]string{
		"b/Second.cs": "class Second {}",
		"a/First.cs":  "class First {}",
	})

	if snap.Version() != 1 {
		t.Errorf("Version = %d, want 1", snap.Version())
	}
	if snap.Len() != 2 {
		t.Errorf("Len = %d, want 2", snap.Len())
	}

	// Paths come back sorted for deterministic iteration
	want := []string{"a/First.cs", "b/Second.cs"}
	if !reflect.DeepEqual(snap.Paths(), want) {
		t.Errorf("Paths = %v, want %v", snap.Paths(), want)
	}

	doc := snap.Document("a/First.cs")
	if doc == nil {
		t.Fatal("Document should be present")
	}
	if doc.Text() != "class First {}" {
		t.Errorf("Text = %q", doc.Text())
	}

	if snap.Document("missing.cs") != nil {
		t.Error("Missing document should not be found")
	}
}

func TestWithDocument(t *testing.T) {
	v1 := snapshotWith(t, map[string]string{"A.cs": "class A {}"})

	v2 := v1.WithDocument(NewDocument("A.cs", []byte("class A { int x; }")))

	if v2.Version() != 2 {
		t.Errorf("Version = %d, want 2", v2.Version())
	}

	// New snapshot sees the change
	doc := v2.Document("A.cs")
	if doc.Text() != "class A { int x; }" {
		t.Errorf("v2 content = %q", doc.Text())
	}

	// Parent snapshot is untouched
	orig := v1.Document("A.cs")
	if orig.Text() != "class A {}" {
		t.Errorf("v1 content changed to %q", orig.Text())
	}
	if v1.Version() != 1 {
		t.Errorf("v1 version changed to %d", v1.Version())
	}
}

func TestWithDocumentAddsNew(t *testing.T) {
	v1 := snapshotWith(t, map[string]string{"A.cs": "class A {}"})
	v2 := v1.WithDocument(NewDocument("B.cs", []byte("class B {}")))

	if v2.Len() != 2 {
		t.Errorf("Len = %d, want 2", v2.Len())
	}
	if v1.Len() != 1 {
		t.Errorf("v1 Len = %d, want 1", v1.Len())
	}
}

func TestWithoutDocument(t *testing.T) {
	v1 := snapshotWith(t, map[string]string{
		"A.cs": "class A {}",
		"B.cs": "class B {}",
	})

	v2 := v1.WithoutDocument("B.cs")

	if v2.Len() != 1 {
		t.Errorf("Len = %d, want 1", v2.Len())
	}
	if v2.Document("B.cs") != nil {
		t.Error("B.cs should be gone")
	}
	if v1.Document("B.cs") == nil {
		t.Error("Parent should still hold B.cs")
	}
}

func TestDocumentSharing(t *testing.T) {
	v1 := snapshotWith(t, map[string]string{
		"A.cs": "class A {}",
		"B.cs": "class B {}",
	})

	v2 := v1.WithDocument(NewDocument("A.cs", []byte("class A2 {}")))

	// Untouched documents are shared by pointer, not copied
	b1 := v1.Document("B.cs")
	b2 := v2.Document("B.cs")
	if b1 != b2 {
		t.Error("Untouched document should be shared between snapshots")
	}

	a1 := v1.Document("A.cs")
	a2 := v2.Document("A.cs")
	if a1 == a2 {
		t.Error("Replaced document should differ between snapshots")
	}
}

func TestDerive(t *testing.T) {
	v1 := snapshotWith(t, map[string]string{
		"A.cs": "class A {}",
		"B.cs": "class B {}",
	})

	v2 := v1.Derive(
		[]*Document{
			NewDocument("A.cs", []byte("class A { void M() {} }")),
			NewDocument("C.cs", []byte("class C {}")),
		},
		[]string{"B.cs"},
	)

	if v2.Version() != 2 {
		t.Errorf("Version = %d, want 2", v2.Version())
	}
	want := []string{"A.cs", "C.cs"}
	if !reflect.DeepEqual(v2.Paths(), want) {
		t.Errorf("Paths = %v, want %v", v2.Paths(), want)
	}

	// One derivation bumps the version exactly once
	if v1.Version() != 1 {
		t.Errorf("v1 version = %d, want 1", v1.Version())
	}
}

func TestVersionChain(t *testing.T) {
	snap := snapshotWith(t, map[string]string{"A.cs": "class A {}"})

	for i := 0; i < 5; i++ {
		snap = snap.WithDocument(NewDocument("A.cs", []byte("class A {}")))
	}

	if snap.Version() != 6 {
		t.Errorf("Version = %d, want 6", snap.Version())
	}
}
