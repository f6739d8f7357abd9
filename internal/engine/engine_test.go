package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"recast/internal/config"
	recasterr "recast/internal/errors"
	"recast/internal/logging"
	"recast/internal/operation"
	"recast/internal/semantic"
	"recast/internal/textdiff"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		full := filepath.Join(root, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
}

func testEngine(t *testing.T, files map[string]string) *Engine {
	t.Helper()
	return testEngineWith(t, files, nil)
}

func testEngineWith(t *testing.T, files map[string]string, mutate func(*config.Config)) *Engine {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, files)

	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	eng, err := New(root, cfg, logging.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	if err := eng.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return eng
}

func readWorkspaceFile(t *testing.T, eng *Engine, path string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(eng.Root(), filepath.FromSlash(path)))
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func wantCode(t *testing.T, res *operation.Result, code recasterr.ErrorCode) *recasterr.RecastError {
	t.Helper()
	if res.OK {
		t.Fatalf("operation succeeded, want %s", code)
	}
	coded := recasterr.AsRecastError(res.Err)
	if coded.Code != code {
		t.Fatalf("error code = %s, want %s (message: %s)", coded.Code, code, coded.Message)
	}
	return coded
}

func greeterFiles() map[string]string {
	return map[string]string{
		"App/Greeter.cs": "namespace App\n" +
			"{\n" +
			"    public class Greeter\n" +
			"    {\n" +
			"        public void Greet()\n" +
			"        {\n" +
			"        }\n" +
			"    }\n" +
			"}\n",
		"App/Program.cs": "namespace App\n" +
			"{\n" +
			"    public class Program\n" +
			"    {\n" +
			"        public void Main()\n" +
			"        {\n" +
			"            var g = new Greeter();\n" +
			"            g.Greet();\n" +
			"        }\n" +
			"    }\n" +
			"}\n",
	}
}

func TestRenamePreviewMatchesCommit(t *testing.T) {
	files := greeterFiles()
	eng := testEngine(t, files)
	ctx := context.Background()
	target := semantic.Selector{Name: "Greeter"}

	preview := eng.Rename(ctx, RenameParams{Target: target, NewName: "Welcomer", Preview: true})
	if !preview.OK {
		t.Fatalf("preview failed: %v", preview.Err)
	}
	if preview.State != operation.StateCompleted {
		t.Errorf("preview state = %s, want %s", preview.State, operation.StateCompleted)
	}
	if !preview.Preview {
		t.Error("preview flag not set on result")
	}
	if len(preview.Changes) != 2 {
		t.Fatalf("preview changes = %d, want 2", len(preview.Changes))
	}
	for _, path := range []string{"App/Greeter.cs", "App/Program.cs"} {
		if got := readWorkspaceFile(t, eng, path); got != files[path] {
			t.Errorf("preview modified %s on disk", path)
		}
	}

	commit := eng.Rename(ctx, RenameParams{Target: target, NewName: "Welcomer"})
	if !commit.OK {
		t.Fatalf("commit failed: %v", commit.Err)
	}
	if commit.Summary == nil {
		t.Fatal("commit result has no summary")
	}
	if len(commit.Summary.FilesModified) != 2 {
		t.Errorf("files modified = %v, want both fixture files", commit.Summary.FilesModified)
	}
	if commit.Summary.RefsUpdated != 1 {
		t.Errorf("references updated = %d, want 1", commit.Summary.RefsUpdated)
	}
	if commit.ElapsedMS < 0 {
		t.Errorf("elapsed = %d, want >= 0", commit.ElapsedMS)
	}

	// A preview diff must describe exactly the bytes a commit of the
	// same operation writes.
	for _, pc := range preview.Changes {
		committed := readWorkspaceFile(t, eng, pc.Path)
		want, err := textdiff.Unified(textdiff.FileChange{
			Path: pc.Path,
			Old:  []byte(files[pc.Path]),
			New:  []byte(committed),
		})
		if err != nil {
			t.Fatalf("rendering diff: %v", err)
		}
		if pc.Diff != want {
			t.Errorf("%s: preview diff disagrees with committed bytes\npreview:\n%s\ncommitted:\n%s", pc.Path, pc.Diff, want)
		}
	}

	// The model advances with the commit: the new name resolves, the
	// old one does not.
	if res := eng.Symbol(ctx, semantic.Selector{Name: "Welcomer"}); !res.OK {
		t.Errorf("new name does not resolve after commit: %v", res.Err)
	}
	if res := eng.Symbol(ctx, semantic.Selector{Name: "Greeter"}); res.OK {
		t.Error("old name still resolves after commit")
	}
}

func TestResolveAmbiguousSymbol(t *testing.T) {
	eng := testEngine(t, map[string]string{
		"Dup.cs": "namespace A\n" +
			"{\n" +
			"    public class Dup\n" +
			"    {\n" +
			"    }\n" +
			"}\n" +
			"\n" +
			"namespace B\n" +
			"{\n" +
			"    public class Dup\n" +
			"    {\n" +
			"    }\n" +
			"}\n",
	})
	ctx := context.Background()

	res := eng.Rename(ctx, RenameParams{Target: semantic.Selector{Name: "Dup"}, NewName: "Trip", Preview: true})
	coded := wantCode(t, res, recasterr.SymbolAmbiguous)
	if res.State != operation.StateFailed {
		t.Errorf("state = %s, want %s", res.State, operation.StateFailed)
	}

	details, ok := coded.Details.(map[string]interface{})
	if !ok {
		t.Fatalf("details type = %T, want map", coded.Details)
	}
	candidates, ok := details["candidates"].([]Candidate)
	if !ok {
		t.Fatalf("candidates type = %T", details["candidates"])
	}
	if len(candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(candidates))
	}
	quals := []string{candidates[0].Qualified, candidates[1].Qualified}
	if quals[0] != "A.Dup" || quals[1] != "B.Dup" {
		t.Errorf("candidate order = %v, want [A.Dup B.Dup]", quals)
	}
	if len(coded.Drilldowns) != 2 {
		t.Errorf("drilldowns = %d, want one per candidate", len(coded.Drilldowns))
	}

	// A line inside one declaration's span narrows the match.
	narrowed := eng.Rename(ctx, RenameParams{
		Target:  semantic.Selector{Name: "Dup", Line: 10},
		NewName: "Trip",
		Preview: true,
	})
	if !narrowed.OK {
		t.Fatalf("line-narrowed rename failed: %v", narrowed.Err)
	}
	if len(narrowed.Changes) != 1 {
		t.Fatalf("narrowed changes = %d, want 1", len(narrowed.Changes))
	}
	if !strings.Contains(narrowed.Changes[0].Diff, "public class Trip") {
		t.Errorf("narrowed diff does not rename the second declaration:\n%s", narrowed.Changes[0].Diff)
	}
}

func TestResolveUnknownSymbol(t *testing.T) {
	eng := testEngine(t, greeterFiles())

	res := eng.Symbol(context.Background(), semantic.Selector{Name: "Ghost"})
	wantCode(t, res, recasterr.SymbolNotFound)
	if res.ID == "" {
		t.Error("failed result carries no operation id")
	}
}

func TestSymbolQueryDescribesDeclaration(t *testing.T) {
	eng := testEngine(t, greeterFiles())

	res := eng.Symbol(context.Background(), semantic.Selector{Name: "Greet", Kind: semantic.KindMethod})
	if !res.OK {
		t.Fatalf("symbol query failed: %v", res.Err)
	}
	payload, ok := res.Data.(*SymbolPayload)
	if !ok {
		t.Fatalf("data type = %T, want *SymbolPayload", res.Data)
	}
	sym := payload.Symbol
	if sym == nil {
		t.Fatal("payload carries no symbol")
	}
	if sym.Name != "Greet" || sym.Kind != semantic.KindMethod {
		t.Errorf("symbol = %s %s, want method Greet", sym.Kind, sym.Name)
	}
	if sym.Path != "App/Greeter.cs" {
		t.Errorf("path = %s, want App/Greeter.cs", sym.Path)
	}
	if got := sym.QualifiedName(); got != "App.Greeter.Greet" {
		t.Errorf("qualified = %s, want App.Greeter.Greet", got)
	}
	if payload.Context != "public void Greet()" {
		t.Errorf("context = %q, want the trimmed declaration line", payload.Context)
	}
}

func TestCancelledBeforeStartTouchesNothing(t *testing.T) {
	files := greeterFiles()
	eng := testEngine(t, files)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := eng.Rename(ctx, RenameParams{Target: semantic.Selector{Name: "Greeter"}, NewName: "Welcomer"})
	wantCode(t, res, recasterr.Cancelled)
	if res.State != operation.StateCancelled {
		t.Errorf("state = %s, want %s", res.State, operation.StateCancelled)
	}
	for path, content := range files {
		if got := readWorkspaceFile(t, eng, path); got != content {
			t.Errorf("%s changed on disk after cancellation", path)
		}
	}
}

func TestJournalRecordsOperations(t *testing.T) {
	eng := testEngine(t, greeterFiles())
	ctx := context.Background()
	if eng.Journal() == nil {
		t.Fatal("journal not open with history enabled")
	}

	committed := eng.Rename(ctx, RenameParams{Target: semantic.Selector{Name: "Greeter"}, NewName: "Welcomer"})
	if !committed.OK {
		t.Fatalf("rename failed: %v", committed.Err)
	}
	failed := eng.Rename(ctx, RenameParams{Target: semantic.Selector{Name: "Ghost"}, NewName: "Spirit"})
	if failed.OK {
		t.Fatal("rename of unknown symbol succeeded")
	}

	entries, err := eng.Journal().List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("journal entries = %d, want 2", len(entries))
	}
	byID := map[string]int{}
	for i, e := range entries {
		byID[e.ID] = i
	}

	ok := entries[byID[committed.ID]]
	if ok.Operation != "rename" || !ok.Succeeded || ok.Preview {
		t.Errorf("committed entry = %+v, want succeeded rename", ok)
	}
	if ok.FilesModified != 2 || ok.RefsUpdated != 1 {
		t.Errorf("committed entry counts = %d files / %d refs, want 2 / 1", ok.FilesModified, ok.RefsUpdated)
	}
	if ok.Target != "Greeter" {
		t.Errorf("committed entry target = %q, want Greeter", ok.Target)
	}

	bad := entries[byID[failed.ID]]
	if bad.Succeeded {
		t.Error("failed rename journaled as success")
	}
	if bad.ErrorCode != string(recasterr.SymbolNotFound) {
		t.Errorf("failed entry code = %q, want %s", bad.ErrorCode, recasterr.SymbolNotFound)
	}
}

func TestRespondEnvelope(t *testing.T) {
	eng := testEngine(t, greeterFiles())
	ctx := context.Background()

	preview := eng.Rename(ctx, RenameParams{Target: semantic.Selector{Name: "Greeter"}, NewName: "Welcomer", Preview: true})
	resp := eng.Respond(preview)

	if resp.SchemaVersion != "1.0" {
		t.Errorf("schema version = %q, want 1.0", resp.SchemaVersion)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %s", *resp.Error)
	}
	if resp.Meta == nil || resp.Meta.Operation == nil {
		t.Fatal("missing operation metadata")
	}
	if resp.Meta.Operation.Kind != "rename" || !resp.Meta.Operation.Preview {
		t.Errorf("operation meta = %+v, want preview rename", resp.Meta.Operation)
	}
	if resp.Meta.Operation.State != string(operation.StateCompleted) {
		t.Errorf("operation state = %q, want completed", resp.Meta.Operation.State)
	}
	if resp.Meta.Snapshot == nil || resp.Meta.Snapshot.Documents != 2 {
		t.Errorf("snapshot meta = %+v, want 2 documents", resp.Meta.Snapshot)
	}
	changes, ok := resp.Data.([]operation.PendingChange)
	if !ok {
		t.Fatalf("data type = %T, want pending changes", resp.Data)
	}
	if len(changes) != 2 {
		t.Errorf("data changes = %d, want 2", len(changes))
	}
}

func TestRespondSurfacesDrilldowns(t *testing.T) {
	eng := testEngine(t, map[string]string{
		"A/Dup.cs": "namespace A\n{\n    public class Dup\n    {\n    }\n}\n",
		"B/Dup.cs": "namespace B\n{\n    public class Dup\n    {\n    }\n}\n",
	})

	res := eng.Rename(context.Background(), RenameParams{Target: semantic.Selector{Name: "Dup"}, NewName: "Trip"})
	resp := eng.Respond(res)

	if resp.Error == nil {
		t.Fatal("ambiguous rename produced no envelope error")
	}
	if !strings.Contains(*resp.Error, "SYMBOL_AMBIGUOUS") {
		t.Errorf("error = %q, want the code in the rendered message", *resp.Error)
	}
	if len(resp.SuggestedNextCalls) != 2 {
		t.Fatalf("suggested calls = %d, want one per candidate", len(resp.SuggestedNextCalls))
	}
	for _, call := range resp.SuggestedNextCalls {
		if call.Tool != "symbol" {
			t.Errorf("suggested tool = %q, want symbol", call.Tool)
		}
		if call.Params["path"] == nil || call.Params["line"] == nil {
			t.Errorf("suggested call %+v lacks narrowing params", call.Params)
		}
	}
}

func TestRefsPartitionAndConfidence(t *testing.T) {
	files := map[string]string{
		"Core/Counter.cs": "namespace Core\n" +
			"{\n" +
			"    public class Counter\n" +
			"    {\n" +
			"        public int total;\n" +
			"\n" +
			"        public void Bump()\n" +
			"        {\n" +
			"            total = total + 1;\n" +
			"        }\n" +
			"    }\n" +
			"}\n",
		"Core/Report.cs": "namespace Core\n" +
			"{\n" +
			"    public class Report\n" +
			"    {\n" +
			"        public int Render()\n" +
			"        {\n" +
			"            var c = new Counter();\n" +
			"            c.Bump();\n" +
			"            return c.total;\n" +
			"        }\n" +
			"    }\n" +
			"}\n",
	}
	eng := testEngine(t, files)

	res := eng.Refs(context.Background(), semantic.Selector{Name: "total"})
	if !res.OK {
		t.Fatalf("refs failed: %v", res.Err)
	}
	payload, ok := res.Data.(*RefsPayload)
	if !ok {
		t.Fatalf("data type = %T", res.Data)
	}

	if payload.Symbol == nil || payload.Symbol.Qualified != "Core.Counter.total" {
		t.Errorf("symbol = %+v, want Core.Counter.total", payload.Symbol)
	}
	if payload.Total != 4 {
		t.Errorf("total = %d, want declaration plus three usages", payload.Total)
	}
	if payload.Internal != 3 || payload.External != 1 {
		t.Errorf("partition = %d internal / %d external, want 3 / 1", payload.Internal, payload.External)
	}
	if payload.Exact != 4 || payload.Heuristic != 0 {
		t.Errorf("resolution = %d exact / %d heuristic, want 4 / 0", payload.Exact, payload.Heuristic)
	}
	if payload.Truncated || payload.Shown != 4 {
		t.Errorf("shown = %d truncated = %v, want full listing", payload.Shown, payload.Truncated)
	}
	if len(payload.Files) != 2 {
		t.Errorf("files = %d, want 2", len(payload.Files))
	}

	resp := eng.Respond(res)
	if resp.Meta == nil || resp.Meta.Confidence == nil {
		t.Fatal("missing confidence metadata")
	}
	if resp.Meta.Confidence.Tier != "high" || resp.Meta.Confidence.Score != 1.0 {
		t.Errorf("confidence = %+v, want high at 1.0", resp.Meta.Confidence)
	}
}

func TestRefsTruncatesAtConfiguredLimit(t *testing.T) {
	files := map[string]string{
		"Core/Counter.cs": "namespace Core\n" +
			"{\n" +
			"    public class Counter\n" +
			"    {\n" +
			"        public int total;\n" +
			"\n" +
			"        public void Bump()\n" +
			"        {\n" +
			"            total = total + 1;\n" +
			"        }\n" +
			"    }\n" +
			"}\n",
		"Core/Report.cs": "namespace Core\n" +
			"{\n" +
			"    public class Report\n" +
			"    {\n" +
			"        public int Render()\n" +
			"        {\n" +
			"            var c = new Counter();\n" +
			"            return c.total;\n" +
			"        }\n" +
			"    }\n" +
			"}\n",
	}
	eng := testEngineWith(t, files, func(cfg *config.Config) {
		cfg.Transforms.MaxReferences = 2
	})

	res := eng.Refs(context.Background(), semantic.Selector{Name: "total"})
	if !res.OK {
		t.Fatalf("refs failed: %v", res.Err)
	}
	payload := res.Data.(*RefsPayload)
	if !payload.Truncated {
		t.Fatal("listing not truncated at the configured limit")
	}
	if payload.Shown != 2 || payload.Total != 4 {
		t.Errorf("shown = %d of %d, want 2 of 4", payload.Shown, payload.Total)
	}
	listed := 0
	for _, f := range payload.Files {
		listed += len(f.References)
	}
	if listed != payload.Shown {
		t.Errorf("listed references = %d, want %d", listed, payload.Shown)
	}

	resp := eng.Respond(res)
	if resp.Meta == nil || resp.Meta.Truncation == nil || !resp.Meta.Truncation.IsTruncated {
		t.Fatal("truncation missing from envelope metadata")
	}
	if resp.Meta.Truncation.Reason != "max-references" {
		t.Errorf("truncation reason = %q", resp.Meta.Truncation.Reason)
	}

	// The same ceiling hard-stops mutating operations instead of
	// silently rewriting a subset.
	renamed := eng.Rename(context.Background(), RenameParams{Target: semantic.Selector{Name: "total"}, NewName: "count"})
	coded := wantCode(t, renamed, recasterr.UnsafeTransform)
	details, ok := coded.Details.(map[string]interface{})
	if !ok || details["reason"] != "reference-limit" {
		t.Errorf("details = %#v, want reference-limit reason", coded.Details)
	}
}

func TestStatusReportsNamespaceIssues(t *testing.T) {
	eng := testEngine(t, map[string]string{
		"recast.toml": "version = 1\n" +
			"\n" +
			"[[root]]\n" +
			"name = \"app\"\n" +
			"path = \"src\"\n" +
			"namespace = \"Acme\"\n",
		"src/Good.cs": "namespace Acme\n{\n    public class Good\n    {\n    }\n}\n",
		"src/Sub.cs":  "namespace Acme.Billing\n{\n    public class Sub\n    {\n    }\n}\n",
		"src/Bad.cs":  "namespace Wrong\n{\n    public class Bad\n    {\n    }\n}\n",
	})

	res := eng.Status(context.Background())
	if !res.OK {
		t.Fatalf("status failed: %v", res.Err)
	}
	payload, ok := res.Data.(*StatusPayload)
	if !ok {
		t.Fatalf("data type = %T", res.Data)
	}

	if payload.Root != eng.Root() {
		t.Errorf("root = %q, want %q", payload.Root, eng.Root())
	}
	if payload.Stats.Documents != 3 {
		t.Errorf("documents = %d, want 3", payload.Stats.Documents)
	}
	if payload.Stats.Types != 3 {
		t.Errorf("types = %d, want 3", payload.Stats.Types)
	}
	if len(payload.ParseErrors) != 0 {
		t.Errorf("parse errors = %v, want none", payload.ParseErrors)
	}
	if len(payload.NamespaceIssues) != 1 {
		t.Fatalf("namespace issues = %+v, want exactly the mismatched file", payload.NamespaceIssues)
	}
	issue := payload.NamespaceIssues[0]
	if issue.Path != "src/Bad.cs" || issue.Declared != "Wrong" || issue.Expected != "Acme" {
		t.Errorf("issue = %+v", issue)
	}
}

func TestExportWritesIndex(t *testing.T) {
	eng := testEngine(t, greeterFiles())

	out := filepath.Join(t.TempDir(), "workspace.scip")
	res := eng.Export(context.Background(), out)
	if !res.OK {
		t.Fatalf("export failed: %v", res.Err)
	}
	if res.Kind != operation.KindExport {
		t.Errorf("kind = %s, want export", res.Kind)
	}

	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("index not written: %v", err)
	}
	if info.Size() == 0 {
		t.Error("index file is empty")
	}
}

func TestReloadRefreshesModel(t *testing.T) {
	eng := testEngine(t, greeterFiles())
	ctx := context.Background()

	eng.MarkStale()
	path := filepath.Join(eng.Root(), "App", "Farewell.cs")
	content := "namespace App\n{\n    public class Farewell\n    {\n    }\n}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := eng.Reload(ctx, []string{"App/Farewell.cs"}); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if res := eng.Symbol(ctx, semantic.Selector{Name: "Farewell"}); !res.OK {
		t.Fatalf("new type not visible after reload: %v", res.Err)
	}
	resp := eng.Respond(eng.Status(ctx))
	if resp.Meta.Snapshot.Stale {
		t.Error("snapshot still marked stale after reload")
	}
	if resp.Meta.Snapshot.Documents != 3 {
		t.Errorf("documents = %d, want 3", resp.Meta.Snapshot.Documents)
	}
}
