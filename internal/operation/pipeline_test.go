package operation

import (
	"context"
	"errors"
	"strings"
	"testing"

	recasterr "recast/internal/errors"
	"recast/internal/logging"
	"recast/internal/source"
	"recast/internal/textdiff"
)

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}

func pipelineSnapshot() *source.Snapshot {
	return source.NewSnapshot([]*source.Document{
		source.NewDocument("src/A.cs", []byte("class Alpha { }\n")),
	})
}

func renameOutcome() ComputeFunc {
	return func(ctx context.Context) (*Outcome, error) {
		out := NewOutcome()
		out.AddEdit("src/A.cs", textdiff.Replace(source.Span{Start: 6, End: 11}, "Omega"))
		out.RefsUpdated = 2
		out.Description = "rename Alpha to Omega"
		return out, nil
	}
}

// recordingCommit captures the changes handed to the commit stage.
type recordingCommit struct {
	called  bool
	changes []Change
	err     error
}

func (rc *recordingCommit) fn(ctx context.Context, changes []Change) (*Summary, error) {
	rc.called = true
	rc.changes = changes
	if rc.err != nil {
		return nil, rc.err
	}
	summary := &Summary{}
	for _, c := range changes {
		switch c.Kind {
		case ChangeCreate:
			summary.FilesCreated = append(summary.FilesCreated, c.Path)
		case ChangeDelete:
			summary.FilesDeleted = append(summary.FilesDeleted, c.Path)
		default:
			summary.FilesModified = append(summary.FilesModified, c.Path)
		}
	}
	return summary, nil
}

func TestPipelineCommitPath(t *testing.T) {
	op := New(KindRename, false)
	commit := &recordingCommit{}

	var visited []State
	record := func(ctx context.Context) error {
		visited = append(visited, op.State)
		return nil
	}

	res := NewPipeline(op, pipelineSnapshot(), logging.Nop()).
		Validate(record).
		Resolve(record).
		Compute(renameOutcome()).
		Commit(commit.fn).
		Run(context.Background())

	if !res.OK {
		t.Fatalf("Run() failed: %v", res.Err)
	}
	if res.State != StateCompleted {
		t.Errorf("State = %v, want %v", res.State, StateCompleted)
	}
	if res.ID != op.ID {
		t.Errorf("ID = %q, want %q", res.ID, op.ID)
	}

	if len(visited) != 2 || visited[0] != StateValidating || visited[1] != StateResolving {
		t.Errorf("stage order = %v", visited)
	}
	if !commit.called {
		t.Fatal("commit stage should run")
	}
	if len(commit.changes) != 1 || commit.changes[0].Path != "src/A.cs" {
		t.Fatalf("commit changes = %v", commit.changes)
	}
	if string(commit.changes[0].New) != "class Omega { }\n" {
		t.Errorf("committed bytes = %q", commit.changes[0].New)
	}

	if res.Summary == nil {
		t.Fatal("Summary should be set on commit")
	}
	if res.Summary.RefsUpdated != 2 {
		t.Errorf("RefsUpdated = %d, want 2", res.Summary.RefsUpdated)
	}
	if len(res.Summary.FilesModified) != 1 {
		t.Errorf("FilesModified = %v", res.Summary.FilesModified)
	}
	if res.Changes != nil {
		t.Error("commit result should not carry pending changes")
	}
	if res.Elapsed < 0 {
		t.Errorf("Elapsed = %v", res.Elapsed)
	}
}

func TestPipelinePreviewPath(t *testing.T) {
	op := New(KindRename, true)
	commit := &recordingCommit{}

	res := NewPipeline(op, pipelineSnapshot(), logging.Nop()).
		Compute(renameOutcome()).
		Commit(commit.fn).
		Run(context.Background())

	if !res.OK {
		t.Fatalf("Run() failed: %v", res.Err)
	}
	if res.State != StateCompleted {
		t.Errorf("State = %v, want %v", res.State, StateCompleted)
	}
	if commit.called {
		t.Error("preview must never reach the commit stage")
	}
	if len(res.Changes) != 1 {
		t.Fatalf("len(Changes) = %d, want 1", len(res.Changes))
	}
	if !containsAll(res.Changes[0].Diff, "-class Alpha { }", "+class Omega { }") {
		t.Errorf("preview diff:\n%s", res.Changes[0].Diff)
	}
	if res.Summary != nil {
		t.Error("preview result should not carry a commit summary")
	}
}

func TestPipelinePreviewCommitEquivalence(t *testing.T) {
	snap := pipelineSnapshot()

	preview := NewPipeline(New(KindRename, true), snap, logging.Nop()).
		Compute(renameOutcome()).
		Run(context.Background())
	if !preview.OK {
		t.Fatalf("preview failed: %v", preview.Err)
	}

	commit := &recordingCommit{}
	applied := NewPipeline(New(KindRename, false), snap, logging.Nop()).
		Compute(renameOutcome()).
		Commit(commit.fn).
		Run(context.Background())
	if !applied.OK {
		t.Fatalf("commit failed: %v", applied.Err)
	}

	// The diff promised by preview equals the diff of the bytes commit
	// actually received.
	committed, err := textdiff.Unified(commit.changes[0].FileChange)
	if err != nil {
		t.Fatalf("Unified() error = %v", err)
	}
	if preview.Changes[0].Diff != committed {
		t.Errorf("preview and commit disagree:\npreview:\n%s\ncommit:\n%s",
			preview.Changes[0].Diff, committed)
	}
}

func TestPipelineQueryPath(t *testing.T) {
	op := New(KindRefs, false)

	res := NewPipeline(op, nil, logging.Nop()).
		Query(func(ctx context.Context) (interface{}, error) {
			return map[string]int{"references": 4}, nil
		}).
		Run(context.Background())

	if !res.OK {
		t.Fatalf("Run() failed: %v", res.Err)
	}
	if res.State != StateCompleted {
		t.Errorf("State = %v, want %v", res.State, StateCompleted)
	}
	data, ok := res.Data.(map[string]int)
	if !ok || data["references"] != 4 {
		t.Errorf("Data = %v", res.Data)
	}
	if res.Summary != nil || res.Changes != nil {
		t.Error("query result should carry only data")
	}
}

func TestPipelineDomainErrorKeepsCode(t *testing.T) {
	op := New(KindRename, false)

	res := NewPipeline(op, pipelineSnapshot(), logging.Nop()).
		Validate(func(ctx context.Context) error {
			return recasterr.New(recasterr.ParamInvalid, "newName is required")
		}).
		Run(context.Background())

	if res.OK {
		t.Fatal("Run() should fail")
	}
	if res.State != StateFailed {
		t.Errorf("State = %v, want %v", res.State, StateFailed)
	}
	if recasterr.CodeOf(res.Err) != recasterr.ParamInvalid {
		t.Errorf("code = %v, want %v", recasterr.CodeOf(res.Err), recasterr.ParamInvalid)
	}
	if op.Error == "" {
		t.Error("operation should record the error")
	}
}

func TestPipelineUnexpectedErrorWrapsInternal(t *testing.T) {
	op := New(KindRefs, false)

	res := NewPipeline(op, nil, logging.Nop()).
		Resolve(func(ctx context.Context) error {
			return errors.New("boom")
		}).
		Query(func(ctx context.Context) (interface{}, error) {
			t.Fatal("query should not run after resolve failure")
			return nil, nil
		}).
		Run(context.Background())

	if res.OK {
		t.Fatal("Run() should fail")
	}
	if recasterr.CodeOf(res.Err) != recasterr.InternalError {
		t.Errorf("code = %v, want %v", recasterr.CodeOf(res.Err), recasterr.InternalError)
	}
}

func TestPipelinePanicBecomesInternalError(t *testing.T) {
	op := New(KindRename, false)

	res := NewPipeline(op, pipelineSnapshot(), logging.Nop()).
		Compute(func(ctx context.Context) (*Outcome, error) {
			panic("unexpected nil node")
		}).
		Commit((&recordingCommit{}).fn).
		Run(context.Background())

	if res.OK {
		t.Fatal("Run() should fail")
	}
	if res.State != StateFailed {
		t.Errorf("State = %v, want %v", res.State, StateFailed)
	}
	if recasterr.CodeOf(res.Err) != recasterr.InternalError {
		t.Errorf("code = %v, want %v", recasterr.CodeOf(res.Err), recasterr.InternalError)
	}
	if !strings.Contains(res.Err.Error(), "panic") {
		t.Errorf("error should mention panic: %v", res.Err)
	}
}

func TestPipelineCancellationBetweenStages(t *testing.T) {
	op := New(KindRename, false)
	ctx, cancel := context.WithCancel(context.Background())
	commit := &recordingCommit{}

	computeRan := false
	res := NewPipeline(op, pipelineSnapshot(), logging.Nop()).
		Resolve(func(ctx context.Context) error {
			cancel()
			return nil
		}).
		Compute(func(ctx context.Context) (*Outcome, error) {
			computeRan = true
			return NewOutcome(), nil
		}).
		Commit(commit.fn).
		Run(ctx)

	if res.OK {
		t.Fatal("Run() should not succeed after cancellation")
	}
	if res.State != StateCancelled {
		t.Errorf("State = %v, want %v", res.State, StateCancelled)
	}
	if recasterr.CodeOf(res.Err) != recasterr.Cancelled {
		t.Errorf("code = %v, want %v", recasterr.CodeOf(res.Err), recasterr.Cancelled)
	}
	if computeRan {
		t.Error("compute must not run after cancellation")
	}
	if commit.called {
		t.Error("commit must never run after cancellation")
	}
}

func TestPipelineCancellationDuringCompute(t *testing.T) {
	op := New(KindRename, false)
	ctx, cancel := context.WithCancel(context.Background())
	commit := &recordingCommit{}

	res := NewPipeline(op, pipelineSnapshot(), logging.Nop()).
		Compute(func(ctx context.Context) (*Outcome, error) {
			cancel()
			return nil, ctx.Err()
		}).
		Commit(commit.fn).
		Run(ctx)

	if res.State != StateCancelled {
		t.Errorf("State = %v, want %v", res.State, StateCancelled)
	}
	if recasterr.CodeOf(res.Err) != recasterr.Cancelled {
		t.Errorf("code = %v, want %v", recasterr.CodeOf(res.Err), recasterr.Cancelled)
	}
	if commit.called {
		t.Error("commit must never run after cancellation")
	}
}

func TestPipelineCommitFailureSurfaces(t *testing.T) {
	op := New(KindRename, false)
	commit := &recordingCommit{err: recasterr.New(recasterr.CommitFailed, "disk full")}

	res := NewPipeline(op, pipelineSnapshot(), logging.Nop()).
		Compute(renameOutcome()).
		Commit(commit.fn).
		Run(context.Background())

	if res.OK {
		t.Fatal("Run() should fail")
	}
	if recasterr.CodeOf(res.Err) != recasterr.CommitFailed {
		t.Errorf("code = %v, want %v", recasterr.CodeOf(res.Err), recasterr.CommitFailed)
	}
	if res.State != StateFailed {
		t.Errorf("State = %v, want %v", res.State, StateFailed)
	}
}

func TestPipelineEmptyOutcomeCommits(t *testing.T) {
	op := New(KindDirectives, false)
	commit := &recordingCommit{}

	res := NewPipeline(op, pipelineSnapshot(), logging.Nop()).
		Compute(func(ctx context.Context) (*Outcome, error) {
			out := NewOutcome()
			out.Description = "nothing to organize"
			return out, nil
		}).
		Commit(commit.fn).
		Run(context.Background())

	if !res.OK {
		t.Fatalf("Run() failed: %v", res.Err)
	}
	if len(commit.changes) != 0 {
		t.Errorf("commit received %d changes, want 0", len(commit.changes))
	}
	if res.Summary == nil || len(res.Summary.FilesModified) != 0 {
		t.Errorf("Summary = %+v, want empty file lists", res.Summary)
	}
}

func TestPipelineMissingStages(t *testing.T) {
	t.Run("no compute for transform", func(t *testing.T) {
		res := NewPipeline(New(KindRename, false), pipelineSnapshot(), logging.Nop()).
			Run(context.Background())
		if recasterr.CodeOf(res.Err) != recasterr.InternalError {
			t.Errorf("code = %v, want %v", recasterr.CodeOf(res.Err), recasterr.InternalError)
		}
	})

	t.Run("no commit for non-preview", func(t *testing.T) {
		res := NewPipeline(New(KindRename, false), pipelineSnapshot(), logging.Nop()).
			Compute(renameOutcome()).
			Run(context.Background())
		if recasterr.CodeOf(res.Err) != recasterr.InternalError {
			t.Errorf("code = %v, want %v", recasterr.CodeOf(res.Err), recasterr.InternalError)
		}
	})
}
