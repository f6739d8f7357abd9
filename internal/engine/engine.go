// Package engine wires the workspace loader, the semantic model, the
// transformation algorithms, the persistence adapter and the operation
// journal behind one façade. Every public operation runs through the
// operation pipeline and returns its terminal result; transports wrap
// that result in the response envelope via Respond.
package engine

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"

	"recast/internal/commit"
	"recast/internal/config"
	"recast/internal/envelope"
	recasterr "recast/internal/errors"
	"recast/internal/history"
	"recast/internal/logging"
	"recast/internal/operation"
	"recast/internal/semantic"
	"recast/internal/workspace"
)

// Engine coordinates all recast operations against one workspace.
type Engine struct {
	root      string
	cfg       *config.Config
	logger    *logging.Logger
	ws        *workspace.Workspace
	analyzer  *semantic.Analyzer
	committer *commit.Committer
	journal   *history.Store // nil when history is disabled or unavailable

	mu    sync.RWMutex
	model *semantic.Model

	// set when the watcher saw disk changes the model does not reflect
	stale atomic.Bool
}

// New creates an engine rooted at the workspace directory. The journal
// is optional: when it cannot be opened the engine runs without it.
func New(root string, cfg *config.Config, logger *logging.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = logging.Nop()
	}

	ws, err := workspace.Open(root, cfg, logger)
	if err != nil {
		return nil, err
	}
	analyzer, err := semantic.NewAnalyzer(cfg.Transforms.ParallelRewrites, logger)
	if err != nil {
		return nil, recasterr.Wrap(recasterr.InternalError, "creating analyzer", err)
	}

	e := &Engine{
		root:      ws.Root,
		cfg:       cfg,
		logger:    logger,
		ws:        ws,
		analyzer:  analyzer,
		committer: commit.New(ws.Root, logger),
	}

	if cfg.History.Enabled {
		journal, jerr := history.Open(ws.Root, cfg.History, logger)
		if jerr != nil {
			logger.Warn("Operation journal unavailable", map[string]interface{}{
				"error": jerr.Error(),
			})
		} else {
			e.journal = journal
		}
	}
	return e, nil
}

// Load reads the workspace from disk and builds the semantic model.
func (e *Engine) Load(ctx context.Context) error {
	snap, err := e.ws.Load(ctx)
	if err != nil {
		return err
	}
	model, err := e.analyzer.Analyze(ctx, snap)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.model = model
	e.mu.Unlock()
	e.stale.Store(false)
	return nil
}

// Reload derives a new snapshot from the changed paths and rebuilds the
// model. Unchanged documents keep their analysis through the content
// hash caches.
func (e *Engine) Reload(ctx context.Context, changed []string) error {
	e.mu.RLock()
	current := e.model
	e.mu.RUnlock()
	if current == nil {
		return e.Load(ctx)
	}

	snap, err := e.ws.Reload(ctx, current.Snapshot(), changed)
	if err != nil {
		return err
	}
	model, err := e.analyzer.Analyze(ctx, snap)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.model = model
	e.mu.Unlock()
	e.stale.Store(false)
	return nil
}

// Model returns the current semantic model, or nil before Load.
func (e *Engine) Model() *semantic.Model {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model
}

// Root returns the absolute workspace root.
func (e *Engine) Root() string { return e.root }

// Config returns the engine configuration.
func (e *Engine) Config() *config.Config { return e.cfg }

// Workspace returns the workspace loader.
func (e *Engine) Workspace() *workspace.Workspace { return e.ws }

// Journal returns the operation journal, or nil when disabled.
func (e *Engine) Journal() *history.Store { return e.journal }

// MarkStale flags that files changed on disk after the current model
// was built. The flag clears on the next Load or Reload.
func (e *Engine) MarkStale() { e.stale.Store(true) }

// Stale reports whether disk changed since the current model was built.
func (e *Engine) Stale() bool { return e.stale.Load() }

// Close releases the journal.
func (e *Engine) Close() error {
	if e.journal != nil {
		return e.journal.Close()
	}
	return nil
}

// advance swaps the model for one built from the post-commit snapshot.
// The commit already happened, so reanalysis runs detached from the
// operation's context and a failure only logs.
func (e *Engine) advance(prev *semantic.Model, changes []operation.Change) {
	next := operation.Derived(prev.Snapshot(), changes)
	model, err := e.analyzer.Analyze(context.Background(), next)
	if err != nil {
		e.logger.Warn("Post-commit reanalysis failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	e.mu.Lock()
	// a concurrent reload may have installed a newer model already
	if e.model == prev {
		e.model = model
	}
	e.mu.Unlock()
}

// commitStage builds the pipeline commit stage: write the changes
// through the persistence adapter, then advance the model. A partial
// commit rides the error details so callers see what reached disk.
func (e *Engine) commitStage(m *semantic.Model) operation.CommitFunc {
	return func(ctx context.Context, changes []operation.Change) (*operation.Summary, error) {
		applied, err := e.committer.Apply(ctx, changes)
		summary := &operation.Summary{
			FilesModified: applied.Modified,
			FilesCreated:  applied.Created,
			FilesDeleted:  applied.Deleted,
		}
		if err != nil {
			coded := recasterr.AsRecastError(err)
			if applied.Total() > 0 {
				coded.WithDetails(map[string]interface{}{"partialCommit": summary})
			}
			return nil, coded
		}
		// a no-op leaves the snapshot untouched
		if len(changes) > 0 {
			e.advance(m, changes)
		}
		return summary, nil
	}
}

// record writes a journal entry for a finished operation. Journal
// failures log and never affect the operation result.
func (e *Engine) record(target string, res *operation.Result) {
	if e.journal == nil {
		return
	}
	entry := &history.Entry{
		ID:        res.ID,
		Operation: string(res.Kind),
		Target:    target,
		Succeeded: res.OK,
		Preview:   res.Preview,
		ElapsedMs: res.ElapsedMS,
	}
	if res.Err != nil {
		coded := recasterr.AsRecastError(res.Err)
		entry.ErrorCode = string(coded.Code)
		entry.Message = coded.Message
	}
	if res.Summary != nil {
		entry.FilesModified = len(res.Summary.FilesModified)
		entry.FilesCreated = len(res.Summary.FilesCreated)
		entry.FilesDeleted = len(res.Summary.FilesDeleted)
		entry.RefsUpdated = res.Summary.RefsUpdated
		if detail, err := json.Marshal(res.Summary); err == nil {
			entry.Detail = detail
		}
	}
	if len(res.Changes) > 0 {
		var b strings.Builder
		for _, c := range res.Changes {
			b.WriteString(c.Diff)
		}
		entry.Detail = []byte(b.String())
	}

	// the operation's context may already be cancelled; the journal
	// records cancelled operations too
	if err := e.journal.Record(context.Background(), entry); err != nil {
		e.logger.Warn("Journal write failed", map[string]interface{}{
			"operationId": res.ID,
			"error":       err.Error(),
		})
	}
}

// Respond wraps a pipeline result in the response envelope with
// operation, snapshot, and resolution metadata attached.
func (e *Engine) Respond(res *operation.Result) *envelope.Response {
	b := envelope.New()
	switch {
	case res.Err != nil:
		b.Error(res.Err)
	case res.Summary != nil:
		b.Data(res.Summary)
	case res.Changes != nil:
		b.Data(res.Changes)
	default:
		b.Data(res.Data)
	}
	b.WithOperation(res.ID, string(res.Kind), string(res.State), res.Preview, res.Elapsed)

	if m := e.Model(); m != nil {
		snap := m.Snapshot()
		b.WithSnapshot(snap.Version(), snap.Len(), e.stale.Load())
	}

	if rp, ok := res.Data.(*RefsPayload); ok {
		b.WithResolution(rp.Exact, rp.Heuristic)
		b.WithTruncation(rp.Truncated, rp.Shown, rp.Total, "max-references")
	}
	return b.Build()
}
