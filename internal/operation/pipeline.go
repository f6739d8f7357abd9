package operation

import (
	"context"
	"fmt"

	recasterr "recast/internal/errors"
	"recast/internal/logging"
	"recast/internal/source"
)

// StageFunc runs one side-effect-free pipeline stage.
type StageFunc func(ctx context.Context) error

// ComputeFunc produces the text changes of the Computing stage.
type ComputeFunc func(ctx context.Context) (*Outcome, error)

// QueryFunc produces the payload of a read-only operation.
type QueryFunc func(ctx context.Context) (interface{}, error)

// CommitFunc persists materialized changes and reports what was written.
type CommitFunc func(ctx context.Context, changes []Change) (*Summary, error)

// Pipeline drives one operation through its stages. Stages are supplied
// per kind; the pipeline owns state transitions, cancellation checks,
// timing, and error translation.
type Pipeline struct {
	op     *Operation
	snap   *source.Snapshot
	logger *logging.Logger

	validate StageFunc
	resolve  StageFunc
	compute  ComputeFunc
	query    QueryFunc
	commit   CommitFunc
}

// NewPipeline creates a pipeline for the operation against a snapshot.
// The snapshot may be nil for read-only queries that carry their own.
func NewPipeline(op *Operation, snap *source.Snapshot, logger *logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Pipeline{op: op, snap: snap, logger: logger}
}

// Validate sets the shape-only parameter check. It must not do I/O.
func (p *Pipeline) Validate(fn StageFunc) *Pipeline { p.validate = fn; return p }

// Resolve sets the symbol and reference lookup stage.
func (p *Pipeline) Resolve(fn StageFunc) *Pipeline { p.resolve = fn; return p }

// Compute sets the stage that builds the outcome for a transformation.
func (p *Pipeline) Compute(fn ComputeFunc) *Pipeline { p.compute = fn; return p }

// Query sets the stage that produces a read-only payload. A pipeline
// with a query stage completes straight out of Computing.
func (p *Pipeline) Query(fn QueryFunc) *Pipeline { p.query = fn; return p }

// Commit sets the stage that persists changes to storage.
func (p *Pipeline) Commit(fn CommitFunc) *Pipeline { p.commit = fn; return p }

// Run drives the operation to a terminal state and always returns a
// result. Cancellation is observed at every stage boundary; panics
// surface as INTERNAL_ERROR; domain errors keep their codes.
func (p *Pipeline) Run(ctx context.Context) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			err := recasterr.New(recasterr.InternalError, fmt.Sprintf("operation panic: %v", r))
			p.logger.Error("Operation panicked", map[string]interface{}{
				"operationId": p.op.ID,
				"kind":        p.op.Kind,
				"panic":       fmt.Sprint(r),
			})
			p.op.MarkFailed(err)
			res = p.terminal(err)
		}
	}()

	p.logger.Info("Operation started", map[string]interface{}{
		"operationId": p.op.ID,
		"kind":        p.op.Kind,
		"preview":     p.op.Preview,
	})

	if res := p.enter(ctx, StateValidating); res != nil {
		return res
	}
	if p.validate != nil {
		if err := p.validate(ctx); err != nil {
			return p.fail(ctx, err)
		}
	}

	if res := p.enter(ctx, StateResolving); res != nil {
		return res
	}
	if p.resolve != nil {
		if err := p.resolve(ctx); err != nil {
			return p.fail(ctx, err)
		}
	}

	if res := p.enter(ctx, StateComputing); res != nil {
		return res
	}
	if p.query != nil {
		return p.runQuery(ctx)
	}
	return p.runTransform(ctx)
}

// runQuery completes a read-only operation out of the Computing stage.
func (p *Pipeline) runQuery(ctx context.Context) *Result {
	data, err := p.query(ctx)
	if err != nil {
		return p.fail(ctx, err)
	}

	res := p.complete()
	if res.OK {
		res.Data = data
	}
	return res
}

// runTransform materializes the outcome and either previews or commits.
func (p *Pipeline) runTransform(ctx context.Context) *Result {
	if p.compute == nil {
		return p.fail(ctx, recasterr.New(recasterr.InternalError, "no compute stage configured"))
	}
	if p.snap == nil {
		return p.fail(ctx, recasterr.New(recasterr.InternalError, "no snapshot configured"))
	}

	outcome, err := p.compute(ctx)
	if err != nil {
		return p.fail(ctx, err)
	}
	if outcome == nil {
		outcome = NewOutcome()
	}

	if p.op.Preview {
		if res := p.enter(ctx, StatePreviewing); res != nil {
			return res
		}
		changes, cerr := outcome.Changes(p.snap)
		if cerr != nil {
			return p.fail(ctx, cerr)
		}
		pending, perr := RenderPending(changes, outcome.Description)
		if perr != nil {
			return p.fail(ctx, perr)
		}

		res := p.complete()
		if res.OK {
			res.Changes = pending
		}
		return res
	}

	if p.commit == nil {
		return p.fail(ctx, recasterr.New(recasterr.InternalError, "no commit stage configured"))
	}

	if res := p.enter(ctx, StateApplying); res != nil {
		return res
	}
	changes, cerr := outcome.Changes(p.snap)
	if cerr != nil {
		return p.fail(ctx, cerr)
	}

	if res := p.enter(ctx, StateCommitting); res != nil {
		return res
	}
	summary, serr := p.commit(ctx, changes)
	if serr != nil {
		return p.fail(ctx, serr)
	}
	if summary == nil {
		summary = &Summary{}
	}
	summary.RefsUpdated = outcome.RefsUpdated
	summary.Symbol = DescribeSymbol(outcome.Symbol)

	res := p.complete()
	if res.OK {
		res.Summary = summary
	}
	return res
}

// enter observes cancellation at the stage boundary, then advances. A
// non-nil result is terminal and must be returned as-is.
func (p *Pipeline) enter(ctx context.Context, next State) *Result {
	if ctx.Err() != nil {
		return p.cancelled(ctx)
	}
	if err := p.op.Advance(next); err != nil {
		p.op.MarkFailed(err)
		return p.terminal(recasterr.AsRecastError(err))
	}
	p.logger.Debug("Stage entered", map[string]interface{}{
		"operationId": p.op.ID,
		"state":       string(next),
	})
	return nil
}

// fail translates a stage error into the terminal result. Cancellation
// is never swallowed: a done context wins over whatever error the stage
// returned.
func (p *Pipeline) fail(ctx context.Context, err error) *Result {
	if ctx.Err() != nil {
		return p.cancelled(ctx)
	}

	stage := p.op.State
	coded := recasterr.AsRecastError(err)
	p.op.MarkFailed(coded)
	p.logger.Error("Operation failed", map[string]interface{}{
		"operationId": p.op.ID,
		"kind":        p.op.Kind,
		"stage":       string(stage),
		"code":        string(coded.Code),
		"error":       coded.Error(),
		"duration":    p.op.Elapsed().String(),
	})
	return p.terminal(coded)
}

// cancelled marks the operation cancelled and builds its result.
func (p *Pipeline) cancelled(ctx context.Context) *Result {
	stage := p.op.State
	p.op.MarkCancelled()
	err := recasterr.Wrap(recasterr.Cancelled,
		fmt.Sprintf("%s cancelled during %s", p.op.Kind, stage), ctx.Err())
	p.logger.Info("Operation cancelled", map[string]interface{}{
		"operationId": p.op.ID,
		"kind":        p.op.Kind,
		"stage":       string(stage),
		"duration":    p.op.Elapsed().String(),
	})
	return p.terminal(err)
}

// complete marks the operation completed and builds the success result.
func (p *Pipeline) complete() *Result {
	if err := p.op.MarkCompleted(); err != nil {
		p.op.MarkFailed(err)
		return p.terminal(recasterr.AsRecastError(err))
	}
	p.logger.Info("Operation completed", map[string]interface{}{
		"operationId": p.op.ID,
		"kind":        p.op.Kind,
		"duration":    p.op.Elapsed().String(),
	})
	return p.terminal(nil)
}

// terminal builds the result for the operation's current state.
func (p *Pipeline) terminal(err error) *Result {
	elapsed := p.op.Elapsed()
	return &Result{
		OK:        err == nil,
		ID:        p.op.ID,
		Kind:      p.op.Kind,
		Preview:   p.op.Preview,
		State:     p.op.State,
		Elapsed:   elapsed,
		ElapsedMS: elapsed.Milliseconds(),
		Err:       err,
	}
}
