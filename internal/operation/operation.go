// Package operation models the lifecycle of a single engine invocation
// as an explicit state machine. Transformations move Pending ->
// Validating -> Resolving -> Computing and then either Previewing or
// Applying -> Committing; read-only queries complete straight out of
// Computing. Failed and Cancelled are reachable from every non-terminal
// state, and terminal states never transition again.
package operation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	recasterr "recast/internal/errors"
)

// State is the pipeline stage an operation is currently in.
type State string

const (
	StatePending    State = "pending"
	StateValidating State = "validating"
	StateResolving  State = "resolving"
	StateComputing  State = "computing"
	StatePreviewing State = "previewing"
	StateApplying   State = "applying"
	StateCommitting State = "committing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// forward lists the legal forward transitions per state. Failed and
// Cancelled are implicitly reachable from any non-terminal state.
var forward = map[State][]State{
	StatePending:    {StateValidating},
	StateValidating: {StateResolving},
	StateResolving:  {StateComputing},
	StateComputing:  {StatePreviewing, StateApplying, StateCompleted},
	StatePreviewing: {StateCompleted},
	StateApplying:   {StateCommitting},
	StateCommitting: {StateCompleted},
}

// IsTerminal returns true when no further transition is legal.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// CanTransition reports whether moving from s to next is legal.
func (s State) CanTransition(next State) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StateFailed || next == StateCancelled {
		return true
	}
	for _, allowed := range forward[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

// Kind identifies which operation is being run.
type Kind string

const (
	KindRename      Kind = "rename"
	KindInline      Kind = "inline"
	KindEncapsulate Kind = "encapsulate"
	KindSignature   Kind = "signature"
	KindMoveType    Kind = "move-type"
	KindStubs       Kind = "stubs"
	KindDirectives  Kind = "directives"
	KindFormat      Kind = "format"
	KindSymbol      Kind = "symbol"
	KindRefs        Kind = "refs"
	KindStatus      Kind = "status"
	KindExport      Kind = "export"
)

// Mutates returns true for kinds that rewrite workspace documents.
func (k Kind) Mutates() bool {
	switch k {
	case KindRename, KindInline, KindEncapsulate, KindSignature,
		KindMoveType, KindStubs, KindDirectives, KindFormat:
		return true
	}
	return false
}

// Operation tracks one pipeline invocation from creation to a terminal
// state.
type Operation struct {
	ID        string     `json:"id"`
	Kind      Kind       `json:"kind"`
	Preview   bool       `json:"preview,omitempty"`
	State     State      `json:"state"`
	CreatedAt time.Time  `json:"createdAt"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// New creates a pending operation with a fresh id.
func New(kind Kind, preview bool) *Operation {
	return &Operation{
		ID:        uuid.New().String(),
		Kind:      kind,
		Preview:   preview,
		State:     StatePending,
		CreatedAt: time.Now().UTC(),
	}
}

// IsTerminal returns true if the operation reached a terminal state.
func (o *Operation) IsTerminal() bool {
	return o.State.IsTerminal()
}

// Advance moves the operation into the next stage. The first advance
// records the start time, which anchors Elapsed.
func (o *Operation) Advance(next State) error {
	if !o.State.CanTransition(next) {
		return recasterr.New(recasterr.InternalError,
			fmt.Sprintf("illegal operation transition %s -> %s", o.State, next))
	}
	if o.StartedAt == nil {
		now := time.Now().UTC()
		o.StartedAt = &now
	}
	o.State = next
	return nil
}

// MarkCompleted transitions the operation to completed. It fails when
// the current state has no legal path to completed.
func (o *Operation) MarkCompleted() error {
	if err := o.Advance(StateCompleted); err != nil {
		return err
	}
	now := time.Now().UTC()
	o.EndedAt = &now
	return nil
}

// MarkFailed transitions the operation to failed with the error. A
// terminal operation is left untouched.
func (o *Operation) MarkFailed(err error) {
	if o.IsTerminal() {
		return
	}
	now := time.Now().UTC()
	o.State = StateFailed
	o.EndedAt = &now
	if err != nil {
		o.Error = err.Error()
	}
}

// MarkCancelled transitions the operation to cancelled. A terminal
// operation is left untouched.
func (o *Operation) MarkCancelled() {
	if o.IsTerminal() {
		return
	}
	now := time.Now().UTC()
	o.State = StateCancelled
	o.EndedAt = &now
}

// Elapsed returns wall-clock time from pipeline entry to the terminal
// state, or to now while the operation is still running.
func (o *Operation) Elapsed() time.Duration {
	start := o.CreatedAt
	if o.StartedAt != nil {
		start = *o.StartedAt
	}
	end := time.Now().UTC()
	if o.EndedAt != nil {
		end = *o.EndedAt
	}
	return end.Sub(start)
}
