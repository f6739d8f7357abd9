package envelope

import (
	"strings"
	"time"

	"recast/internal/errors"
)

// Builder constructs Response envelopes using a fluent API.
type Builder struct {
	resp *Response
}

// New creates a new envelope builder.
func New() *Builder {
	return &Builder{
		resp: &Response{
			SchemaVersion: CurrentSchemaVersion,
		},
	}
}

// Data sets the payload.
func (b *Builder) Data(data interface{}) *Builder {
	b.resp.Data = data
	return b
}

// WithOperation records which operation produced this response.
func (b *Builder) WithOperation(id, kind, state string, preview bool, elapsed time.Duration) *Builder {
	if b.resp.Meta == nil {
		b.resp.Meta = &Meta{}
	}

	b.resp.Meta.Operation = &OperationMeta{
		ID:         id,
		Kind:       kind,
		State:      state,
		Preview:    preview,
		DurationMS: elapsed.Milliseconds(),
	}

	return b
}

// WithSnapshot records the workspace snapshot the response was computed from.
func (b *Builder) WithSnapshot(version, documents int, stale bool) *Builder {
	if b.resp.Meta == nil {
		b.resp.Meta = &Meta{}
	}

	b.resp.Meta.Snapshot = &SnapshotMeta{
		Version:   version,
		Documents: documents,
		Stale:     stale,
	}

	if stale {
		b.resp.Warnings = append(b.resp.Warnings, Warning{
			Code:    "snapshot-stale",
			Message: "files changed on disk after the snapshot was loaded",
		})
	}

	return b
}

// WithResolution records reference-binding quality as a confidence block.
func (b *Builder) WithResolution(exact, heuristic int, reasons ...string) *Builder {
	if b.resp.Meta == nil {
		b.resp.Meta = &Meta{}
	}

	score := ResolutionScore(exact, heuristic)
	b.resp.Meta.Confidence = &Confidence{
		Score:   score,
		Tier:    TierForResolution(exact, heuristic),
		Reasons: reasons,
	}

	return b
}

// WithTruncation adds truncation metadata.
func (b *Builder) WithTruncation(truncated bool, shown, total int, reason string) *Builder {
	if !truncated {
		return b
	}

	if b.resp.Meta == nil {
		b.resp.Meta = &Meta{}
	}

	b.resp.Meta.Truncation = &Truncation{
		IsTruncated: true,
		Shown:       shown,
		Total:       total,
		Reason:      reason,
	}

	return b
}

// SuggestCalls converts drilldowns to structured suggested calls.
func (b *Builder) SuggestCalls(drilldowns []errors.Drilldown) *Builder {
	if len(drilldowns) == 0 {
		return b
	}

	b.resp.SuggestedNextCalls = make([]SuggestedCall, 0, len(drilldowns))
	for _, d := range drilldowns {
		call := ParseDrilldown(d)
		if call != nil {
			b.resp.SuggestedNextCalls = append(b.resp.SuggestedNextCalls, *call)
		}
	}

	return b
}

// Warning adds a warning message.
func (b *Builder) Warning(msg string) *Builder {
	b.resp.Warnings = append(b.resp.Warnings, Warning{Message: msg})
	return b
}

// WarningWithCode adds a warning with a code.
func (b *Builder) WarningWithCode(code, msg string) *Builder {
	b.resp.Warnings = append(b.resp.Warnings, Warning{Code: code, Message: msg})
	return b
}

// Error sets the error field. When the error carries drilldowns they are
// surfaced as suggested next calls.
func (b *Builder) Error(err error) *Builder {
	if err == nil {
		return b
	}

	msg := err.Error()
	b.resp.Error = &msg

	if re := errors.AsRecastError(err); re != nil && len(re.Drilldowns) > 0 {
		b.SuggestCalls(re.Drilldowns)
	}

	return b
}

// Build returns the completed response envelope.
func (b *Builder) Build() *Response {
	return b.resp
}

// ParseDrilldown converts a drilldown to a SuggestedCall.
func ParseDrilldown(d errors.Drilldown) *SuggestedCall {
	// Drilldown.Query format: "command arg --flag=value" or just "command name"
	parts := strings.Fields(d.Query)
	if len(parts) == 0 {
		return nil
	}

	tool := parts[0]
	params := make(map[string]interface{})

	for i := 1; i < len(parts); i++ {
		part := parts[i]
		if strings.HasPrefix(part, "--") {
			// Flag parameter: --key=value
			kv := strings.SplitN(strings.TrimPrefix(part, "--"), "=", 2)
			if len(kv) == 2 {
				params[kv[0]] = kv[1]
			} else {
				params[kv[0]] = true
			}
		} else {
			// Positional parameter - infer name based on command
			paramName := inferPositionalParam(tool, i-1)
			params[paramName] = part
		}
	}

	return &SuggestedCall{
		Tool:   tool,
		Params: params,
		Reason: d.Label,
	}
}

// inferPositionalParam guesses the parameter name for positional args.
func inferPositionalParam(tool string, position int) string {
	// Map of command -> positional param names
	toolParams := map[string][]string{
		"symbol":      {"name"},
		"refs":        {"name"},
		"rename":      {"name", "newName"},
		"inline":      {"name"},
		"encapsulate": {"name", "propertyName"},
		"signature":   {"name"},
		"move-type":   {"name", "targetFile"},
		"stubs":       {"name"},
		"directives":  {"path"},
		"fmt":         {"path"},
	}

	if params, ok := toolParams[tool]; ok && position < len(params) {
		return params[position]
	}
	return "arg" // fallback
}

// Operational creates a simple envelope for operational commands.
// These always have high confidence and no truncation concerns.
func Operational(data interface{}) *Response {
	return &Response{
		SchemaVersion: CurrentSchemaVersion,
		Data:          data,
		Meta: &Meta{
			Confidence: &Confidence{
				Score: 1.0,
				Tier:  TierHigh,
			},
		},
	}
}
