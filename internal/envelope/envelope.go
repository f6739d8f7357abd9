// Package envelope provides a standardized response wrapper for engine and
// server responses. Every response is wrapped in a consistent envelope that
// includes metadata about the operation, the snapshot it ran against,
// resolution confidence, truncation, warnings, and suggested next calls.
package envelope

// ConfidenceTier represents the quality tier of reference resolution.
type ConfidenceTier string

const (
	// TierHigh indicates every reference was bound through a resolved type.
	TierHigh ConfidenceTier = "high"
	// TierMedium indicates some references were bound by structural inference.
	TierMedium ConfidenceTier = "medium"
	// TierLow indicates name-only matches dominate the result.
	TierLow ConfidenceTier = "low"
	// TierSpeculative indicates results drawn mostly from unparseable sources.
	TierSpeculative ConfidenceTier = "speculative"
)

// Confidence describes result quality.
type Confidence struct {
	Score   float64        `json:"score"`             // 0.0 - 1.0
	Tier    ConfidenceTier `json:"tier"`              // high, medium, low, speculative
	Reasons []string       `json:"reasons,omitempty"` // why this tier
}

// OperationMeta describes the operation that produced the response.
type OperationMeta struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	State      string `json:"state"`
	Preview    bool   `json:"preview,omitempty"`
	DurationMS int64  `json:"durationMs,omitempty"`
}

// SnapshotMeta describes the workspace snapshot the response was computed from.
type SnapshotMeta struct {
	Version   int  `json:"version"`
	Documents int  `json:"documents"`
	Stale     bool `json:"stale,omitempty"` // files changed on disk since load
}

// Truncation describes result trimming.
type Truncation struct {
	IsTruncated bool   `json:"isTruncated"`
	Shown       int    `json:"shown,omitempty"`  // items returned
	Total       int    `json:"total,omitempty"`  // total available
	Reason      string `json:"reason,omitempty"` // "max-references", "max-documents", etc.
}

// Meta holds response metadata.
type Meta struct {
	Operation  *OperationMeta `json:"operation,omitempty"`
	Snapshot   *SnapshotMeta  `json:"snapshot,omitempty"`
	Confidence *Confidence    `json:"confidence,omitempty"`
	Truncation *Truncation    `json:"truncation,omitempty"`
}

// SuggestedCall represents a recommended follow-up call.
type SuggestedCall struct {
	Tool   string                 `json:"tool"`             // command or tool name
	Params map[string]interface{} `json:"params,omitempty"` // pre-filled parameters
	Reason string                 `json:"reason,omitempty"` // why this is suggested
}

// Warning represents a non-fatal issue.
type Warning struct {
	Code    string `json:"code,omitempty"` // machine-readable code
	Message string `json:"message"`        // human-readable message
}

// Response is the standard envelope for all responses.
type Response struct {
	SchemaVersion      string          `json:"schemaVersion"`
	Data               interface{}     `json:"data"`
	Meta               *Meta           `json:"meta,omitempty"`
	Warnings           []Warning       `json:"warnings,omitempty"`
	Error              *string         `json:"error,omitempty"`
	SuggestedNextCalls []SuggestedCall `json:"suggestedNextCalls,omitempty"`
}

// CurrentSchemaVersion is the current envelope schema version.
const CurrentSchemaVersion = "1.0"
