package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ParamInvalid indicates a malformed or out-of-range request parameter
	ParamInvalid ErrorCode = "PARAM_INVALID"
	// PathInvalid indicates a target path outside the workspace or otherwise unusable
	PathInvalid ErrorCode = "PATH_INVALID"
	// SymbolNotFound indicates no declaration matched the requested symbol
	SymbolNotFound ErrorCode = "SYMBOL_NOT_FOUND"
	// SymbolAmbiguous indicates multiple declarations matched and none was selected
	SymbolAmbiguous ErrorCode = "SYMBOL_AMBIGUOUS"
	// UnsafeTransform indicates the change was refused by a safety check
	UnsafeTransform ErrorCode = "UNSAFE_TRANSFORM"
	// AnalysisFailed indicates source could not be parsed or resolved
	AnalysisFailed ErrorCode = "ANALYSIS_FAILED"
	// CommitFailed indicates writing the transformed files to disk failed
	CommitFailed ErrorCode = "COMMIT_FAILED"
	// Cancelled indicates the operation was cancelled before completion
	Cancelled ErrorCode = "CANCELLED"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// OpenDocs suggests opening documentation
	OpenDocs FixActionType = "open-docs"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
}

// Drilldown represents a suggested follow-up query
type Drilldown struct {
	Label string `json:"label"`
	Query string `json:"query"`
}

// RecastError represents an engine error with code, message, and suggestions
type RecastError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	Drilldowns     []Drilldown `json:"drilldowns,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates a new RecastError
func New(code ErrorCode, message string) *RecastError {
	return &RecastError{
		Code:           code,
		Message:        message,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Wrap creates a new RecastError with an underlying cause
func Wrap(code ErrorCode, message string, cause error) *RecastError {
	return &RecastError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Error implements the error interface
func (e *RecastError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *RecastError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *RecastError) WithDetails(details interface{}) *RecastError {
	e.Details = details
	return e
}

// WithDrilldowns adds follow-up queries to the error
func (e *RecastError) WithDrilldowns(drilldowns []Drilldown) *RecastError {
	e.Drilldowns = drilldowns
	return e
}

// AsRecastError extracts a RecastError from an error chain. Errors outside
// the chain are wrapped as InternalError so callers always get a stable code.
func AsRecastError(err error) *RecastError {
	if err == nil {
		return nil
	}
	var re *RecastError
	if errors.As(err, &re) {
		return re
	}
	return Wrap(InternalError, "unexpected error", err)
}

// CodeOf returns the stable code for any error.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return AsRecastError(err).Code
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	SymbolAmbiguous: {
		{
			Type:        RunCommand,
			Command:     "recast symbol ${name} --all",
			Safe:        true,
			Description: "List every matching declaration with its location",
		},
	},
	UnsafeTransform: {
		{
			Type:        RunCommand,
			Command:     "recast refs ${name}",
			Safe:        true,
			Description: "Inspect the usages that blocked the transform",
		},
	},
	AnalysisFailed: {
		{
			Type:        RunCommand,
			Command:     "recast status --verbose",
			Safe:        true,
			Description: "Show which documents failed to parse",
		},
	},
	CommitFailed: {
		{
			Type:        RunCommand,
			Command:     "recast ${operation} --preview",
			Safe:        true,
			Description: "Re-run in preview mode to inspect the pending changes",
		},
	},
	Cancelled: {
		{
			Type:        RunCommand,
			Command:     "recast ${operation}",
			Safe:        true,
			Description: "Retry the operation",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
