package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(SymbolNotFound, "no declaration named 'Foo'")

	if err.Code != SymbolNotFound {
		t.Errorf("Code = %v, want %v", err.Code, SymbolNotFound)
	}
	if err.Message != "no declaration named 'Foo'" {
		t.Errorf("Message = %q, want %q", err.Message, "no declaration named 'Foo'")
	}
	if err.Unwrap() != nil {
		t.Error("New should not set a cause")
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(AnalysisFailed, "parse failed", cause)

	if err.Code != AnalysisFailed {
		t.Errorf("Code = %v, want %v", err.Code, AnalysisFailed)
	}
	if err.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), cause)
	}
	// Predefined fixes attach automatically
	if len(err.SuggestedFixes) == 0 {
		t.Error("Wrap should attach predefined fixes for AnalysisFailed")
	}
}

func TestRecastError_Error(t *testing.T) {
	tests := []struct {
		name      string
		code      ErrorCode
		message   string
		cause     error
		wantParts []string
	}{
		{
			name:      "with cause",
			code:      CommitFailed,
			message:   "could not replace file",
			cause:     errors.New("permission denied"),
			wantParts: []string{"COMMIT_FAILED", "could not replace file", "permission denied"},
		},
		{
			name:      "without cause",
			code:      SymbolNotFound,
			message:   "Symbol 'foo' not found",
			cause:     nil,
			wantParts: []string{"SYMBOL_NOT_FOUND", "Symbol 'foo' not found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Wrap(tt.code, tt.message, tt.cause)
			got := err.Error()

			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("Error() = %q, want to contain %q", got, part)
				}
			}
		})
	}
}

func TestRecastError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(InternalError, "something went wrong", cause)

	unwrapped := err.Unwrap()
	if unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	// errors.Is must see through the wrapper
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause through RecastError")
	}

	// Test nil cause
	errNoCause := New(Cancelled, "operation cancelled")
	if errNoCause.Unwrap() != nil {
		t.Errorf("Unwrap() on error without cause should return nil")
	}
}

func TestRecastError_WithDetails(t *testing.T) {
	err := New(UnsafeTransform, "initializer has side effects")
	details := map[string]string{"reason": "side-effects", "call": "Compute()"}

	result := err.WithDetails(details)

	// Check that it returns the same error (for chaining)
	if result != err {
		t.Error("WithDetails should return the same error for chaining")
	}

	// Check details are set
	if err.Details == nil {
		t.Error("Details should be set")
	}
}

func TestRecastError_WithDrilldowns(t *testing.T) {
	err := New(SymbolAmbiguous, "3 declarations match 'Render'")
	dds := []Drilldown{{Label: "List candidates", Query: "symbol Render --all"}}

	result := err.WithDrilldowns(dds)
	if result != err {
		t.Error("WithDrilldowns should return the same error for chaining")
	}
	if len(err.Drilldowns) != 1 {
		t.Errorf("len(Drilldowns) = %d, want 1", len(err.Drilldowns))
	}
}

func TestAsRecastError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		if AsRecastError(nil) != nil {
			t.Error("AsRecastError(nil) should be nil")
		}
	})

	t.Run("direct", func(t *testing.T) {
		orig := New(PathInvalid, "outside workspace")
		got := AsRecastError(orig)
		if got != orig {
			t.Error("AsRecastError should return the original RecastError")
		}
	})

	t.Run("wrapped in chain", func(t *testing.T) {
		orig := New(SymbolNotFound, "missing")
		chained := fmt.Errorf("resolving: %w", orig)
		got := AsRecastError(chained)
		if got.Code != SymbolNotFound {
			t.Errorf("Code = %v, want SYMBOL_NOT_FOUND", got.Code)
		}
	})

	t.Run("foreign error", func(t *testing.T) {
		got := AsRecastError(errors.New("disk full"))
		if got.Code != InternalError {
			t.Errorf("Code = %v, want INTERNAL_ERROR", got.Code)
		}
		if !strings.Contains(got.Error(), "disk full") {
			t.Errorf("Error() should retain cause, got %q", got.Error())
		}
	})
}

func TestCodeOf(t *testing.T) {
	if CodeOf(nil) != "" {
		t.Error("CodeOf(nil) should be empty")
	}
	if CodeOf(New(Cancelled, "stopped")) != Cancelled {
		t.Error("CodeOf should return the error's code")
	}
	if CodeOf(errors.New("other")) != InternalError {
		t.Error("CodeOf on a foreign error should be INTERNAL_ERROR")
	}
}

func TestGetSuggestedFixes(t *testing.T) {
	tests := []struct {
		code    ErrorCode
		wantNil bool
		wantLen int
	}{
		{SymbolAmbiguous, false, 1},
		{UnsafeTransform, false, 1},
		{AnalysisFailed, false, 1},
		{CommitFailed, false, 1},
		{Cancelled, false, 1},
		{SymbolNotFound, true, 0}, // No predefined fixes
		{ParamInvalid, true, 0},   // No predefined fixes
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			fixes := GetSuggestedFixes(tt.code)

			if tt.wantNil && fixes != nil {
				t.Errorf("GetSuggestedFixes(%v) = %v, want nil", tt.code, fixes)
			}
			if !tt.wantNil && len(fixes) != tt.wantLen {
				t.Errorf("GetSuggestedFixes(%v) len = %d, want %d", tt.code, len(fixes), tt.wantLen)
			}
		})
	}
}

func TestErrorCodes(t *testing.T) {
	// Ensure all error codes are unique
	codes := []ErrorCode{
		ParamInvalid,
		PathInvalid,
		SymbolNotFound,
		SymbolAmbiguous,
		UnsafeTransform,
		AnalysisFailed,
		CommitFailed,
		Cancelled,
		InternalError,
	}

	seen := make(map[ErrorCode]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("Duplicate error code: %v", code)
		}
		seen[code] = true

		// Ensure each code is a non-empty string
		if string(code) == "" {
			t.Error("Error code should not be empty")
		}
	}
}

func TestFixActionTypes(t *testing.T) {
	types := []FixActionType{RunCommand, OpenDocs}

	for _, ft := range types {
		if string(ft) == "" {
			t.Error("FixActionType should not be empty")
		}
	}
}

func TestDrilldownStructure(t *testing.T) {
	dd := Drilldown{
		Label: "View references",
		Query: "refs Engine",
	}

	if dd.Label != "View references" {
		t.Errorf("Label = %q, want %q", dd.Label, "View references")
	}
	if dd.Query != "refs Engine" {
		t.Errorf("Query = %q, want %q", dd.Query, "refs Engine")
	}
}

func TestErrorActionsMap(t *testing.T) {
	// Verify ErrorActions map has expected entries
	expectedCodes := []ErrorCode{
		SymbolAmbiguous,
		UnsafeTransform,
		AnalysisFailed,
		CommitFailed,
		Cancelled,
	}

	for _, code := range expectedCodes {
		if _, ok := ErrorActions[code]; !ok {
			t.Errorf("ErrorActions missing entry for %v", code)
		}
	}

	// Verify each entry has valid fix actions
	for code, fixes := range ErrorActions {
		if len(fixes) == 0 {
			t.Errorf("ErrorActions[%v] has no fix actions", code)
		}
		for i, fix := range fixes {
			if fix.Type == "" {
				t.Errorf("ErrorActions[%v][%d].Type is empty", code, i)
			}
		}
	}
}
