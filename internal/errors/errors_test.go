package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorCodes(t *testing.T) {
	codes := []ErrorCode{
		CodeUnknown,
		CodeValidation,
		CodeConfiguration,
		CodeTimeout,
		CodeCanceled,
		CodeNotFound,
		CodeConflict,
		CodeStore,
		CodeDataNotReady,
		CodeGateState,
		CodeSessionGone,
		CodeExportFormat,
		CodeDatabaseConnection,
		CodeDatabaseQuery,
		CodeDatabaseMigration,
		CodeDatabaseTimeout,
		CodeServiceUnavailable,
		CodeRateLimited,
	}

	for _, code := range codes {
		if string(code) == "" {
			t.Errorf("Error code %v should not be empty", code)
		}
	}
}

func TestComparisonError(t *testing.T) {
	t.Run("basic error creation", func(t *testing.T) {
		err := NewComparisonError(CodeValidation, "bad ids")
		if err.Code != CodeValidation {
			t.Errorf("Expected code %s, got %s", CodeValidation, err.Code)
		}
		if err.Context == nil {
			t.Error("Context should be initialized")
		}
		expected := "[VALIDATION] bad ids"
		if err.Error() != expected {
			t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
		}
	})

	t.Run("wrapped store error", func(t *testing.T) {
		cause := fmt.Errorf("connection reset")
		err := ErrStore("save", cause)
		if err.Unwrap() != cause {
			t.Error("Wrapped error should be unwrappable")
		}
		expected := "[STORE] connection reset (operation: save)"
		if err.Error() != expected {
			t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
		}
	})

	t.Run("with context", func(t *testing.T) {
		err := ErrInsufficientScans("1")
		if err.Context["ids"] != "1" {
			t.Errorf("Expected ids context '1', got %v", err.Context["ids"])
		}
	})

	t.Run("data not ready message", func(t *testing.T) {
		err := ErrDataNotReady()
		if err.Message != "Comparison data not loaded yet" {
			t.Errorf("unexpected message %q", err.Message)
		}
	})
}

func TestDatabaseError(t *testing.T) {
	t.Run("database error with operation", func(t *testing.T) {
		err := NewDatabaseError(CodeDatabaseQuery, "query failed")
		err.Operation = "SELECT"
		expected := "[DATABASE_QUERY] query failed (operation: SELECT)"
		if err.Error() != expected {
			t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
		}
	})

	t.Run("with query", func(t *testing.T) {
		err := NewDatabaseError(CodeDatabaseQuery, "query failed")
		query := "SELECT * FROM uni_scans"
		err.WithQuery(query)
		if err.Query != query {
			t.Errorf("Expected query '%s', got '%s'", query, err.Query)
		}
	})

	t.Run("not found with id", func(t *testing.T) {
		err := ErrNotFoundWithID("saved comparison", "abc")
		expected := "[NOT_FOUND] saved comparison with ID abc not found"
		if err.Error() != expected {
			t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
		}
	})
}

func TestConfigError(t *testing.T) {
	err := NewConfigFieldError(CodeValidation, "invalid port", "database.port", 65536)
	expected := "[VALIDATION] invalid port (field: database.port)"
	if err.Error() != expected {
		t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
	}
	if ErrConfigMissing("database.host").Code != CodeConfiguration {
		t.Error("missing field should carry configuration code")
	}
}

func TestUtilityFunctions(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     ErrorCode
		expected bool
	}{
		{"comparison error matches", ErrDataNotReady(), CodeDataNotReady, true},
		{"comparison error does not match", ErrDataNotReady(), CodeStore, false},
		{"database error matches", ErrNotFound("scan"), CodeNotFound, true},
		{"config error matches", ErrConfigMissing("x"), CodeConfiguration, true},
		{"wrapped with fmt", fmt.Errorf("outer: %w", ErrNoPendingRemoval()), CodeGateState, true},
		{"standard error", fmt.Errorf("standard error"), CodeUnknown, false},
		{"wrapped standard error", fmt.Errorf("outer: %w", fmt.Errorf("inner")), CodeUnknown, false},
		{"explicit unknown code", NewComparisonError(CodeUnknown, "odd"), CodeUnknown, true},
		{"nil error", nil, CodeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCode(tt.err, tt.code); got != tt.expected {
				t.Errorf("IsCode() = %v, want %v", got, tt.expected)
			}
		})
	}

	t.Run("IsNotFound", func(t *testing.T) {
		if !IsNotFound(ErrNotFound("scan")) {
			t.Error("expected not found")
		}
		if IsNotFound(ErrDataNotReady()) {
			t.Error("data not ready is not a not-found error")
		}
	})

	t.Run("IsConflict covers gate state", func(t *testing.T) {
		if !IsConflict(ErrNoPendingRemoval()) {
			t.Error("gate state errors should be conflicts")
		}
	})

	t.Run("IsRetryable", func(t *testing.T) {
		if !IsRetryable(ErrDatabaseConnection(fmt.Errorf("refused"))) {
			t.Error("connection errors should be retryable")
		}
		if IsRetryable(ErrStore("save", fmt.Errorf("boom"))) {
			t.Error("store errors are never retried automatically")
		}
	})
}

func TestErrorUnwrapping(t *testing.T) {
	baseErr := fmt.Errorf("base error")
	wrappedErr := fmt.Errorf("wrapped: %w", baseErr)
	cmpErr := ErrStore("remove", wrappedErr)

	if cmpErr.Unwrap() != wrappedErr {
		t.Error("Should unwrap to wrapped error")
	}
	if !errors.Is(cmpErr, baseErr) {
		t.Error("Should be able to find base error using errors.Is")
	}

	var target *ComparisonError
	if !errors.As(fmt.Errorf("ctx: %w", cmpErr), &target) {
		t.Fatal("errors.As should find the comparison error")
	}
	if target.Operation != "remove" {
		t.Errorf("Expected operation 'remove', got '%s'", target.Operation)
	}
}
