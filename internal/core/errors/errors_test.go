package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeNotFound, "root not found")
		if err.Error() != "[NOT_FOUND] root not found" {
			t.Errorf("expected [NOT_FOUND] root not found, got %s", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("unexpected token")
		err := Wrap(original, CodeParseFailure, "syntax error")
		expected := "[PARSE_FAILURE] syntax error: unexpected token"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
		if !errors.Is(err, original) {
			t.Error("expected wrapped error to unwrap to the original")
		}
	})

	t.Run("ContextIsSorted", func(t *testing.T) {
		err := AddContext(New(CodeProvider, "helper died"), CtxPath, "/tmp/a.py")
		err = AddContext(err, CtxImport, "os.path")
		expected := "[PROVIDER_ERROR] helper died (import=os.path path=/tmp/a.py)"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
	})

	t.Run("AddContextPromotesPlainErrors", func(t *testing.T) {
		err := AddContext(errors.New("boom"), CtxOperation, "scan")
		if !IsCode(err, CodeInternal) {
			t.Errorf("expected CodeInternal, got %q", CodeOf(err))
		}
	})

	t.Run("IsCode", func(t *testing.T) {
		err := New(CodeValidationError, "invalid input")
		if !IsCode(err, CodeValidationError) {
			t.Error("expected IsCode to return true for CodeValidationError")
		}
		if IsCode(err, CodeNotFound) {
			t.Error("expected IsCode to return false for CodeNotFound")
		}
	})

	t.Run("IsCodeThroughFmtWrap", func(t *testing.T) {
		err := fmt.Errorf("run: %w", New(CodeNotFound, "missing"))
		if !IsCode(err, CodeNotFound) {
			t.Error("expected IsCode to see through fmt wrapping")
		}
		if CodeOf(errors.New("plain")) != "" {
			t.Error("expected empty code for plain errors")
		}
	})
}
