package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeNotFound, "resource not found")
		if err.Error() != "[NOT_FOUND] resource not found" {
			t.Errorf("expected [NOT_FOUND] resource not found, got %s", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("original error")
		err := Wrap(original, CodeSerialization, "decode failure")
		expected := "[SERIALIZATION_ERROR] decode failure: original error"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
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
		err := fmt.Errorf("outer: %w", Wrap(errors.New("boom"), CodeIO, "write"))
		if !IsCode(err, CodeIO) {
			t.Error("expected IsCode to see through fmt.Errorf wrapping")
		}
	})
}

func TestWrapIO(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{name: "missing", err: fs.ErrNotExist, want: CodeNotFound},
		{name: "permission", err: fs.ErrPermission, want: CodePermissionDenied},
		{name: "other", err: errors.New("disk full"), want: CodeIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WrapIO(&fs.PathError{Op: "open", Path: "/x", Err: tt.err}, "read", "/x")
			if !IsCode(err, tt.want) {
				t.Fatalf("expected %s, got %v", tt.want, err)
			}
		})
	}

	if WrapIO(nil, "read", "/x") != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestAddContext(t *testing.T) {
	err := AddContext(New(CodeIO, "write failed"), CtxKey, "abc")
	var de *DomainError
	if !errors.As(err, &de) {
		t.Fatal("expected DomainError")
	}
	if de.Context[CtxKey] != "abc" {
		t.Fatalf("expected context key, got %v", de.Context)
	}

	foreign := AddContext(errors.New("plain"), CtxPath, "/tmp")
	if !IsCode(foreign, CodeInternal) {
		t.Fatalf("expected foreign errors to become internal, got %v", foreign)
	}
}
