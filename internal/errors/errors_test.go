package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestJBError_Error(t *testing.T) {
	err := &JBError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "entry not found: abc",
	}

	expected := "NOT_FOUND: entry not found: abc"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *JBError
		code   ErrorCode
		status int
	}{
		{"invalid request", NewInvalidRequest("name must not be empty"), ErrInvalidRequest, 400},
		{"root immutable", NewRootImmutable("delete"), ErrRootImmutable, 400},
		{"not found", NewNotFound("node", "abc"), ErrNotFound, 404},
		{"parent not found", NewParentNotFound("p1"), ErrParentNotFound, 404},
		{"file not found", NewFileNotFound("/tmp/x.jb"), ErrFileNotFound, 404},
		{"duplicate id", NewDuplicateID("abc"), ErrDuplicateID, 409},
		{"cyclic move", NewCyclicMove("a", "b"), ErrCyclicMove, 409},
		{"self parent", NewSelfParent("a"), ErrSelfParent, 409},
		{"no document", NewNoDocument(), ErrNoDocument, 409},
		{"invalid document", NewInvalidDocument("/tmp/x.jb", "missing root"), ErrInvalidDocument, 422},
		{"cancelled", NewCancelled("open"), ErrCancelled, 499},
		{"persistence", NewPersistence("write", "/tmp/x.jb", fmt.Errorf("disk full")), ErrPersistence, 500},
		{"internal", NewInternal(fmt.Errorf("boom")), ErrInternal, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.Status != tt.status {
				t.Errorf("Status = %d, want %d", tt.err.Status, tt.status)
			}
			if tt.err.Message == "" {
				t.Error("Message should not be empty")
			}
		})
	}
}

func TestNewNotFound_Details(t *testing.T) {
	err := NewNotFound("tab", "t1")

	if err.Details["kind"] != "tab" {
		t.Errorf("Details[kind] = %v, want %q", err.Details["kind"], "tab")
	}
	if err.Details["id"] != "t1" {
		t.Errorf("Details[id] = %v, want %q", err.Details["id"], "t1")
	}
}

func TestNewCyclicMove_Details(t *testing.T) {
	err := NewCyclicMove("work", "child")

	if err.Details["id"] != "work" {
		t.Errorf("Details[id] = %v, want %q", err.Details["id"], "work")
	}
	if err.Details["new_parent_id"] != "child" {
		t.Errorf("Details[new_parent_id] = %v, want %q", err.Details["new_parent_id"], "child")
	}
}

func TestNewPersistence_Unwrap(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := NewPersistence("write", "/tmp/x.jb", cause)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if err.Details["path"] != "/tmp/x.jb" {
		t.Errorf("Details[path] = %v, want %q", err.Details["path"], "/tmp/x.jb")
	}
}

func TestNewInternal_NilError(t *testing.T) {
	err := NewInternal(nil)

	if err.Message != "internal error" {
		t.Errorf("Message = %q, want %q", err.Message, "internal error")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching code", NewNotFound("node", "x"), ErrNotFound, true},
		{"different code", NewNotFound("node", "x"), ErrDuplicateID, false},
		{"wrapped", fmt.Errorf("outer: %w", NewSelfParent("x")), ErrSelfParent, true},
		{"plain error", fmt.Errorf("plain"), ErrInternal, false},
		{"nil", nil, ErrNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsCancelled(t *testing.T) {
	if !IsCancelled(NewCancelled("pick")) {
		t.Error("IsCancelled should be true for a cancellation")
	}
	if IsCancelled(NewInternal(nil)) {
		t.Error("IsCancelled should be false for an internal error")
	}
}
