package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a jb error code.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"  // 400
	ErrRootImmutable   ErrorCode = "ROOT_IMMUTABLE"   // 400
	ErrNotFound        ErrorCode = "NOT_FOUND"        // 404
	ErrParentNotFound  ErrorCode = "PARENT_NOT_FOUND" // 404
	ErrFileNotFound    ErrorCode = "FILE_NOT_FOUND"   // 404
	ErrDuplicateID     ErrorCode = "DUPLICATE_ID"     // 409
	ErrCyclicMove      ErrorCode = "CYCLIC_MOVE"      // 409
	ErrSelfParent      ErrorCode = "SELF_PARENT"      // 409
	ErrNoDocument      ErrorCode = "NO_DOCUMENT"      // 409
	ErrInvalidDocument ErrorCode = "INVALID_DOCUMENT" // 422
	ErrCancelled       ErrorCode = "CANCELLED"        // 499
	ErrPersistence     ErrorCode = "PERSISTENCE"      // 500
	ErrInternal        ErrorCode = "INTERNAL"         // 500
)

// JBError represents a structured error with code, status, and details.
type JBError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *JBError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *JBError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *JBError {
	return &JBError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewRootImmutable creates a 400 error when an operation targets the root folder.
func NewRootImmutable(op string) *JBError {
	return &JBError{
		Code:    ErrRootImmutable,
		Status:  400,
		Message: fmt.Sprintf("cannot %s the root folder", op),
		Details: map[string]any{"operation": op},
	}
}

// NewNotFound creates a 404 error for a missing node, tab or other addressed item.
func NewNotFound(kind, id string) *JBError {
	return &JBError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, id),
		Details: map[string]any{"kind": kind, "id": id},
	}
}

// NewParentNotFound creates a 404 error when a parent id does not resolve to a folder.
func NewParentNotFound(parentID string) *JBError {
	return &JBError{
		Code:    ErrParentNotFound,
		Status:  404,
		Message: fmt.Sprintf("parent folder not found: %s", parentID),
		Details: map[string]any{"parent_id": parentID},
	}
}

// NewFileNotFound creates a 404 error when a file does not exist.
func NewFileNotFound(path string) *JBError {
	return &JBError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewDuplicateID creates a 409 error when a node id already exists in the tree.
func NewDuplicateID(id string) *JBError {
	return &JBError{
		Code:    ErrDuplicateID,
		Status:  409,
		Message: fmt.Sprintf("node id already exists: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewCyclicMove creates a 409 error when a folder would become its own descendant.
func NewCyclicMove(id, newParentID string) *JBError {
	return &JBError{
		Code:    ErrCyclicMove,
		Status:  409,
		Message: fmt.Sprintf("cannot move %s into its own descendant %s", id, newParentID),
		Details: map[string]any{"id": id, "new_parent_id": newParentID},
	}
}

// NewSelfParent creates a 409 error when a node is moved into itself.
func NewSelfParent(id string) *JBError {
	return &JBError{
		Code:    ErrSelfParent,
		Status:  409,
		Message: fmt.Sprintf("cannot move %s into itself", id),
		Details: map[string]any{"id": id},
	}
}

// NewNoDocument creates a 409 error for operations that need an open document.
func NewNoDocument() *JBError {
	return &JBError{
		Code:    ErrNoDocument,
		Status:  409,
		Message: "no document is open",
	}
}

// NewInvalidDocument creates a 422 error for a document file that parsed but is malformed.
func NewInvalidDocument(path, reason string) *JBError {
	return &JBError{
		Code:    ErrInvalidDocument,
		Status:  422,
		Message: fmt.Sprintf("invalid document %s: %s", path, reason),
		Details: map[string]any{"path": path, "reason": reason},
	}
}

// NewCancelled creates an error for a dismissed dialog or a cancelled context.
// Callers treat it as a benign no-op outcome.
func NewCancelled(op string) *JBError {
	return &JBError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
		Details: map[string]any{"operation": op},
	}
}

// NewPersistence creates a 500 error for a failed document read or write.
func NewPersistence(op, path string, err error) *JBError {
	msg := fmt.Sprintf("%s %s failed", op, path)
	if err != nil {
		msg = fmt.Sprintf("%s %s: %v", op, path, err)
	}
	return &JBError{
		Code:    ErrPersistence,
		Status:  500,
		Message: msg,
		Details: map[string]any{"operation": op, "path": path},
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *JBError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &JBError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if an error is (or wraps) a JBError with the given code.
func Is(err error, code ErrorCode) bool {
	var jbErr *JBError
	if stderrors.As(err, &jbErr) {
		return jbErr.Code == code
	}
	return false
}

// IsCancelled reports whether err is a cancellation outcome.
func IsCancelled(err error) bool {
	return Is(err, ErrCancelled)
}
