package reconcile

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// The engine classifies every failure into one of six kinds. The kinds are
// part of the caller contract: snapshot privilege failures abort before a
// plan exists, conflicts abort before execution, and execution failures
// carry the index of the statement that was rejected.

// NotFoundError reports that a resource required to exist is absent.
// The catalog readers themselves signal absence through State.Exists;
// this error only appears when absence violates the requested operation.
type NotFoundError struct {
	Kind Kind
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s does not exist", e.Kind, e.Name)
}

// InsufficientPrivilegeError reports that a catalog view needed for the
// snapshot is hidden from the session. It is never folded into "absent".
type InsufficientPrivilegeError struct {
	View string
	Err  error
}

func (e *InsufficientPrivilegeError) Error() string {
	return fmt.Sprintf("insufficient privilege reading %s: %v", e.View, e.Err)
}

func (e *InsufficientPrivilegeError) Unwrap() error { return e.Err }

// ValidationError reports desired state that fails normalization.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid desired state: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid desired state: %s", e.Message)
}

// NewValidationErrorf constructs a ValidationError for the given field.
func NewValidationErrorf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConflictError reports a destructive plan applied without acknowledgement.
type ConflictError struct {
	Kind Kind
	Name string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf(
		"plan for %s %s contains destructive operations; re-run with acknowledgement to apply them",
		e.Kind, e.Name)
}

// ExecutionError reports a statement rejected by the database. Statements
// before Index are already committed; statements after it were never
// attempted.
type ExecutionError struct {
	Index     int
	Statement string
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("statement %d rejected: %s: %v", e.Index, e.Statement, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// ConnectivityError reports the transport to the database was lost
// mid-pass. The underlying error is propagated unchanged.
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("connection lost: %v", e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	return errors.HasType(err, (*NotFoundError)(nil))
}

// IsInsufficientPrivilege reports whether err is an InsufficientPrivilegeError.
func IsInsufficientPrivilege(err error) bool {
	return errors.HasType(err, (*InsufficientPrivilegeError)(nil))
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	return errors.HasType(err, (*ValidationError)(nil))
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	return errors.HasType(err, (*ConflictError)(nil))
}

// IsConnectivity reports whether err is a ConnectivityError.
func IsConnectivity(err error) bool {
	return errors.HasType(err, (*ConnectivityError)(nil))
}
