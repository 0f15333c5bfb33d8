package service

import (
	"errors"
	"fmt"
	"strings"

	"comandapos/internal/repository"

	"github.com/google/uuid"
)

// kindError is a sentinel that can belong to a broader kind, so that
// errors.Is(ErrAlreadyOpen, ErrPrecondition) holds.
type kindError struct {
	msg    string
	parent error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.parent }

func newKind(msg string, parent error) error { return &kindError{msg: msg, parent: parent} }

// Broad kinds. Handlers map these to HTTP statuses.
var (
	// ErrValidation: bad input, rejected before any write.
	ErrValidation = newKind("validation failed", nil)

	// ErrPrecondition: the request is well formed but the current state
	// does not allow it. Never retried.
	ErrPrecondition = newKind("precondition failed", nil)

	ErrNotFound = newKind("not found", nil)

	// ErrStore: the backend failed. The caller may retry the whole operation.
	ErrStore = newKind("store error", nil)
)

// Preconditions.
var (
	ErrAlreadyOpen           = newKind("a cash session is already open for this collaborator", ErrPrecondition)
	ErrSessionNotOpen        = newKind("no open cash session", ErrPrecondition)
	ErrSessionNotOwned       = newKind("cash session belongs to another collaborator", ErrPrecondition)
	ErrPaymentMethodRequired = newKind("payment method is required to finalize", ErrPrecondition)
	ErrOrderNotOpen          = newKind("order is not open", ErrPrecondition)
	ErrInsufficientCash      = newKind("not enough cash in the drawer", ErrPrecondition)
)

// Store failures with a specific meaning.
var (
	ErrResolutionFailed     = newKind("could not resolve the active cash session", ErrStore)
	ErrReconciliationFailed = newKind("could not compute reconciliation", ErrStore)
	ErrOpenFailed           = newKind("cash session open failed", ErrStore)
	ErrOrderUpdateFailed    = newKind("order update failed", ErrStore)
	ErrCloseInconsistent    = newKind("cash session close partially applied, manual reconciliation required", ErrStore)
)

// OpError carries the operation and entity for manual recovery. Kind is one
// of the sentinels above; Err is the underlying cause; Compensation is the
// error of a failed rollback, if any.
type OpError struct {
	Op           string
	EntityID     uuid.UUID
	Kind         error
	Err          error
	Compensation error
}

func (e *OpError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.EntityID != uuid.Nil {
		fmt.Fprintf(&b, " %s", e.EntityID)
	}
	fmt.Fprintf(&b, ": %v", e.Kind)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Compensation != nil {
		fmt.Fprintf(&b, " (rollback failed: %v)", e.Compensation)
	}
	return b.String()
}

func (e *OpError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.Compensation != nil {
		errs = append(errs, e.Compensation)
	}
	return errs
}

func opErr(op string, id uuid.UUID, kind, err error) *OpError {
	return &OpError{Op: op, EntityID: id, Kind: kind, Err: err}
}

func validationErr(op, format string, args ...any) error {
	return &OpError{Op: op, Kind: ErrValidation, Err: fmt.Errorf(format, args...)}
}

// IsInconsistent reports whether err signals a partially-applied write that
// needs an operator: a close that could not be rolled back, or any operation
// whose compensating write failed.
func IsInconsistent(err error) bool {
	if errors.Is(err, ErrCloseInconsistent) {
		return true
	}
	var oe *OpError
	return errors.As(err, &oe) && oe.Compensation != nil
}

// storeErr classifies a repository error: missing rows become ErrNotFound,
// everything else is a store failure.
func storeErr(op string, id uuid.UUID, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return opErr(op, id, ErrNotFound, err)
	}
	return opErr(op, id, ErrStore, err)
}
