// Package errs defines the typed error taxonomy shared by the audit ledger
// and the order lifecycle. Callers are expected to classify failures with
// errors.Is / errors.As rather than by message matching.
package errs

import (
	"errors"
	"fmt"
)

// Standard error functions re-exported for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

// ErrImmutableLedger is returned for any attempt to update or delete a ledger
// entry after it has been appended.
var ErrImmutableLedger = errors.New("ledger entries are append-only")

// ErrNotFound indicates a referenced record does not exist. It is deliberately
// distinct from ErrImmutableLedger and IntegrityError so that a missing record
// is never confused with a tampered one.
var ErrNotFound = errors.New("record not found")

// ValidationError reports malformed input rejected before any state mutation.
// A submission that fails validation never produces an order or a ledger entry.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Message)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// NewValidation builds a ValidationError for a single field.
func NewValidation(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ComplianceRejection reports that an order reached the compliance gate and
// failed a rule. It always accompanies exactly one order_rejected ledger entry.
type ComplianceRejection struct {
	RuleCode string
	Reason   string
}

func (e *ComplianceRejection) Error() string {
	return fmt.Sprintf("compliance: rule %s failed: %s", e.RuleCode, e.Reason)
}

// ConflictError reports a transition attempted from a terminal or otherwise
// incompatible state. The failed attempt is not a system event and produces no
// ledger entry.
type ConflictError struct {
	OrderID       string
	CurrentStatus string
	Attempted     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: order %s is %s, cannot %s", e.OrderID, e.CurrentStatus, e.Attempted)
}

// IntegrityError reports a broken hash chain link. It is fatal to trust in the
// audited range and must be surfaced to operators, never mapped to a routine
// not-found response.
type IntegrityError struct {
	FirstFailingID int64
	Reason         string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity: chain broken at entry %d: %s", e.FirstFailingID, e.Reason)
}

// StorageError wraps an I/O failure from the persistence layer. It is
// propagated as-is to the caller; an audit system that silently drops writes
// is worse than one that visibly fails.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError for the given operation. A nil err
// returns nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
