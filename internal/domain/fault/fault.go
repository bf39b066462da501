// Package fault defines the typed business failures surfaced by the
// workflow services. Business failures are deterministic outcomes, not
// exceptions: callers must be able to distinguish "not allowed" from
// "try again", so storage failures carry their own kind.
package fault

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failure
type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindInvalidTransition Kind = "INVALID_TRANSITION"
	KindOutOfOrder        Kind = "OUT_OF_ORDER"
	KindDuplicate         Kind = "DUPLICATE_RESOURCE"
	KindValidation        Kind = "VALIDATION_ERROR"
	KindStorage           Kind = "STORAGE_FAILURE"
)

// Fault is a typed failure with a stable machine-readable kind, a human
// message, and enough context to explain why the action failed
type Fault struct {
	Kind    Kind
	Message string

	// CurrentState is set on invalid-transition faults
	CurrentState string
	// Action is the attempted transition, if any
	Action string
	// BlockingID / BlockingDate identify the older queued entity on
	// out-of-order faults
	BlockingID   int64
	BlockingDate time.Time

	cause error
}

// Error implements the error interface
func (f *Fault) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Unwrap exposes the underlying cause, if any
func (f *Fault) Unwrap() error {
	return f.cause
}

// NotFound reports a missing entity
func NotFound(entity string, id int64) *Fault {
	return &Fault{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s %d does not exist", entity, id),
	}
}

// InvalidTransition reports an action attempted from a state that does not
// permit it
func InvalidTransition(entity string, id int64, currentState, action string) *Fault {
	return &Fault{
		Kind:         KindInvalidTransition,
		Message:      fmt.Sprintf("%s %d does not permit %s from state %s", entity, id, action, currentState),
		CurrentState: currentState,
		Action:       action,
	}
}

// OutOfOrder reports an ordering-gate denial, naming the older request that
// must be processed first
func OutOfOrder(blockingID int64, blockingDate time.Time) *Fault {
	return &Fault{
		Kind:         KindOutOfOrder,
		Message:      fmt.Sprintf("request %d (created %s) must be processed first", blockingID, blockingDate.Format("2006-01-02")),
		BlockingID:   blockingID,
		BlockingDate: blockingDate,
	}
}

// Duplicate reports a uniqueness violation
func Duplicate(msg string) *Fault {
	return &Fault{Kind: KindDuplicate, Message: msg}
}

// Validation reports malformed or missing input
func Validation(msg string) *Fault {
	return &Fault{Kind: KindValidation, Message: msg}
}

// Validationf reports malformed or missing input with formatting
func Validationf(format string, args ...interface{}) *Fault {
	return &Fault{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Storage wraps a repository or document-store failure. These are the only
// faults that are candidates for caller-level retry.
func Storage(err error) *Fault {
	return &Fault{Kind: KindStorage, Message: "storage failure", cause: err}
}

// KindOf extracts the failure kind, or "" for non-fault errors
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// Is reports whether err is a fault of the given kind
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsStorage reports whether err is a transient storage failure
func IsStorage(err error) bool {
	return Is(err, KindStorage)
}

// As extracts the fault from err, if any
func As(err error) (*Fault, bool) {
	var f *Fault
	ok := errors.As(err, &f)
	return f, ok
}
