// Package dbsperr defines the error taxonomy shared across the dbsp
// modules: the Z-set algebra, the circuit runtime, checkpointing, and
// persistent storage all report failures through a single *Error type
// so callers can dispatch on Kind with errors.As.
package dbsperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how the runtime should react to it.
type Kind int

const (
	// InvalidConfig marks malformed configuration or an out-of-bounds
	// tuning knob. Fatal at runtime creation.
	InvalidConfig Kind = iota
	// ChannelClosed marks a producer-side shutdown observed by a
	// consumer. Recoverable: the step completes with no output from
	// the affected operator.
	ChannelClosed
	// StepTimeout marks a step that exceeded its deadline. The
	// runtime transitions to Faulted.
	StepTimeout
	// StorageIO marks a failure in the persistent storage layer.
	StorageIO
	// Serialization marks a malformed checkpoint/restore payload.
	Serialization
	// CrcMismatch marks a WAL or manifest checksum failure.
	CrcMismatch
	// InvariantViolation marks a broken core invariant (a leaked
	// zero-weight entry, an unsorted batch, ...). Always fatal.
	InvariantViolation
	// Cancelled marks cooperative shutdown. Not a failure outcome.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case InvalidConfig:
		return "InvalidConfig"
	case ChannelClosed:
		return "ChannelClosed"
	case StepTimeout:
		return "StepTimeout"
	case StorageIO:
		return "StorageIO"
	case Serialization:
		return "Serialization"
	case CrcMismatch:
		return "CrcMismatch"
	case InvariantViolation:
		return "InvariantViolation"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can branch on
// failure class without parsing message text.
type Error struct {
	Kind Kind
	Op   string // component/operation that produced the error, e.g. "circuit.step"
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error for op/kind, wrapping cause (which may be nil).
func New(op string, kind Kind, cause error) *Error {
	return &Error{Op: op, Kind: kind, Err: cause}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Fatal reports whether a Kind always requires the runtime to
// transition away from Running (StepTimeout and InvariantViolation).
// ChannelClosed, StorageIO (when retried upstream), Serialization, and
// CrcMismatch are recoverable at the caller's discretion; Cancelled is
// not a failure at all.
func (k Kind) Fatal() bool {
	return k == StepTimeout || k == InvariantViolation
}
