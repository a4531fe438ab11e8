package flow

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a path does not resolve to a port or blackbox.
	ErrNotFound = errors.New("not found")
	// ErrDestroyed is returned when operating on a destroyed node.
	ErrDestroyed = errors.New("destroyed")
	// ErrShape is returned for operations that do not apply to a port's shape.
	ErrShape = errors.New("invalid shape")
	// ErrUnknownGeneric is returned when a port names a generic its blackbox does not declare.
	ErrUnknownGeneric = errors.New("unknown generic")
	// ErrStreamDepth is returned when a stream cannot be peeled any further.
	ErrStreamDepth = errors.New("insufficient stream depth")
	// ErrRejected is wrapped by every RejectionError.
	ErrRejected = errors.New("connection rejected")
)

// ErrorClass tells callers whether a failure is a usage mistake or a broken invariant.
type ErrorClass int

const (
	// ClassInvalid marks recoverable failures caused by the request itself.
	ClassInvalid ErrorClass = iota
	// ClassFatal marks structural errors; the triggering operation was aborted.
	ClassFatal
)

func (c ErrorClass) String() string {
	switch c {
	case ClassInvalid:
		return "invalid"
	case ClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ClassifiedError attaches a class and the failing operation to an error.
type ClassifiedError struct {
	Class     ErrorClass
	Component string
	Operation string
	Err       error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Component, e.Operation, e.Err)
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

func fatal(component, operation string, err error) error {
	return &ClassifiedError{Class: ClassFatal, Component: component, Operation: operation, Err: err}
}

func invalid(component, operation string, err error) error {
	return &ClassifiedError{Class: ClassInvalid, Component: component, Operation: operation, Err: err}
}

// IsFatal reports whether err carries ClassFatal.
func IsFatal(err error) bool {
	var ce *ClassifiedError
	return errors.As(err, &ce) && ce.Class == ClassFatal
}

// Reason names the checker rule that rejected a connection.
type Reason string

const (
	ReasonDestroyed Reason = "destroyed"
	ReasonDirection Reason = "direction"
	ReasonScope     Reason = "scope"
	ReasonGhost     Reason = "ghost"
	ReasonFanIn     Reason = "fan-in"
	ReasonCycle     Reason = "cycle"
	ReasonDelegate  Reason = "delegate nesting"
	ReasonType      Reason = "type"
	ReasonStream    Reason = "stream"
	ReasonGeneric   Reason = "generic"
)

// RejectionError explains why two ports may not be connected.
type RejectionError struct {
	Reason Reason
	From   string
	To     string
	Detail string
}

func (e *RejectionError) Error() string {
	msg := fmt.Sprintf("%s -> %s: %s", e.From, e.To, e.Reason)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *RejectionError) Unwrap() error { return ErrRejected }

// RejectionReason extracts the reason of a rejection, or "".
func RejectionReason(err error) Reason {
	var re *RejectionError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}
