// Package errors provides structured error handling for the bridge.
package errors

import (
	"fmt"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindRegistration indicates a registration-time failure (missing required
	// method, malformed version, duplicate registration).
	KindRegistration
	// KindIntrospection indicates a member that could not be introspected.
	KindIntrospection
	// KindCall indicates a failure while invoking a host method.
	KindCall
	// KindQuery indicates a host failure during a model query. Query errors are
	// absorbed at the adapter boundary and never reach the engine's call stack.
	KindQuery
	// KindEngine indicates a failure in engine registration or dispatch.
	KindEngine
	// KindPanic indicates a recovered panic.
	KindPanic
)

func (k ErrorKind) String() string {
	switch k {
	case KindRegistration:
		return "registration"
	case KindIntrospection:
		return "introspection"
	case KindCall:
		return "call"
	case KindQuery:
		return "query"
	case KindEngine:
		return "engine"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// BridgeError represents a structured error in the bridge.
type BridgeError struct {
	// Op is the operation that failed (e.g., "bridge.RegisterInstance").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Type is the host type name involved, if applicable.
	Type string
	// Member is the host member (method or property) involved, if applicable.
	Member string
	// Err is the underlying error.
	Err error
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *BridgeError) Error() string {
	switch {
	case e.Type != "" && e.Member != "":
		return fmt.Sprintf("%s [%s] %s.%s: %v", e.Op, e.Kind, e.Type, e.Member, e.Err)
	case e.Type != "":
		return fmt.Sprintf("%s [%s] %s: %v", e.Op, e.Kind, e.Type, e.Err)
	default:
		return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
	}
}

func (e *BridgeError) Unwrap() error {
	return e.Err
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "model.RowCount").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// ErrorHandler receives errors reported by the bridge.
type ErrorHandler interface {
	// HandleError is called when an error occurs.
	HandleError(err *BridgeError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
}
