package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for adapter errors.
type ErrorCode string

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// Backend availability error codes. These are transient: retried locally and
// counted by the owning circuit breaker.
const (
	BACKEND_TIMEOUT      ErrorCode = "BACKEND_TIMEOUT"
	BACKEND_UNREACHABLE  ErrorCode = "BACKEND_UNREACHABLE"
	BACKEND_TRANSPORT    ErrorCode = "BACKEND_TRANSPORT"
	BACKEND_UNAVAILABLE  ErrorCode = "BACKEND_UNAVAILABLE"
	BACKEND_RATE_LIMITED ErrorCode = "BACKEND_RATE_LIMITED"
	POOL_EXHAUSTED       ErrorCode = "POOL_EXHAUSTED"
	POOL_CLOSED          ErrorCode = "POOL_CLOSED"
	CIRCUIT_OPEN         ErrorCode = "CIRCUIT_OPEN"
)

// Domain error codes. A reachable backend gave a well-formed answer that the
// caller must see as-is; never retried, never counted by a breaker.
const (
	ENTITY_NOT_FOUND ErrorCode = "ENTITY_NOT_FOUND"
	INVALID_QUERY    ErrorCode = "INVALID_QUERY"
	QUERY_REJECTED   ErrorCode = "QUERY_REJECTED"
	UNKNOWN_QUERY    ErrorCode = "UNKNOWN_QUERY"
)

// Adapter outcome error codes
const (
	NO_BACKEND_AVAILABLE ErrorCode = "NO_BACKEND_AVAILABLE"
	QUERY_FAILED         ErrorCode = "QUERY_FAILED"
	QUERY_TIMEOUT        ErrorCode = "QUERY_TIMEOUT"
	ADAPTER_CLOSED       ErrorCode = "ADAPTER_CLOSED"
)

// ErrorKind classifies an error for retry and circuit-breaker decisions.
type ErrorKind int

const (
	// KindUnknown is an unclassified error.
	KindUnknown ErrorKind = iota
	// KindTransient reflects backend unavailability (timeouts, refusals, transport).
	KindTransient
	// KindDomain reflects a valid but unsatisfying answer from a reachable backend.
	KindDomain
	// KindAvailability is the terminal outcome when no backend could answer.
	KindAvailability
	// KindConfig is a configuration or construction problem.
	KindConfig
)

// String returns a human-readable representation of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindDomain:
		return "domain"
	case KindAvailability:
		return "availability"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Error represents a structured error with error code, classification, the
// backend that produced it and an optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Kind    ErrorKind
	Backend Backend
	Cause   error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *Error) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Code)
	if e.Backend != BackendUnspecified {
		prefix = fmt.Sprintf("[%s %s]", e.Code, e.Backend)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// Retryable reports whether the error is worth another attempt.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransient
}

// NewError creates a new unclassified Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates a new unclassified Error that wraps an existing error.
func WrapError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// NewTransientError creates a backend-level error that is retried and counted
// toward the backend's circuit breaker.
func NewTransientError(code ErrorCode, backend Backend, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Kind: KindTransient, Backend: backend, Cause: cause}
}

// NewDomainError creates an error describing a well-formed backend answer the
// caller has to handle, such as a missing entity.
func NewDomainError(code ErrorCode, backend Backend, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Kind: KindDomain, Backend: backend, Cause: cause}
}

// NewConfigError creates a configuration error.
func NewConfigError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Kind: KindConfig, Cause: cause}
}

// NoBackendAvailable is returned when every backend's circuit is open and the
// cache could not answer.
func NoBackendAvailable(query string) *Error {
	return &Error{
		Code:    NO_BACKEND_AVAILABLE,
		Message: fmt.Sprintf("no backend available for %q: all circuits open", query),
		Kind:    KindAvailability,
	}
}

// QueryFailed is returned when the backends were attempted and none succeeded.
// The last backend error is kept as the cause.
func QueryFailed(query string, last error) *Error {
	return &Error{
		Code:    QUERY_FAILED,
		Message: fmt.Sprintf("query %q failed on all backends", query),
		Kind:    KindAvailability,
		Cause:   last,
	}
}

// QueryTimeout is returned when the caller's deadline expired before any
// backend answered. The last backend error, if any, is kept as the cause.
func QueryTimeout(query string, last error) *Error {
	return &Error{
		Code:    QUERY_TIMEOUT,
		Message: fmt.Sprintf("query %q timed out", query),
		Kind:    KindAvailability,
		Cause:   last,
	}
}

// AdapterClosed is returned by Execute after the adapter was closed.
func AdapterClosed() *Error {
	return &Error{Code: ADAPTER_CLOSED, Message: "adapter is closed", Kind: KindAvailability}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the code of the outermost *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsTransient reports whether err is a backend-level, retry-worthy failure.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// IsDomain reports whether err is a domain-level answer from a reachable backend.
func IsDomain(err error) bool {
	return KindOf(err) == KindDomain
}
