// Package errors provides centralized error definitions and error handling utilities
// for actbridge. It defines sentinel errors per subsystem, domain-specific error
// types carrying context, and classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - BridgeError: lifecycle bridge construction and forwarding
//   - RegistrationError: observer registration in the callback registry
//   - RuntimeError: runtime adapters (simulated or child process)
//   - PowerError: power status sources
//
// ValidationError is the one semantic error type and covers invalid input such
// as malformed lifecycle scripts.
//
// # Usage
//
//	err := errors.NewBridgeError("handoff wait interrupted", errors.ErrHandoffInterrupted)
//
//	if errors.Is(err, errors.ErrHandoffInterrupted) { ... }
//
//	var regErr *errors.RegistrationError
//	if errors.As(err, &regErr) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Handoff-related sentinel errors
var (
	// ErrHandoffInterrupted indicates the consumer stopped waiting before a value arrived.
	ErrHandoffInterrupted = New("handoff wait interrupted")
	// ErrHandoffDelivered indicates a second value was offered to a one-shot handoff.
	ErrHandoffDelivered = New("handoff value already delivered")
	// ErrHandoffTaken indicates a second read of a one-shot handoff.
	ErrHandoffTaken = New("handoff value already taken")
)

// Bridge-related sentinel errors
var (
	// ErrNilRuntime indicates a bridge was constructed without a runtime.
	ErrNilRuntime = New("runtime is nil")
	// ErrNilHost indicates a bridge was constructed without a host.
	ErrNilHost = New("host is nil")
	// ErrBridgeFailed indicates the runtime never delivered a valid handle.
	ErrBridgeFailed = New("runtime failed to start")
	// ErrBridgeDestroyed indicates an operation on a destroyed bridge.
	ErrBridgeDestroyed = New("bridge destroyed")
)

// Registration-related sentinel errors
var (
	// ErrNilObserver indicates an observer without a callable method was registered.
	ErrNilObserver = New("observer is nil")
	// ErrUnknownSlot indicates a slot name that the registry does not know.
	ErrUnknownSlot = New("unknown callback slot")
)

// Runtime-related sentinel errors
var (
	// ErrSentinelHandle indicates a runtime tried to signal readiness with the sentinel.
	ErrSentinelHandle = New("handle must not be the sentinel")
	// ErrRuntimeExited indicates the runtime exited while a call was in flight.
	ErrRuntimeExited = New("runtime exited")
	// ErrEmptyCommand indicates a process runtime without a command line.
	ErrEmptyCommand = New("runtime command is empty")
)

// Power-related sentinel errors
var (
	// ErrNoBattery indicates no battery supply was found.
	ErrNoBattery = New("no battery found")
	// ErrSourceClosed indicates use of a closed power source.
	ErrSourceClosed = New("power source closed")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Error Interface
// -----------------------------------------------------------------------------

// BridgeErr is the base interface for all actbridge errors.
// It extends the standard error interface with classification methods.
type BridgeErr interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error {
	return e.cause
}

func (e *baseError) Severity() Severity {
	return e.severity
}

func (e *baseError) IsRetryable() bool {
	return e.retryable
}

func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// format renders "<kind> [k=v, ...]: message: cause".
func (e *baseError) format(kind string, parts []string) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// BridgeError represents errors raised by the lifecycle bridge.
//
// Example:
//
//	err := errors.NewBridgeError("construction failed", errors.ErrHandoffInterrupted)
//	fmt.Println(err) // "bridge error: construction failed: handoff wait interrupted"
type BridgeError struct {
	baseError
	Phase string
	Event string
}

// NewBridgeError creates a new BridgeError. Bridge errors are critical: the
// bridge has no recovery path once construction or forwarding fails.
func NewBridgeError(message string, cause error) *BridgeError {
	return &BridgeError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityCritical,
			userFacing: true,
		},
	}
}

// WithPhase adds the lifecycle phase to the error context.
func (e *BridgeError) WithPhase(phase string) *BridgeError {
	e.Phase = phase
	return e
}

// WithEvent adds the lifecycle event to the error context.
func (e *BridgeError) WithEvent(event string) *BridgeError {
	e.Event = event
	return e
}

// Error returns the formatted error message.
func (e *BridgeError) Error() string {
	var parts []string
	if e.Phase != "" {
		parts = append(parts, fmt.Sprintf("phase=%s", e.Phase))
	}
	if e.Event != "" {
		parts = append(parts, fmt.Sprintf("event=%s", e.Event))
	}
	return e.format("bridge error", parts)
}

// RegistrationError represents a failed observer registration.
type RegistrationError struct {
	baseError
	Slot string
}

// NewRegistrationError creates a new RegistrationError.
func NewRegistrationError(message string, cause error) *RegistrationError {
	return &RegistrationError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithSlot adds the slot name to the error context.
func (e *RegistrationError) WithSlot(slot string) *RegistrationError {
	e.Slot = slot
	return e
}

// Error returns the formatted error message.
func (e *RegistrationError) Error() string {
	var parts []string
	if e.Slot != "" {
		parts = append(parts, fmt.Sprintf("slot=%s", e.Slot))
	}
	return e.format("registration error", parts)
}

// RuntimeError represents errors from runtime adapters.
//
// Example:
//
//	err := errors.NewRuntimeError("start child", cause).WithKind("process").WithExitCode(127)
type RuntimeError struct {
	baseError
	Kind     string
	ExitCode int
}

// NewRuntimeError creates a new RuntimeError.
func NewRuntimeError(message string, cause error) *RuntimeError {
	return &RuntimeError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithKind adds the runtime kind to the error context.
func (e *RuntimeError) WithKind(kind string) *RuntimeError {
	e.Kind = kind
	return e
}

// WithExitCode adds the runtime exit code to the error context.
func (e *RuntimeError) WithExitCode(code int) *RuntimeError {
	e.ExitCode = code
	return e
}

// Error returns the formatted error message.
func (e *RuntimeError) Error() string {
	var parts []string
	if e.Kind != "" {
		parts = append(parts, fmt.Sprintf("runtime=%s", e.Kind))
	}
	if e.ExitCode != 0 {
		parts = append(parts, fmt.Sprintf("exit=%d", e.ExitCode))
	}
	return e.format("runtime error", parts)
}

// PowerError represents errors from power status sources.
type PowerError struct {
	baseError
	Source string
	Path   string
}

// NewPowerError creates a new PowerError. Reading power status is usually
// transient, so power errors default to retryable.
func NewPowerError(message string, cause error) *PowerError {
	return &PowerError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
	}
}

// WithSource adds the power source kind to the error context.
func (e *PowerError) WithSource(source string) *PowerError {
	e.Source = source
	return e
}

// WithPath adds the filesystem path that failed to the error context.
func (e *PowerError) WithPath(path string) *PowerError {
	e.Path = path
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *PowerError) WithRetryable(r bool) *PowerError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *PowerError) Error() string {
	var parts []string
	if e.Source != "" {
		parts = append(parts, fmt.Sprintf("source=%s", e.Source))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}
	return e.format("power error", parts)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("unknown lifecycle event")
//	err = err.WithField("steps[3].event").WithValue("suspend")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return e.format("validation error", parts)
}

// Is matches ErrInvalidInput in addition to the wrapped cause.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var bridgeErr BridgeErr
	if As(err, &bridgeErr) {
		return bridgeErr.IsRetryable()
	}
	return false
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var bridgeErr BridgeErr
	if As(err, &bridgeErr) {
		return bridgeErr.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement BridgeErr.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var bridgeErr BridgeErr
	if As(err, &bridgeErr) {
		return bridgeErr.Severity()
	}
	return SeverityError
}

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
