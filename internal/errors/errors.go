// Package errors provides the unified error system for the core runtime.
// Every failure surfaced by the container, locator, builder, bootstrapper and
// lifecycle orchestrator is expressed as a *CoreError so callers can classify
// it with errors.As instead of string matching.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType defines the category of error for proper handling and response.
type ErrorType string

const (
	// Container and locator errors
	ErrorTypeDuplicateRegistration ErrorType = "DUPLICATE_REGISTRATION"
	ErrorTypeUnresolvedService     ErrorType = "UNRESOLVED_SERVICE"
	ErrorTypeServiceNotFound       ErrorType = "SERVICE_NOT_FOUND"

	// Builder errors
	ErrorTypeModuleConfiguration ErrorType = "MODULE_CONFIGURATION"

	// Lifecycle errors
	ErrorTypeNoManagersDiscovered  ErrorType = "NO_MANAGERS_DISCOVERED"
	ErrorTypeManagerInitialization ErrorType = "MANAGER_INITIALIZATION"
	ErrorTypeDependencyCycle       ErrorType = "DEPENDENCY_CYCLE"
	ErrorTypeMissingDependency     ErrorType = "MISSING_DEPENDENCY"

	// Generic categories
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeTimeout    ErrorType = "TIMEOUT"
	ErrorTypeInternal   ErrorType = "INTERNAL"
)

// ErrorSeverity defines the severity level for logging and monitoring.
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "LOW"
	SeverityMedium   ErrorSeverity = "MEDIUM"
	SeverityHigh     ErrorSeverity = "HIGH"
	SeverityCritical ErrorSeverity = "CRITICAL"
)

// CoreError is the single error type used across the core runtime.
type CoreError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`

	// Context fields; empty when not applicable.
	Capability string `json:"capability,omitempty"` // requested capability type
	Manager    string `json:"manager,omitempty"`    // manager display name
	Module     string `json:"module,omitempty"`     // builder module name

	Severity   ErrorSeverity `json:"severity"`
	Retryable  bool          `json:"retryable"`
	RetryAfter time.Duration `json:"retryAfter,omitempty"`
	Attempts   int           `json:"attempts,omitempty"`

	Cause error `json:"-"`
}

// Error implements the error interface.
func (e *CoreError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Type, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with the underlying cause.
func (e *CoreError) Unwrap() error {
	return e.Cause
}

// ============================================================================
// CONSTRUCTORS FOR THE CORE TAXONOMY
// ============================================================================

// DuplicateRegistration reports a strict-mode registration collision.
func DuplicateRegistration(capability string) *CoreError {
	return &CoreError{
		Type:       ErrorTypeDuplicateRegistration,
		Code:       "CAPABILITY_ALREADY_BOUND",
		Message:    fmt.Sprintf("capability %s is already registered", capability),
		Capability: capability,
		Severity:   SeverityMedium,
	}
}

// UnresolvedService reports a container resolution failure.
func UnresolvedService(capability string) *CoreError {
	return &CoreError{
		Type:       ErrorTypeUnresolvedService,
		Code:       "NO_BINDING",
		Message:    fmt.Sprintf("no registration found for capability %s", capability),
		Capability: capability,
		Severity:   SeverityMedium,
	}
}

// ServiceNotFound reports a locator resolution failure after all strategies
// (direct registration, cache, auto-discovery) were exhausted.
func ServiceNotFound(capability string) *CoreError {
	return &CoreError{
		Type:       ErrorTypeServiceNotFound,
		Code:       "ALL_STRATEGIES_EXHAUSTED",
		Message:    fmt.Sprintf("service %s not found by any lookup strategy", capability),
		Capability: capability,
		Severity:   SeverityMedium,
	}
}

// NoManagersDiscovered is the fatal bring-up error raised when a discovery
// pass finds zero managers.
func NoManagersDiscovered() *CoreError {
	return &CoreError{
		Type:     ErrorTypeNoManagersDiscovered,
		Code:     "EMPTY_DISCOVERY",
		Message:  "no managers discovered; cannot proceed with initialization",
		Severity: SeverityCritical,
	}
}

// ManagerInitialization reports a per-manager initialization failure after
// retries were exhausted. Absorbed by the phase executor, never fatal.
func ManagerInitialization(manager string, attempts int, cause error) *CoreError {
	return &CoreError{
		Type:      ErrorTypeManagerInitialization,
		Code:      "INIT_FAILED",
		Message:   fmt.Sprintf("manager %s failed to initialize after %d attempts", manager, attempts),
		Manager:   manager,
		Attempts:  attempts,
		Severity:  SeverityHigh,
		Retryable: false,
		Cause:     cause,
	}
}

// DependencyCycle reports a cycle found by validation over the manager
// dependency graph. Non-fatal.
func DependencyCycle(path []string) *CoreError {
	return &CoreError{
		Type:     ErrorTypeDependencyCycle,
		Code:     "CYCLE_DETECTED",
		Message:  fmt.Sprintf("dependency cycle detected: %s", strings.Join(path, " -> ")),
		Details:  strings.Join(path, " -> "),
		Severity: SeverityHigh,
	}
}

// MissingDependency reports a manager declaring a dependency no discovered
// manager satisfies. Non-fatal.
func MissingDependency(manager, dependency string) *CoreError {
	return &CoreError{
		Type:     ErrorTypeMissingDependency,
		Code:     "DEPENDENCY_ABSENT",
		Message:  fmt.Sprintf("manager %s depends on %s which was not discovered", manager, dependency),
		Manager:  manager,
		Details:  dependency,
		Severity: SeverityMedium,
	}
}

// ModuleConfiguration reports a failure in a builder module's configure or
// initialize pass. Fatal for the build.
func ModuleConfiguration(module string, cause error) *CoreError {
	return &CoreError{
		Type:     ErrorTypeModuleConfiguration,
		Code:     "MODULE_FAILED",
		Message:  fmt.Sprintf("module %s failed during container build", module),
		Module:   module,
		Severity: SeverityCritical,
		Cause:    cause,
	}
}

// ModuleTimeout reports a builder module exceeding its enforced
// initialization timeout.
func ModuleTimeout(module string, limit time.Duration) *CoreError {
	return &CoreError{
		Type:      ErrorTypeTimeout,
		Code:      "MODULE_INIT_TIMEOUT",
		Message:   fmt.Sprintf("module %s exceeded initialization timeout of %v", module, limit),
		Module:    module,
		Severity:  SeverityCritical,
		Retryable: false,
	}
}

// Validation reports a generic validation failure.
func Validation(code, message string) *CoreError {
	return &CoreError{
		Type:     ErrorTypeValidation,
		Code:     code,
		Message:  message,
		Severity: SeverityLow,
	}
}

// Internal reports an unclassified internal failure.
func Internal(code, message string) *CoreError {
	return &CoreError{
		Type:     ErrorTypeInternal,
		Code:     code,
		Message:  message,
		Severity: SeverityHigh,
	}
}

// Wrap wraps an existing error with operation context while preserving the
// original classification when the cause is already a *CoreError.
func Wrap(err error, message string) *CoreError {
	if err == nil {
		return nil
	}
	var existing *CoreError
	if errors.As(err, &existing) {
		return &CoreError{
			Type:       existing.Type,
			Code:       existing.Code,
			Message:    message,
			Details:    existing.Message,
			Capability: existing.Capability,
			Manager:    existing.Manager,
			Module:     existing.Module,
			Severity:   existing.Severity,
			Retryable:  existing.Retryable,
			Cause:      err,
		}
	}
	return &CoreError{
		Type:     ErrorTypeInternal,
		Code:     "WRAPPED",
		Message:  message,
		Details:  err.Error(),
		Severity: SeverityMedium,
		Cause:    err,
	}
}

// ============================================================================
// CLASSIFICATION HELPERS
// ============================================================================

// IsType checks if an error is of a specific type.
func IsType(err error, errType ErrorType) bool {
	var coreErr *CoreError
	if errors.As(err, &coreErr) {
		return coreErr.Type == errType
	}
	return false
}

func IsDuplicateRegistration(err error) bool { return IsType(err, ErrorTypeDuplicateRegistration) }
func IsUnresolvedService(err error) bool     { return IsType(err, ErrorTypeUnresolvedService) }
func IsServiceNotFound(err error) bool       { return IsType(err, ErrorTypeServiceNotFound) }
func IsNoManagersDiscovered(err error) bool  { return IsType(err, ErrorTypeNoManagersDiscovered) }
func IsManagerInitialization(err error) bool { return IsType(err, ErrorTypeManagerInitialization) }
func IsDependencyCycle(err error) bool       { return IsType(err, ErrorTypeDependencyCycle) }
func IsMissingDependency(err error) bool     { return IsType(err, ErrorTypeMissingDependency) }
func IsModuleConfiguration(err error) bool   { return IsType(err, ErrorTypeModuleConfiguration) }
func IsTimeout(err error) bool               { return IsType(err, ErrorTypeTimeout) }
func IsValidation(err error) bool            { return IsType(err, ErrorTypeValidation) }

// GetSeverity returns the severity of an error, defaulting to medium for
// errors produced outside this package.
func GetSeverity(err error) ErrorSeverity {
	var coreErr *CoreError
	if errors.As(err, &coreErr) {
		return coreErr.Severity
	}
	return SeverityMedium
}
