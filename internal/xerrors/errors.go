// Package xerrors implements the engine's standardized error type and the
// robustness-mode policy table described in §7.
package xerrors

import (
	"fmt"
	"runtime"
	"time"
)

// Severity classifies how serious an error is, independent of which
// component raised it.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Error codes for the categories §7 names.
const (
	CodeConfigInvalid     = "CONFIG_INVALID"
	CodeRuleFailure       = "RULE_FAILURE"
	CodeSourceDisconnect  = "SOURCE_DISCONNECTED"
	CodeSinkTransient     = "SINK_TRANSIENT"
	CodeSinkFatal         = "SINK_FATAL"
	CodeProgrammerWarning = "PROGRAMMER_WARNING"
)

// AppError is the engine's standardized error value: enough structure to
// log consistently (component, operation, event id) without a bespoke type
// per call site.
type AppError struct {
	Code      string
	Message   string
	Component string
	Operation string
	Cause     error
	Where     string
	Metadata  map[string]interface{}
	Timestamp time.Time
	Severity  Severity
}

// New builds an AppError, capturing the immediate caller's file:line.
func New(code, component, operation, message string) *AppError {
	_, file, line, _ := runtime.Caller(1)
	return &AppError{
		Code:      code,
		Message:   message,
		Component: component,
		Operation: operation,
		Where:     fmt.Sprintf("%s:%d", file, line),
		Metadata:  make(map[string]interface{}),
		Timestamp: time.Now(),
		Severity:  SeverityMedium,
	}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Component, e.Operation, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Wrap attaches cause as this error's underlying error.
func (e *AppError) Wrap(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithMetadata attaches a structured-logging key/value pair.
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithSeverity overrides the default medium severity.
func (e *AppError) WithSeverity(s Severity) *AppError {
	e.Severity = s
	return e
}

// ToFields renders the error as logrus.Fields-shaped data for structured
// logging (§7 "structured log entries with event id and rule name").
func (e *AppError) ToFields() map[string]interface{} {
	out := map[string]interface{}{
		"error_code":      e.Code,
		"error_message":   e.Message,
		"error_component": e.Component,
		"error_operation": e.Operation,
		"error_severity":  string(e.Severity),
	}
	if e.Cause != nil {
		out["error_cause"] = e.Cause.Error()
	}
	for k, v := range e.Metadata {
		out["meta_"+k] = v
	}
	return out
}
