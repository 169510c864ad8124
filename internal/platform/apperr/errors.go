// Package apperr holds the error taxonomy shared by the store, the partitions'
// boundary checks and the workflow orchestrators.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Category is the broad class of an error used for routing and status codes.
type Category string

const (
	CategoryValidation    Category = "validation"
	CategoryWorkflow      Category = "workflow"
	CategoryConfiguration Category = "configuration"
	CategoryUnknown       Category = "unknown"
)

// ValidationError is field scoped and recoverable by re-input.
type ValidationError struct {
	Fields map[string]string
}

func NewValidation(fields map[string]string) *ValidationError {
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return &ValidationError{Fields: copied}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Category() Category { return CategoryValidation }

// WorkflowFailure is a single user-visible message produced by a workflow
// orchestrator. It is recoverable by retry or resend.
type WorkflowFailure struct {
	Workflow string
	Message  string
	Cause    error
}

func NewWorkflowFailure(workflow, message string, cause error) *WorkflowFailure {
	return &WorkflowFailure{Workflow: workflow, Message: message, Cause: cause}
}

func (e *WorkflowFailure) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Workflow, e.Message, e.Cause)
	}
	return e.Workflow + ": " + e.Message
}

func (e *WorkflowFailure) Unwrap() error { return e.Cause }

func (e *WorkflowFailure) Category() Category { return CategoryWorkflow }

// ConfigurationError is a programming error: an unknown command type, a bad
// registration or a malformed payload.
type ConfigurationError struct {
	Reason string
	Cause  error
}

func Configuration(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

func WrapConfiguration(cause error, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return "configuration error: " + e.Reason + ": " + e.Cause.Error()
	}
	return "configuration error: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error { return e.Cause }

func (e *ConfigurationError) Category() Category { return CategoryConfiguration }

// CategoryOf classifies any error in the chain.
func CategoryOf(err error) Category {
	var classified interface{ Category() Category }
	if errors.As(err, &classified) {
		return classified.Category()
	}
	return CategoryUnknown
}
