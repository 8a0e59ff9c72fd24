package domain

import "fmt"

// ValidationError reports malformed or missing caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

// NotFoundError is returned when a referenced identifier is absent.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// InvalidStateTransitionError is returned when a workflow step is invoked out of order.
type InvalidStateTransitionError struct {
	Entity EntityType
	ID     string
	From   string
	To     string
}

func (e InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("%s %s cannot transition from %s to %s", e.Entity, e.ID, e.From, e.To)
}

// UnsupportedTypeError rejects documents whose MIME type is not allowed.
type UnsupportedTypeError struct {
	ContentType string
}

func (e UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported document type %q", e.ContentType)
}

// FileTooLargeError rejects documents exceeding the configured size limit.
type FileTooLargeError struct {
	Size  int64
	Limit int64
}

func (e FileTooLargeError) Error() string {
	return fmt.Sprintf("document size %d exceeds limit of %d bytes", e.Size, e.Limit)
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	if len(e.Result.Violations) == 0 {
		return "transaction blocked by rules"
	}
	return "transaction blocked by rules: " + e.Result.Violations[0].Message
}
