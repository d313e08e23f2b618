package agentcore

import (
	"errors"
	"fmt"
)

// Typed errors for the failure paths described in §7. CompressionError
// and ToolError wrap an optional cause and satisfy errors.Unwrap;
// CapacityExceededError, CompressionError and LoopDetectedError match
// their sentinels through an Is method, so callers can use
// errors.As/errors.Is.

// CapacityExceededError is returned by ActiveContextManager.AddMessage
// when adding a message would take the Active Context past its hard
// limit.
type CapacityExceededError struct {
	Tokens      int
	Limit       int
	Overage     int
	Suggestions []Suggestion
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("capacity exceeded: %d tokens over a limit of %d (overage %d)", e.Tokens, e.Limit, e.Overage)
}

var ErrCapacityExceeded = errors.New("capacity exceeded")

func (e *CapacityExceededError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

// CompressionError wraps the failure model every Compression Pipeline
// stage returns on abort: a stable reason string plus the underlying
// cause, if any.
type CompressionError struct {
	Reason string
	Cause  error
}

func (e *CompressionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("compression failed: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("compression failed: %s", e.Reason)
}

func (e *CompressionError) Unwrap() error { return e.Cause }

var (
	// ErrNoMessagesToCompress is the Identification stage's abort reason
	// when fewer than two older assistant messages are available.
	ErrNoMessagesToCompress = errors.New("no messages to compress")
	// ErrSummarizationFailed is the Summarization stage's abort reason.
	ErrSummarizationFailed = errors.New("summarization failed")
	// ErrNoReduction is the Context Update stage's abort reason when a
	// checkpoint did not actually shrink the token count.
	ErrNoReduction = errors.New("compression did not reduce token count")
	// ErrCompressionValidationFailed is the Validation stage's abort
	// reason when the post-compression prompt still fails validation.
	ErrCompressionValidationFailed = errors.New("compression failed validation")
)

func (e *CompressionError) Is(target error) bool {
	switch e.Reason {
	case "no messages to compress":
		return target == ErrNoMessagesToCompress
	case "summarization failed":
		return target == ErrSummarizationFailed
	case "compression did not reduce token count":
		return target == ErrNoReduction
	case "compression failed validation":
		return target == ErrCompressionValidationFailed
	}
	return false
}

func newCompressionError(reason string, cause error) *CompressionError {
	return &CompressionError{Reason: reason, Cause: cause}
}

// ToolError is the non-terminal error surfaced as a `tool` role
// message's content, always beginning with "Error:" per §7.
type ToolError struct {
	ToolName string
	Type     string // matches [A-Za-z0-9_-]+
	Cause    error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("Error: tool %q failed (%s): %v", e.ToolName, e.Type, e.Cause)
}

func (e *ToolError) Unwrap() error { return e.Cause }

var (
	ErrToolNotFound = errors.New("tool not found")
	ErrToolDenied   = errors.New("tool call denied")
)

// LoopDetectedError is returned by the Agent Loop when a turn-limit or
// repeated-call/output pattern trips the loop-detection guard.
type LoopDetectedError struct {
	Reason string
}

func (e *LoopDetectedError) Error() string {
	return fmt.Sprintf("loop detected: %s", e.Reason)
}

var ErrLoopDetected = errors.New("loop detected")

func (e *LoopDetectedError) Is(target error) bool {
	return target == ErrLoopDetected
}
