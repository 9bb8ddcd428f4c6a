// Package failure classifies evaluation errors into expected exceptions and
// unknown errors, and carries the tagged result type returned at collaborator
// boundaries.
package failure

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"
)

// Kind partitions failures into those a collaborator declared and everything else.
type Kind string

const (
	KindExpected Kind = "expected_exception"
	KindUnknown  Kind = "unknown_error"
)

// Category refines a failure for reporting.
type Category string

const (
	CategoryTimeout           Category = "timeout"
	CategoryInvalidInput      Category = "invalid_input"
	CategoryValidation        Category = "validation"
	CategoryGeneration        Category = "generation"
	CategoryNetwork           Category = "network"
	CategoryMalformedResponse Category = "malformed_response"
	CategoryStructureGate     Category = "structure_gate"
	CategoryPanic             Category = "panic"
	CategoryInternal          Category = "internal"
)

// Record is the immutable description of one item failure.
type Record struct {
	Kind      Kind      `json:"kind"`
	Category  Category  `json:"category"`
	Module    string    `json:"module"`
	Type      string    `json:"errorType"`
	Message   string    `json:"message"`
	Trace     string    `json:"trace"`
	Timestamp time.Time `json:"timestamp"`
	Attempts  int       `json:"attempts,omitempty"`
}

func (r *Record) Error() string {
	return fmt.Sprintf("%s (%s/%s in %s): %s", r.Type, r.Kind, r.Category, r.Module, r.Message)
}

// WithAttempts returns a copy of r recording n attempts.
func (r *Record) WithAttempts(n int) *Record {
	c := *r
	c.Attempts = n
	return &c
}

// ExpectedError marks err as a failure a collaborator declares it can raise.
type ExpectedError struct {
	Category  Category
	Retryable bool
	Err       error
}

func (e *ExpectedError) Error() string {
	if e.Err == nil {
		return string(e.Category)
	}
	return e.Err.Error()
}

func (e *ExpectedError) Unwrap() error {
	return e.Err
}

// Expected wraps err as a non-retryable expected failure.
func Expected(category Category, err error) error {
	return &ExpectedError{Category: category, Err: err}
}

// Transient wraps err as a retryable expected failure.
func Transient(category Category, err error) error {
	return &ExpectedError{Category: category, Retryable: true, Err: err}
}

// Expectedf is Expected with a formatted message.
func Expectedf(category Category, format string, args ...any) error {
	return Expected(category, fmt.Errorf(format, args...))
}

// UnknownError tags an unexpected failure with a reporting category. It stays an
// unknown error for classification and retry purposes.
type UnknownError struct {
	Category Category
	Err      error
}

func (e *UnknownError) Error() string {
	return e.Err.Error()
}

func (e *UnknownError) Unwrap() error {
	return e.Err
}

// Unknown wraps err as an unknown failure in category.
func Unknown(category Category, err error) error {
	return &UnknownError{Category: category, Err: err}
}

// WithCategory tags err as an unknown failure in category unless it already
// carries a classification.
func WithCategory(category Category, err error) error {
	if err == nil {
		return nil
	}
	var (
		expected *ExpectedError
		unknown  *UnknownError
		panicked *PanicError
		record   *Record
	)
	if errors.As(err, &expected) || errors.As(err, &unknown) || errors.As(err, &panicked) || errors.As(err, &record) {
		return err
	}
	return Unknown(category, err)
}

// PanicError is a panic recovered inside a worker.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", p.Value)
}

// FromPanic converts a recovered value into an error carrying the panic stack.
// It must be called from the deferred function that recovered.
func FromPanic(v any) error {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

// Classify builds the failure record for err raised by module.
func Classify(module string, err error) *Record {
	if err == nil {
		return nil
	}

	var existing *Record
	if errors.As(err, &existing) {
		return existing
	}

	rec := &Record{
		Kind:      KindUnknown,
		Category:  CategoryInternal,
		Module:    module,
		Type:      errorType(err),
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
	}

	var expected *ExpectedError
	var unknown *UnknownError
	var panicErr *PanicError
	switch {
	case errors.As(err, &panicErr):
		rec.Category = CategoryPanic
		rec.Type = "panic"
		rec.Trace = traceOf(err, panicErr.Stack)
		return rec
	case errors.As(err, &expected):
		rec.Kind = KindExpected
		rec.Category = expected.Category
	case errors.As(err, &unknown):
		rec.Category = unknown.Category
	case errors.Is(err, context.DeadlineExceeded):
		rec.Kind = KindExpected
		rec.Category = CategoryTimeout
	}

	rec.Trace = traceOf(err, debug.Stack())
	return rec
}

// IsRetryable reports whether err should be retried. Transient expected failures
// are always retryable. Unknown errors are retried only when retryUnknown is set.
// Non-retryable expected failures, panics and context cancellation never are.
func IsRetryable(err error, retryUnknown bool) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return false
	}

	var rec *Record
	if errors.As(err, &rec) {
		return rec.Kind == KindUnknown && retryUnknown
	}

	var expected *ExpectedError
	if errors.As(err, &expected) {
		return expected.Retryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	return retryUnknown
}

// errorType names the innermost concrete error below any %w or ExpectedError
// wrappers.
func errorType(err error) string {
	if err == nil {
		return ""
	}
	for {
		var next error
		if e, ok := err.(*ExpectedError); ok {
			next = e.Err
		} else if e, ok := err.(*UnknownError); ok {
			next = e.Err
		} else if fmt.Sprintf("%T", err) == "*fmt.wrapError" {
			next = errors.Unwrap(err)
		}
		if next == nil {
			break
		}
		err = next
	}
	return fmt.Sprintf("%T", err)
}

func traceOf(err error, stack []byte) string {
	var b strings.Builder
	b.WriteString("error chain:\n")
	depth := 0
	for e := err; e != nil; e = errors.Unwrap(e) {
		fmt.Fprintf(&b, "  %d: %T: %s\n", depth, e, e.Error())
		depth++
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for i, e := range joined.Unwrap() {
			fmt.Fprintf(&b, "  joined[%d]: %T: %s\n", i, e, e.Error())
		}
	}
	if len(stack) > 0 {
		b.WriteString("stack:\n")
		b.Write(stack)
	}
	return b.String()
}
