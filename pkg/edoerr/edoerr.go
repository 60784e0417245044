// Package edoerr defines the error taxonomy shared across Edo's core
// subsystems. Errors carry a Kind rather than being distinguished by
// sentinel value or string match, following the same
// check-with-a-package-function idiom as k8s.io/apimachinery/pkg/api/errors.
package edoerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error the way spec.md §7 enumerates them.
type Kind int

const (
	// KindUnknown is the zero value and never produced by New.
	KindUnknown Kind = iota
	KindNotFound
	KindInvalidArtifact
	KindIo
	KindBackend
	KindCycle
	KindUnsolvableRequirement
	KindPluginFailure
	KindTransformRetryable
	KindTransformFailed
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindInvalidArtifact:
		return "InvalidArtifact"
	case KindIo:
		return "Io"
	case KindBackend:
		return "Backend"
	case KindCycle:
		return "Cycle"
	case KindUnsolvableRequirement:
		return "UnsolvableRequirement"
	case KindPluginFailure:
		return "PluginFailure"
	case KindTransformRetryable:
		return "TransformRetryable"
	case KindTransformFailed:
		return "TransformFailed"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type produced by every core package.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "storage.open"
	Subject string // the id/addr/name the op was acting on, if any
	Err     error  // wrapped cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg += " " + e.Op
	}
	if e.Subject != "" {
		msg += " " + e.Subject
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error of the given kind.
func New(kind Kind, op, subject string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Subject: subject, Err: cause}
}

// Wrap attaches op/subject context to an existing error without kind
// information, using fmt.Errorf %w the way the teacher's internal/secrets
// client wraps transport errors.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

func kindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return KindUnknown, false
}

// IsNotFound reports whether err (or something it wraps) is a NotFound error.
func IsNotFound(err error) bool { k, ok := kindOf(err); return ok && k == KindNotFound }

// IsInvalidArtifact reports whether err is an InvalidArtifact error.
func IsInvalidArtifact(err error) bool { k, ok := kindOf(err); return ok && k == KindInvalidArtifact }

// IsIo reports whether err is an Io error.
func IsIo(err error) bool { k, ok := kindOf(err); return ok && k == KindIo }

// IsBackend reports whether err is a Backend error.
func IsBackend(err error) bool { k, ok := kindOf(err); return ok && k == KindBackend }

// IsCycle reports whether err is a Cycle error.
func IsCycle(err error) bool { k, ok := kindOf(err); return ok && k == KindCycle }

// IsUnsolvableRequirement reports whether err is an UnsolvableRequirement error.
func IsUnsolvableRequirement(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindUnsolvableRequirement
}

// IsPluginFailure reports whether err is a PluginFailure error.
func IsPluginFailure(err error) bool { k, ok := kindOf(err); return ok && k == KindPluginFailure }

// IsTransformRetryable reports whether err is a TransformRetryable error.
func IsTransformRetryable(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindTransformRetryable
}

// IsTransformFailed reports whether err is a TransformFailed error.
func IsTransformFailed(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindTransformFailed
}

// KindOf returns the Kind of err if it is (or wraps) an *Error.
func KindOf(err error) Kind {
	k, _ := kindOf(err)
	return k
}
