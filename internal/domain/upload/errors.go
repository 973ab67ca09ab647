package upload

import (
	"errors"
	"fmt"
	"strings"
)

// Stage names the pipeline step a failure happened in.
type Stage string

const (
	StageValidation Stage = "validation"
	StagePersist    Stage = "persist"
	StageOptimize   Stage = "optimize"
	StageRecord     Stage = "record"
	StageCleanup    Stage = "cleanup"
)

// Kind classifies a failure.
type Kind string

const (
	KindUnsupportedCategory   Kind = "UnsupportedCategory"
	KindDisallowedType        Kind = "DisallowedType"
	KindTooLarge              Kind = "TooLarge"
	KindNoFiles               Kind = "NoFiles"
	KindUnexpectedField       Kind = "UnexpectedField"
	KindTooManyFiles          Kind = "TooManyFiles"
	KindDirectoryCreateFailed Kind = "DirectoryCreateFailed"
	KindPersistIOFailed       Kind = "PersistIOFailed"
	KindOptimizeFailed        Kind = "OptimizeFailed"
	KindRecordWriteFailed     Kind = "RecordWriteFailed"
	KindCleanupFailed         Kind = "CleanupFailed"
	KindAborted               Kind = "Aborted"
)

// ErrSizeLimitExceeded is returned by storage when a stream outgrows its limit.
var ErrSizeLimitExceeded = errors.New("size limit exceeded")

// Error is the terminal Failed(stage, reason) state of one file.
type Error struct {
	Stage  Stage
	Kind   Kind
	Field  string
	File   string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed (%s)", e.Stage, e.Kind)
	if e.File != "" {
		fmt.Fprintf(&b, " for %q", e.File)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsCallerError reports whether the failure came from the request itself.
func (e *Error) IsCallerError() bool {
	switch e.Kind {
	case KindUnsupportedCategory, KindDisallowedType, KindTooLarge,
		KindNoFiles, KindUnexpectedField, KindTooManyFiles:
		return true
	default:
		return false
	}
}

func newError(stage Stage, kind Kind, in FileInput, reason string, err error) *Error {
	return &Error{
		Stage:  stage,
		Kind:   kind,
		Field:  in.FieldName,
		File:   in.OriginalName,
		Reason: reason,
		Err:    err,
	}
}

// BatchError reports the failures of a multi-file request. Every file of the
// request has been rolled back when it is returned.
type BatchError struct {
	Failures []*Error
}

func (e *BatchError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return fmt.Sprintf("%d file(s) failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

func (e *BatchError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f)
	}
	return out
}

// IsCallerError is true when every failure is a caller error.
func (e *BatchError) IsCallerError() bool {
	if len(e.Failures) == 0 {
		return false
	}
	for _, f := range e.Failures {
		if !f.IsCallerError() {
			return false
		}
	}
	return true
}
