// Package store implements the durable, concurrent-safe record of Modules,
// Entries and the persisted queue, backed by a WAL-mode SQLite database
// through GORM.
package store

import (
	"errors"
	"fmt"
)

// Kind is the single error taxonomy tag spanning the whole system, not a
// distinct Go type per kind — the constructors below each build a fresh
// *KindError, so callers recover the Kind with KindOf, IsNotFound or
// IsConflict (errors.As against *KindError), not errors.Is. It lives in package store because Store is the innermost layer
// every other package already imports, so there is one taxonomy instead
// of one per package.
type Kind int

const (
	KindNotFound Kind = iota
	KindConflict
	KindInvalidField
	KindValidation
	KindCorrupted
	KindSelfCareReject
	KindPreprocessingFailed
	KindEngineFailure
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindInvalidField:
		return "InvalidField"
	case KindValidation:
		return "ValidationError"
	case KindCorrupted:
		return "Corrupted"
	case KindSelfCareReject:
		return "SelfCareReject"
	case KindPreprocessingFailed:
		return "PreprocessingFailed"
	case KindEngineFailure:
		return "EngineFailure"
	case KindCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// KindError is a store error tagged with its taxonomy Kind.
type KindError struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *KindError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *KindError) Unwrap() error { return e.Err }

func newErr(kind Kind, detail string, err error) error {
	return &KindError{Kind: kind, Detail: detail, Err: err}
}

// ErrNotFound reports an unknown uid (job or module).
func ErrNotFound(detail string) error { return newErr(KindNotFound, detail, nil) }

// ErrConflict reports a duplicate uid or an illegal state transition attempt.
func ErrConflict(detail string) error { return newErr(KindConflict, detail, nil) }

// ErrInvalidField reports an UpdateJob/UpdateModule call naming an unknown
// attribute.
func ErrInvalidField(field string) error {
	return newErr(KindInvalidField, "unknown field "+field, nil)
}

// ErrSelfCareReject reports submission-time admission refusal (disk/ram/cpu
// over threshold, or queue too long).
func ErrSelfCareReject(detail string) error { return newErr(KindSelfCareReject, detail, nil) }

// ErrPreprocessingFailed wraps a Module.Preprocess failure (e.g. an
// Opencast download that didn't return 200).
func ErrPreprocessingFailed(detail string, cause error) error {
	return newErr(KindPreprocessingFailed, detail, cause)
}

// ErrEngineFailure wraps a transcription child-process failure (nonzero
// exit, malformed output).
func ErrEngineFailure(detail string, cause error) error {
	return newErr(KindEngineFailure, detail, cause)
}

// ErrCanceled reports a job whose run ended because its cancellation token
// fired, in either abort or requeue mode.
func ErrCanceled(detail string) error { return newErr(KindCanceled, detail, nil) }

// IsNotFound reports whether err (or any error it wraps) is a NotFound.
func IsNotFound(err error) bool { return kindIs(err, KindNotFound) }

// IsConflict reports whether err (or any error it wraps) is a Conflict.
func IsConflict(err error) bool { return kindIs(err, KindConflict) }

// KindOf recovers the Kind tag from err, or (0, false) if err isn't a
// *KindError.
func KindOf(err error) (Kind, bool) {
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind, true
	}
	return 0, false
}

func kindIs(err error, k Kind) bool {
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind == k
	}
	return false
}
