package simplemedia

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure surfaced by this package.
type ErrorKind string

// Error kinds.
const (
	KindInvalidFileName         ErrorKind = "INVALID_FILE_NAME"
	KindInvalidFileSize         ErrorKind = "INVALID_FILE_SIZE"
	KindInvalidContentType      ErrorKind = "INVALID_CONTENT_TYPE"
	KindInvalidStatusTransition ErrorKind = "INVALID_STATUS_TRANSITION"
	KindThumbnailNotAllowed     ErrorKind = "THUMBNAIL_NOT_ALLOWED"
	KindNotFound                ErrorKind = "NOT_FOUND"
	KindBadRequest              ErrorKind = "BAD_REQUEST"
	KindInternal                ErrorKind = "INTERNAL_ERROR"
)

// Sentinel errors, one per kind. A *Error matches the sentinel of its kind
// under errors.Is.
var (
	// ErrInvalidFileName indicates a file name outside [A-Za-z0-9._-]+
	ErrInvalidFileName = errors.New("invalid file name")

	// ErrInvalidFileSize indicates a size outside (0, 10 MiB]
	ErrInvalidFileSize = errors.New("invalid file size")

	// ErrInvalidContentType indicates a mime type outside the supported set
	ErrInvalidContentType = errors.New("invalid content type")

	// ErrInvalidStatusTransition indicates a transition missing from the status table
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	// ErrThumbnailNotAllowed indicates a thumbnail attached to non-image media
	ErrThumbnailNotAllowed = errors.New("thumbnail not allowed")

	// ErrNotFound indicates the media is absent or owned by someone else
	ErrNotFound = errors.New("media not found")

	// ErrBadRequest indicates malformed pipeline input
	ErrBadRequest = errors.New("bad request")

	// ErrInternal indicates a downstream capability failure
	ErrInternal = errors.New("internal error")
)

var kindSentinels = map[ErrorKind]error{
	KindInvalidFileName:         ErrInvalidFileName,
	KindInvalidFileSize:         ErrInvalidFileSize,
	KindInvalidContentType:      ErrInvalidContentType,
	KindInvalidStatusTransition: ErrInvalidStatusTransition,
	KindThumbnailNotAllowed:     ErrThumbnailNotAllowed,
	KindNotFound:                ErrNotFound,
	KindBadRequest:              ErrBadRequest,
	KindInternal:                ErrInternal,
}

// Error represents a classified failure of a value type, entity transition
// or use case.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = kindSentinels[e.Kind].Error()
	}
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

func newError(kind ErrorKind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf returns the kind of err. Errors that were never classified by this
// package report KindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// asUseCaseError keeps already classified errors and wraps anything else as
// an internal error for op.
func asUseCaseError(op string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		if e.Op == "" {
			e.Op = op
		}
		return e
	}
	return newError(KindInternal, op, "", err)
}
