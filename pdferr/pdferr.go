// Package pdferr classifies the errors returned by engine operations.
package pdferr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	// KindIO covers failures reading or writing the filesystem.
	KindIO
	// KindFormat covers inputs that cannot be parsed as a PDF.
	KindFormat
	// KindValidation covers arguments or documents that violate a
	// precondition.
	KindValidation
	// KindPath covers paths that are missing or of the wrong kind.
	KindPath
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindFormat:
		return "format"
	case KindValidation:
		return "validation"
	case KindPath:
		return "path"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	prefix := e.Op
	if e.Path != "" {
		if prefix != "" {
			prefix += " "
		}
		prefix += e.Path
	}
	if prefix != "" {
		prefix += ": "
	}
	if e.Err == nil {
		return prefix + e.Kind.String()
	}
	return fmt.Sprintf("%s%s: %v", prefix, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a kind. A nil err yields nil.
func New(kind Kind, op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Validation builds a validation error from a message.
func Validation(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool { return err != nil && KindOf(err) == kind }
