// Package apperr defines the error kinds shared by the ketabi commands and
// renders them as single-line messages for the host application.
package apperr

import (
	"errors"
	"strings"
)

// Error kinds. Every error produced by a command wraps exactly one of these.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrValidation       = errors.New("validation failed")
	ErrIO               = errors.New("i/o error")
	ErrTooLarge         = errors.New("file too large")
	ErrCorruptData      = errors.New("corrupt data")
	ErrMalformedContent = errors.New("malformed content")
	ErrEncoding         = errors.New("encoding failed")
	ErrCompression      = errors.New("compression failed")
	ErrExport           = errors.New("export failed")
)

// Error carries the kind of a failure together with its context.
type Error struct {
	Kind error  // one of the Err* kinds above
	Op   string // operation, e.g. "read", "sync", "export"
	Path string // file the operation was working on, if any
	Msg  string // short description shown to the user
	Err  error  // underlying cause, may be nil
}

// New builds an *Error of the given kind.
func New(kind error, op, path, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Msg: msg, Err: cause}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Msg != "" {
		b.WriteString(e.Msg)
	} else {
		b.WriteString(e.Kind.Error())
	}
	if e.Path != "" {
		b.WriteString(" (")
		b.WriteString(e.Path)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause so errors.Is matches either.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

var kinds = []error{
	ErrInvalidInput,
	ErrValidation,
	ErrIO,
	ErrTooLarge,
	ErrCorruptData,
	ErrMalformedContent,
	ErrEncoding,
	ErrCompression,
	ErrExport,
}

// KindOf returns the kind wrapped by err, or nil when err carries none.
func KindOf(err error) error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Message renders err as one line suitable for display by the host UI.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	msg = strings.ReplaceAll(msg, "\r\n", " ")
	msg = strings.ReplaceAll(msg, "\n", " ")
	return strings.TrimSpace(msg)
}
