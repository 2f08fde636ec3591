package seqfile

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned by calls on a closed Writer or Reader
	ErrInvalidState = errors.New("seqfile: operation on closed container")
)

// FormatError is returned when a container is structurally invalid:
// bad magic, unsupported version, unexpected type tags, a truncated
// or undecodable record. It's not recoverable, the stream can't be
// read past that point.
type FormatError struct {
	// Offset in the stream where the problem was found, -1 if unknown
	Offset int64
	Msg    string
	// Err is the underlying cause, if any
	Err error
}

func (e *FormatError) Error() string {
	s := "seqfile: " + e.Msg
	if e.Offset >= 0 {
		s += fmt.Sprintf(" at offset %d", e.Offset)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// IsFormatError returns true if err is or wraps a *FormatError
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

func formatErrorf(off int64, err error, format string, args ...any) *FormatError {
	return &FormatError{
		Offset: off,
		Msg:    fmt.Sprintf(format, args...),
		Err:    err,
	}
}
