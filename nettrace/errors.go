package nettrace

import (
	"fmt"

	"github.com/pkg/errors"
)

// MalformedFormatError reports a byte sequence that cannot be a valid
// .nettrace stream at all, as opposed to a stream that simply hasn't
// delivered enough bytes yet.
type MalformedFormatError struct {
	Pos     int64
	Message string
}

func (e *MalformedFormatError) Error() string {
	return fmt.Sprintf("nettrace: malformed stream at offset %d: %s", e.Pos, e.Message)
}

// TruncatedStreamError reports that the underlying reader ended before a
// block that was already in progress could be completed.
type TruncatedStreamError struct {
	Pos int64
}

func (e *TruncatedStreamError) Error() string {
	return fmt.Sprintf("nettrace: stream truncated at offset %d", e.Pos)
}

func newMalformedFormatError(pos int64, format string, args ...any) error {
	return errors.WithStack(&MalformedFormatError{Pos: pos, Message: fmt.Sprintf(format, args...)})
}

func newTruncatedStreamError(pos int64) error {
	return errors.WithStack(&TruncatedStreamError{Pos: pos})
}
