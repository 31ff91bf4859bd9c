package assuan

import (
	"fmt"

	"code.keywarden.org/golang/internal/utils"
)

// errorFlag is a private error type that allows declaring error constants.
type errorFlag string

const (
	// All package errors are wrapping Error
	Error = errorFlag("assuan: error")

	// LineTooLongError flags command or data lines exceeding MaxLineLen.
	// It is raised before any I/O takes place.
	LineTooLongError = errorFlag("assuan: line exceeds protocol limit")

	// ProtocolError flags malformed replies from the peer.
	ProtocolError = errorFlag("assuan: malformed peer reply")

	// PeerFailedError flags transactions the peer completed with an ERR
	// code. Use errors.As to recover the PeerError carrying the code.
	PeerFailedError = errorFlag("assuan: peer returned an error code")

	noError = errorFlag("")
)

// Error implements the error interface.
func (self errorFlag) Error() string {
	return string(self)
}

func (self errorFlag) Unwrap() error {
	if Error == self || noError == self {
		return nil
	}
	return Error
}

// PeerError carries the numeric failure code of an ERR reply verbatim.
// No retry is attempted on any code; retry policy belongs to callers.
type PeerError struct {
	Code int
	Text string
}

// Error implements the error interface.
func (self PeerError) Error() string {
	return fmt.Sprintf("peer error %d %s", self.Code, self.Text)
}

func (self PeerError) Unwrap() error {
	return PeerFailedError
}

// newError returns a utils.RaisedErr{} that contains file & line of where it was called.
func newError(msg string, args ...any) error {
	return utils.NewError(1, Error, msg, args...)
}

// newFlagError is newError with an explicit flag.
func newFlagError(flag error, msg string, args ...any) error {
	return utils.NewError(1, flag, msg, args...)
}

// wrapError returns a utils.RaisedErr{} that contains file & line of where it was called.
func wrapError(cause error, msg string, args ...any) error {
	return utils.WrapError(cause, 1, Error, msg, args...)
}
