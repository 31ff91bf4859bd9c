package agent

import (
	"code.keywarden.org/golang/internal/utils"
)

// errorFlag is a private error type that allows declaring error constants.
type errorFlag string

const (
	// All package errors are wrapping Error
	Error = errorFlag("agent: error")

	// ErrorBadArgs flags caller input rejected before any I/O: wrong
	// keygrip length, mutually exclusive arguments, oversized digests.
	ErrorBadArgs = errorFlag("agent: invalid caller arguments")

	// ErrorNoData flags transactions that completed without producing
	// the expected status data.
	ErrorNoData = errorFlag("agent: peer returned no data")

	// ErrorNoAgent flags a Client with no way to reach an agent.
	ErrorNoAgent = errorFlag("agent: no agent connection")

	// ErrorMissingIssuer flags a learned certificate whose issuer chain
	// is not available. Learn stores such certificates anyway.
	ErrorMissingIssuer = errorFlag("agent: issuer certificate not available")

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
