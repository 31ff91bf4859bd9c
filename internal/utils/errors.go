package utils

import (
	"fmt"
	"path"
	"runtime"
)

// RaisedErr is the error type returned by all packages of this module.
// It records where the error was raised so that failures deep inside a
// transaction can be located without stack traces.
//
// Packages declare a private flag error type plus a set of **constant**
// flag errors. A flag assigned to a RaisedErr makes the whole chain
// matchable with errors.Is.
type RaisedErr struct {
	// Flag groups related errors.
	Flag error

	// Cause is the error that triggered this one, possibly nil.
	Cause error

	// Msg says what went wrong.
	Msg string

	// Filename locates the raising source file.
	Filename string

	// Line locates the raising line in Filename.
	Line int
}

// Error implements the error interface.
func (self RaisedErr) Error() string {
	return fmt.Sprintf("%s: %s\n  file: %s line: %d\n%v", path.Dir(self.Filename), self.Msg, self.Filename, self.Line, self.Cause)
}

// Unwrap returns the non-nil members of {Flag, Cause}.
func (self RaisedErr) Unwrap() []error {
	rv := make([]error, 0, 2)
	if nil != self.Flag {
		rv = append(rv, self.Flag)
	}
	if nil != self.Cause {
		rv = append(rv, self.Cause)
	}
	return rv
}

// NewError returns a RaisedErr{} recording the file & line of its caller.
//
// skip adjusts Caller frame resolution: 0 when calling NewError directly,
// 1 when calling through a package-level newError helper...
func NewError(skip int, flag error, msg string, args ...any) error {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	err := RaisedErr{Flag: flag, Msg: msg}
	setRaiseSite(skip, &err)
	return err
}

// WrapError returns a RaisedErr{} recording the file & line of its caller.
// If cause is nil, WrapError returns nil, which allows wrapping
// unconditionally on return paths.
//
// skip adjusts Caller frame resolution as for NewError.
func WrapError(cause error, skip int, flag error, msg string, args ...any) error {
	if nil == cause {
		return nil
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	err := RaisedErr{Flag: flag, Cause: cause, Msg: msg}
	setRaiseSite(skip, &err)
	return err
}

func setRaiseSite(skip int, err *RaisedErr) {
	_, filename, line, ok := runtime.Caller(2 + skip)
	dirname, filename := path.Split(filename)
	if ok {
		err.Filename = path.Join(path.Base(dirname), filename)
		err.Line = line
	}
}
