// Package skerr provides functions for wrapping errors with the call site and extra context.
//
//	if err := doSomething(); err != nil {
//		return skerr.Wrapf(err, "doing something with %s", name)
//	}
//
// The resulting error message reads "doing something with foo: <original>. At
// file.go:12 caller.go:30".
package skerr

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// StackTrace identifies a filename (base filename only) and line number.
type StackTrace struct {
	File string
	Line int
}

func (st *StackTrace) String() string {
	return fmt.Sprintf("%s:%d", st.File, st.Line)
}

// ErrorWithContext records an error together with the call stack at the time it was wrapped and
// any context messages added along the way.
type ErrorWithContext struct {
	// Wrapped is the original error. Never nil.
	Wrapped error
	// CallStack is the call stack at the point the error was first wrapped.
	CallStack []StackTrace
	// Context holds the messages added by Wrapf, outermost first.
	Context []string
}

// CallStack returns at most maxLines of the stack, starting startAt frames above the caller.
func CallStack(maxLines, startAt int) []StackTrace {
	pcs := make([]uintptr, maxLines)
	n := runtime.Callers(startAt+2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	rv := make([]StackTrace, 0, n)
	for {
		frame, more := frames.Next()
		if frame.File != "" {
			rv = append(rv, StackTrace{File: filepath.Base(frame.File), Line: frame.Line})
		}
		if !more {
			break
		}
	}
	return rv
}

// Wrap adds the call stack to err. If err is already an ErrorWithContext it is returned as is.
// Returns nil if err is nil.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var ewc *ErrorWithContext
	if errors.As(err, &ewc) {
		return err
	}
	return &ErrorWithContext{
		Wrapped:   err,
		CallStack: CallStack(10, 1),
	}
}

// Wrapf is Wrap with an additional context message. Returns nil if err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	var ewc *ErrorWithContext
	if errors.As(err, &ewc) {
		return &ErrorWithContext{
			Wrapped:   ewc.Wrapped,
			CallStack: ewc.CallStack,
			Context:   append([]string{msg}, ewc.Context...),
		}
	}
	return &ErrorWithContext{
		Wrapped:   err,
		CallStack: CallStack(10, 1),
		Context:   []string{msg},
	}
}

// Fmt is fmt.Errorf with the call stack attached.
func Fmt(format string, args ...interface{}) error {
	return &ErrorWithContext{
		Wrapped:   fmt.Errorf(format, args...),
		CallStack: CallStack(10, 1),
	}
}

// Unwrap returns the original error that was wrapped by Wrap or Wrapf, or err itself.
func Unwrap(err error) error {
	var ewc *ErrorWithContext
	if errors.As(err, &ewc) {
		return ewc.Wrapped
	}
	return err
}

// Error implements the error interface.
func (e *ErrorWithContext) Error() string {
	var sb strings.Builder
	for _, c := range e.Context {
		sb.WriteString(c)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Wrapped.Error())
	sb.WriteString(". At")
	for _, st := range e.CallStack {
		sb.WriteString(" ")
		sb.WriteString(st.String())
	}
	return sb.String()
}

// Unwrap allows errors.Is and errors.As to see through the wrapper.
func (e *ErrorWithContext) Unwrap() error {
	return e.Wrapped
}
