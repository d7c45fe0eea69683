// Package perr builds errors that always carry a call-stack: ordinary
// fmt.Errorf/errors.New never unwind into a usable diagnostic once an
// error has travelled a few frames, so every error this module returns
// is constructed here.
package perr

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// stackSkip is how many frames of runtime.Callers to discard so the
// captured stack starts at the caller of Errorf/New, not at Errorf/New
// itself.
const stackSkip = 2

// withStack decorates err with a short call-stack, once.
type withStack struct {
	err   error
	stack []uintptr
}

func (w *withStack) Error() string { return w.err.Error() }
func (w *withStack) Unwrap() error { return w.err }

// Stack renders the captured call-stack as "file:line" lines, innermost
// frame first.
func (w *withStack) Stack() string {
	var b strings.Builder
	frames := runtime.CallersFrames(w.stack)
	for {
		frame, more := frames.Next()
		if frame.Function != "" {
			b.WriteString(frame.Function)
			b.WriteString("\n\t")
			b.WriteString(frame.File)
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(frame.Line))
			b.WriteByte('\n')
		}
		if !more {
			break
		}
	}
	return b.String()
}

// HasStack reports whether err or any error in its chain already carries
// a captured call-stack.
func HasStack(err error) bool {
	for err != nil {
		if _, ok := err.(*withStack); ok {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

func captureStack(err error) error {
	if err == nil || HasStack(err) {
		return err
	}
	pc := make([]uintptr, 32)
	n := runtime.Callers(stackSkip+1, pc)
	return &withStack{err: err, stack: pc[:n]}
}

// New is errors.New with a call-stack attached.
func New(s string) error { return captureStack(errors.New(s)) }

// Errorf is fmt.Errorf with a call-stack attached, preserving %w wrapping.
func Errorf(format string, a ...any) error {
	return captureStack(fmt.Errorf(format, a...))
}

// Stack renders err's call-stack if any error in its chain carries one,
// otherwise the empty string.
func Stack(err error) string {
	for err != nil {
		if ws, ok := err.(*withStack); ok {
			return ws.Stack()
		}
		err = errors.Unwrap(err)
	}
	return ""
}

// Is is errors.Is.
func Is(err, target error) bool { return errors.Is(err, target) }

// As is errors.As.
func As(err error, target any) bool { return errors.As(err, target) }
