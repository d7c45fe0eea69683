package rawcmd

import (
	"fmt"

	"github.com/swbuild/sw/internal/perr"
)

// ExitError is the multi-line diagnostic returned when a command's
// synchronous Run exits non-zero: the command name, its numeric exit
// code, and the stack-carrying cause.
type ExitError struct {
	Name     string
	ExitCode int
	Signaled bool
	Cause    error
}

func newExitError(name string, res Result) error {
	if res.Success() {
		return nil
	}
	cause := res.Err
	if cause == nil {
		cause = perr.Errorf("process exited with code %d", res.ExitCode)
	} else {
		cause = perr.Errorf("%w", cause)
	}
	return &ExitError{Name: name, ExitCode: res.ExitCode, Signaled: res.Signaled, Cause: cause}
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command failed: %s:\nprocess exit code: %d\nerror:\n%s", e.Name, e.ExitCode, perr.Stack(e.Cause))
}

func (e *ExitError) Unwrap() error { return e.Cause }
