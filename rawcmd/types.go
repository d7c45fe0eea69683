// Package rawcmd implements the raw command: an argv + env + cwd +
// three stream endpoints, spawned and captured through a
// reactor.Reactor so its completion is delivered on the reactor's
// single pump goroutine.
package rawcmd

import (
	"bytes"

	"github.com/swbuild/sw/cmdhash"
)

// Argument is a tagged argument value: an owned string, a borrowed
// string, or a path. rawcmd only cares about Value for spawning; Kind
// matters to cmdhash and to callers that need to know whether an
// argument should be path-normalized before spawn.
type Argument struct {
	Kind  cmdhash.ArgKind
	Value string
}

// Arg is a convenience constructor for a plain owned-string argument.
func Arg(value string) Argument { return Argument{Kind: cmdhash.ArgOwned, Value: value} }

// ArgPath is a convenience constructor for a path argument.
func ArgPath(value string) Argument { return Argument{Kind: cmdhash.ArgPath, Value: value} }

// EndpointKind selects how one of a command's standard streams is
// wired.
type EndpointKind uint8

const (
	// Inherit connects the child directly to the parent's stream.
	Inherit EndpointKind = iota
	// Closed provides no stream to the child (stdin closed, or
	// stdout/stderr discarded).
	Closed
	// CaptureBuffer accumulates the stream into an in-memory buffer,
	// retrievable after completion via Endpoint.Buffer.
	CaptureBuffer
	// Callback invokes OnLine once per newline-terminated line (or the
	// final unterminated tail at EOF); compilecmd uses this to recover
	// implicit dependencies from compiler stdout.
	Callback
	// RedirectPath opens Path and wires it as the stream, inheriting
	// the resulting OS handle into the child.
	RedirectPath
	// PipePeer is wired to another RawCommand's stream endpoint by
	// Pipeline, rather than by Endpoint fields directly.
	PipePeer
)

// Endpoint is one of stdin/stdout/stderr's configuration.
type Endpoint struct {
	Kind   EndpointKind
	Path   string            // for RedirectPath
	OnLine func(line string) // for Callback
	Input  []byte            // for CaptureBuffer on Stdin: bytes to feed the child

	buf *bytes.Buffer // populated at runtime for CaptureBuffer on Stdout/Stderr
}

// Buffer returns the captured bytes after the command has completed;
// valid only for an Endpoint of Kind CaptureBuffer used on Stdout or
// Stderr.
func (e *Endpoint) Buffer() []byte {
	if e.buf == nil {
		return nil
	}
	return e.buf.Bytes()
}

// Result is what a RawCommand's completion callback receives.
type Result struct {
	ExitCode     int
	Signaled     bool
	TimeLimitHit bool
	Stdout       []byte
	Stderr       []byte
	Err          error
	StartedAt    int64 // unix nanoseconds
	EndedAt      int64 // unix nanoseconds
}

// Success reports whether the command completed with exit code 0 and no
// error.
func (r Result) Success() bool { return r.Err == nil && r.ExitCode == 0 && !r.TimeLimitHit }
