// Package iocmd implements the IO command: a rawcmd.RawCommand
// augmented with declared inputs/outputs/implicit inputs, a name, a
// lazily-cached hash, and the bookkeeping fields dagbuild and executor
// thread through every command in a build (dependencies, dependents,
// pending-dependency count, DFS colour).
package iocmd

import (
	"time"

	"github.com/swbuild/sw/cmdhash"
	"github.com/swbuild/sw/cmdstorage"
	"github.com/swbuild/sw/fileregistry"
	"github.com/swbuild/sw/internal/ticket"
	"github.com/swbuild/sw/rawcmd"
	"github.com/swbuild/sw/swpath"
)

// DAGColor is the three-colour marker dagbuild's cycle check uses.
type DAGColor uint8

const (
	White DAGColor = iota // not visited
	Gray                  // visited, on the current DFS path
	Black                 // fully explored, provably not on a cycle
)

// Command is a raw command plus declared input/output file sets and
// DAG linkage.
type Command struct {
	*rawcmd.RawCommand

	Name   string
	Always bool // when true, always considered outdated

	Inputs         []swpath.Path
	Outputs        []swpath.Path
	ImplicitInputs []swpath.Path // set by the GCC/Clang PostRun after a successful run; the MSVC stdout callback appends to it during the run, whether or not it succeeds

	// OtherOutput holds compiler stdout lines that were not a recognised
	// implicit-dependency annotation, surfaced verbatim in the error
	// message on failure.
	OtherOutput []string

	StartTime int64 // unix nanoseconds
	EndTime   int64 // unix nanoseconds

	// SimultaneousJobs optionally gates a family of commands sharing a
	// named resource (e.g. a linker that can't run more than N at
	// once); nil means no extra gate beyond the executor's global cap.
	SimultaneousJobs *ticket.TicketPool

	// PostRun is invoked once after a successful process exit, before
	// the command is recorded to storage; compile commands use it to
	// harvest ImplicitInputs from captured compiler output.
	PostRun func(res rawcmd.Result) error

	// DAG linkage, populated by dagbuild.Build.
	Dependencies     []*Command
	Dependents       []*Command
	PendingDepsCount int
	DAGColor         DAGColor

	hash      cmdhash.Hash
	hashValid bool
}

// Hash returns the command's fingerprint, computing and caching it on
// first call.
func (c *Command) Hash() cmdhash.Hash {
	if c.hashValid {
		return c.hash
	}
	var b cmdhash.Builder
	b.Argument(cmdhash.ArgPath, c.Path) // the program itself is argv[0]
	for _, a := range c.Args {
		b.Argument(a.Kind, a.Value)
	}
	b.WorkingDirectory(c.Dir)
	for k, v := range c.Env {
		b.Env(k, v)
	}
	for _, ep := range []rawcmd.Endpoint{c.Stdin, c.Stdout, c.Stderr} {
		if ep.Kind == rawcmd.RedirectPath {
			b.Redirect(ep.Path)
		}
	}
	c.hash = b.Sum()
	c.hashValid = true
	return c.hash
}

// Outdated reports whether the command must run: false only when
// Always is unset and the storage reports Fresh. explain, if non-nil,
// receives the storage's reason regardless of the Always flag, for
// --explain logging.
func (c *Command) Outdated(store *cmdstorage.Store, reg *fileregistry.Registry, explain func(cmdstorage.Reason)) bool {
	reason := store.Query(c.Hash(), reg)
	if explain != nil {
		explain(reason)
	}
	if c.Always {
		return true
	}
	return reason != cmdstorage.Fresh
}

// InternFiles interns every input, implicit input, and output path
// into reg, returning their file hashes in that order, the shape
// cmdstorage.Append expects. Outputs are interned with reset=true
// since the command that just ran may have changed their mtime.
// onNewFile, if non-nil, is invoked for every path interned for the
// first time process-wide, letting --explain logging surface the
// NewFile reason.
func (c *Command) InternFiles(reg *fileregistry.Registry, persist func(swpath.Path), onNewFile func(swpath.Path)) (inputs, implicit, outputs []fileregistry.FileHash) {
	add := func(p swpath.Path, reset bool) fileregistry.FileHash {
		h, created := reg.Add(p, persist, reset)
		if created && onNewFile != nil {
			onNewFile(p)
		}
		return h
	}
	for _, p := range c.Inputs {
		inputs = append(inputs, add(p, false))
	}
	for _, p := range c.ImplicitInputs {
		implicit = append(implicit, add(p, false))
	}
	for _, p := range c.Outputs {
		outputs = append(outputs, add(p, true))
	}
	return inputs, implicit, outputs
}

// MarkStart records the command's start timestamp.
func (c *Command) MarkStart() { c.StartTime = time.Now().UnixNano() }

// MarkEnd records the command's end timestamp.
func (c *Command) MarkEnd() { c.EndTime = time.Now().UnixNano() }
