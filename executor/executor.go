// Package executor implements the concurrency-capped scheduler: it
// derives the command DAG, seeds the ready queue, launches outdated
// commands through the reactor up to MaximumRunningCommands at a time,
// and on each completion harvests implicit dependencies, appends to
// command storage, and releases dependents whose pending-dependency
// count has reached zero.
package executor

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/swbuild/sw/cmdstorage"
	"github.com/swbuild/sw/dagbuild"
	"github.com/swbuild/sw/fileregistry"
	"github.com/swbuild/sw/internal/perr"
	"github.com/swbuild/sw/internal/plog"
	"github.com/swbuild/sw/internal/ticket"
	"github.com/swbuild/sw/iocmd"
	"github.com/swbuild/sw/rawcmd"
	"github.com/swbuild/sw/reactor"
	"github.com/swbuild/sw/swpath"
)

// Executor schedules one build's commands; one instance per build.
type Executor struct {
	Store    *cmdstorage.Store
	Registry *fileregistry.Registry
	Logger   *plog.Logger

	// MaximumRunningCommands caps concurrently running OS processes; 0
	// means unlimited-in-practice.
	MaximumRunningCommands uint64
	// IgnoreErrors is the fault-isolation threshold: the executor
	// keeps dequeueing until the error count exceeds it.
	IgnoreErrors int
	// RebuildAll forces every command to run regardless of its stored
	// outdatedness.
	RebuildAll bool
	// ExplainOutdated, if true, logs each command's outdatedness reason
	// as it is considered.
	ExplainOutdated bool

	runID string
	rx    *reactor.Reactor
	max   *ticket.TicketPool

	mu         sync.Mutex
	launchable []*iocmd.Command // outdated, waiting for a concurrency slot
	running    int
	errs       *perr.ErrList
	fatal      error
}

// Run executes commands to completion: it builds the DAG, fails fast
// on a duplicate output or cycle before the first process spawns, then
// drives the scheduler loop until the ready queue is empty and no
// process remains running. It returns the fatal configuration/storage
// error if one occurred, otherwise nil; per-command failures are
// available via Errors() after Run returns.
func (e *Executor) Run(ctx context.Context, commands []*iocmd.Command) error {
	e.runID = uuid.New().String()
	e.rx = reactor.New()
	e.max = ticket.NewTicketPool(e.MaximumRunningCommands)
	e.errs = &perr.ErrList{}
	e.fatal = nil
	e.launchable = nil
	e.running = 0

	ready, err := dagbuild.Build(commands)
	if err != nil {
		return err
	}
	if e.Logger != nil {
		e.Logger.Info("build %s: %d commands, %d ready", e.runID, len(commands), len(ready))
	}

	e.enqueue(ctx, ready)
	e.rx.Run()

	if e.fatal != nil {
		return e.fatal
	}
	return nil
}

// Errors returns every per-command failure accumulated during Run, in
// the order they completed.
func (e *Executor) Errors() []error {
	if e.errs == nil {
		return nil
	}
	return e.errs.Errors()
}

// enqueue processes newly-ready commands (PendingDepsCount reached
// zero): each is immediately classified fresh-or-outdated against
// command storage; fresh commands are skipped in place (cascading to
// their own dependents), outdated commands join the launch queue for
// the next scheduling pass.
func (e *Executor) enqueue(ctx context.Context, cmds []*iocmd.Command) {
	for _, c := range cmds {
		outdated := e.RebuildAll || c.Always
		var reason cmdstorage.Reason
		if !outdated {
			outdated = c.Outdated(e.Store, e.Registry, func(r cmdstorage.Reason) { reason = r })
		} else if e.ExplainOutdated {
			reason = e.Store.Query(c.Hash(), e.Registry)
		}
		if e.ExplainOutdated && e.Logger != nil {
			e.Logger.Debug("%s: %s", c.Name, reason.String())
		}
		if !outdated {
			e.skip(ctx, c)
			continue
		}
		e.mu.Lock()
		e.launchable = append(e.launchable, c)
		e.mu.Unlock()
	}
	e.schedule(ctx)
}

// skip marks c as processed without running it and releases its
// dependents, pushing newly-ready ones into the scheduler.
func (e *Executor) skip(ctx context.Context, c *iocmd.Command) {
	if e.Logger != nil {
		e.Logger.Trace("%s: skipped (fresh)", c.Name)
	}
	e.release(ctx, c)
}

// release decrements every dependent's PendingDepsCount and collects
// those that reach zero for the next enqueue pass.
func (e *Executor) release(ctx context.Context, c *iocmd.Command) {
	var newlyReady []*iocmd.Command
	for _, dep := range c.Dependents {
		dep.PendingDepsCount--
		if dep.PendingDepsCount == 0 {
			newlyReady = append(newlyReady, dep)
		}
	}
	if len(newlyReady) > 0 {
		e.enqueue(ctx, newlyReady)
	}
}

// errorBudgetExceeded reports whether the executor has accumulated
// more errors than IgnoreErrors permits: once true the scheduler stops
// dequeueing new work, though already-running processes are left to
// finish naturally.
func (e *Executor) errorBudgetExceeded() bool {
	return e.errs.Len() > e.IgnoreErrors
}

// schedule scans the launch queue and starts every command for which a
// concurrency ticket (global, and family if any) is immediately
// available, leaving the rest queued for the next completion to
// trigger a rescan.
func (e *Executor) schedule(ctx context.Context) {
	if e.fatal != nil || e.errorBudgetExceeded() {
		return
	}
	for {
		e.mu.Lock()
		var pick *iocmd.Command
		var pickIdx int
		var globalRelease func()
		var familyRelease func()
		for i, c := range e.launchable {
			rel, ok := e.max.TryAcquire()
			if !ok {
				break // global cap full; nothing else to try this pass
			}
			if c.SimultaneousJobs != nil {
				frel, fok := c.SimultaneousJobs.TryAcquire()
				if !fok {
					rel()
					continue // this family is saturated; try the next command
				}
				familyRelease = frel
			}
			pick = c
			pickIdx = i
			globalRelease = rel
			break
		}
		if pick == nil {
			e.mu.Unlock()
			return
		}
		e.launchable = append(e.launchable[:pickIdx], e.launchable[pickIdx+1:]...)
		e.running++
		e.mu.Unlock()

		e.launch(ctx, pick, globalRelease, familyRelease)
	}
}

// launch starts one outdated command asynchronously through the
// reactor and wires its completion back into the scheduler.
func (e *Executor) launch(ctx context.Context, c *iocmd.Command, releaseGlobal, releaseFamily func()) {
	c.MarkStart()
	if e.Logger != nil {
		e.Logger.Info("%s: starting", c.Name)
	}
	err := c.Start(ctx, e.rx, func(res rawcmd.Result) {
		c.MarkEnd()
		releaseGlobal()
		if releaseFamily != nil {
			releaseFamily()
		}
		e.mu.Lock()
		e.running--
		e.mu.Unlock()
		e.finish(ctx, c, res)
		e.schedule(ctx)
	})
	if err != nil {
		// Spawn failure: the command never reached Start's async path,
		// so its completion closure above will never fire; finish the
		// bookkeeping synchronously.
		releaseGlobal()
		if releaseFamily != nil {
			releaseFamily()
		}
		e.mu.Lock()
		e.running--
		e.mu.Unlock()
		e.errs.Append(&CommandError{Name: c.Name, ExitCode: -1, Captured: err.Error()})
		e.schedule(ctx)
	}
}

// finish runs a completed command's post-hook, appends its record to
// storage on success, and either releases its dependents or
// accumulates an error.
func (e *Executor) finish(ctx context.Context, c *iocmd.Command, res rawcmd.Result) {
	if !res.Success() {
		e.fail(c, res, nil)
		return
	}

	if c.PostRun != nil {
		if err := c.PostRun(res); err != nil {
			e.fail(c, res, err)
			return
		}
	}

	inputs, implicit, outputs := c.InternFiles(e.Registry, e.Store.PersistPath, func(p swpath.Path) {
		if e.ExplainOutdated && e.Logger != nil {
			e.Logger.Debug("%s: new file %s", c.Name, p)
		}
	})
	if err := e.Store.Append(c.Hash(), c.EndTime, inputs, implicit, outputs); err != nil {
		// Storage write failure is fatal, not per-command.
		e.mu.Lock()
		e.fatal = &FatalError{Cause: perr.Errorf("command storage append failed: %w", err)}
		e.mu.Unlock()
		e.rx.Stop()
		return
	}
	if e.Logger != nil {
		e.Logger.Info("%s: done", c.Name)
	}
	e.release(ctx, c)
}

// fail accumulates a per-command failure without releasing dependents;
// a consumer is scheduled only after every one of its producers
// reports success.
func (e *Executor) fail(c *iocmd.Command, res rawcmd.Result, postErr error) {
	captured := string(res.Stderr)
	if captured == "" {
		captured = string(res.Stdout)
	}
	if captured == "" && len(c.OtherOutput) > 0 {
		for _, l := range c.OtherOutput {
			captured += l + "\n"
		}
	}
	if postErr != nil {
		if captured != "" {
			captured += "\n"
		}
		captured += postErr.Error()
	}
	if e.Logger != nil {
		e.Logger.Error("%s: failed (exit %d)", c.Name, res.ExitCode)
	}
	e.errs.Append(&CommandError{
		Name:         c.Name,
		ExitCode:     res.ExitCode,
		Signaled:     res.Signaled,
		TimeLimitHit: res.TimeLimitHit,
		Captured:     captured,
	})
}
