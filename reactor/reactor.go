// Package reactor is a single-threaded, cooperative event pump for
// process exit and stream I/O. Exactly one Reactor drives one build.
//
// Rather than binding IOCP/epoll/kqueue directly, the reactor models a
// completion port as a buffered Go channel of closures ("completion
// thunks"): per-stream and per-process goroutines do the blocking
// syscalls and post a thunk when data or an exit is ready; Run drains
// that channel on a single goroutine, so every callback runs to
// completion before the next is dequeued. Multi-threading the command
// callbacks would require locking the command graph and the file
// registry and would gain nothing, because the real work happens in
// child processes.
package reactor

import (
	"io"
	"sync/atomic"
)

// Reactor is a single-threaded cooperative event pump. Not safe to call
// Run concurrently from two goroutines; registration methods
// (RegisterProcess, ReadAsync) are safe to call from any goroutine,
// including from within a running completion thunk.
type Reactor struct {
	completions chan func()
	outstanding atomic.Int64
	stopped     atomic.Bool
	wake        chan struct{}
}

// New creates a Reactor ready to accept registrations and be Run.
func New() *Reactor {
	return &Reactor{
		completions: make(chan func(), 256),
		wake:        make(chan struct{}, 1),
	}
}

// begin marks one unit of outstanding async work.
func (r *Reactor) begin() { r.outstanding.Add(1) }

// end marks the completion of one unit of outstanding async work.
func (r *Reactor) end() { r.outstanding.Add(-1) }

// post enqueues a thunk to run on the Run goroutine.
func (r *Reactor) post(thunk func()) { r.completions <- thunk }

// RegisterProcess arms a goroutine that invokes wait (typically
// (*exec.Cmd).Wait) and, once it returns, invokes cb exactly once on
// the reactor's pump goroutine with the wait error and whether a
// time-limit termination was detected.
func (r *Reactor) RegisterProcess(wait func() (exitErr error, timeLimitHit bool), cb func(exitErr error, timeLimitHit bool)) {
	r.begin()
	go func() {
		exitErr, hit := wait()
		r.post(func() {
			defer r.end()
			cb(exitErr, hit)
		})
	}()
}

// ReadAsync arms a goroutine that repeatedly reads from rdr, posting
// cb(buf, nil) on the pump goroutine for each non-empty read, in
// arrival order, and finally cb(nil, err) exactly once at EOF or on a
// read error (err is io.EOF at a clean end of stream).
func (r *Reactor) ReadAsync(rdr io.Reader, cb func(buf []byte, err error)) {
	r.begin()
	go func() {
		buf := make([]byte, 32*1024)
		for {
			n, err := rdr.Read(buf)
			if n > 0 {
				chunk := append([]byte(nil), buf[:n]...)
				done := make(chan struct{})
				r.post(func() {
					cb(chunk, nil)
					close(done)
				})
				<-done
			}
			if err != nil {
				done := make(chan struct{})
				r.post(func() {
					defer r.end()
					cb(nil, err)
					close(done)
				})
				<-done
				return
			}
		}
	}()
}

// Run pumps completion thunks until no async work is outstanding or
// Stop has been called. It returns on the calling goroutine, which by
// convention is the one goroutine driving this Reactor for the
// duration of one build; that goroutine is the only mutator of command
// state.
func (r *Reactor) Run() {
	for {
		if r.outstanding.Load() == 0 {
			return
		}
		if r.stopped.Load() {
			return
		}
		select {
		case thunk := <-r.completions:
			thunk()
		case <-r.wake:
		}
	}
}

// Stop is idempotent; it posts a wakeup and causes the next Run
// iteration to return once already-queued thunks (if any were already
// received) have been processed. Stop does not cancel in-flight
// processes or reads; cancellation is the executor's job via its error
// threshold and process termination, not the reactor's.
func (r *Reactor) Stop() {
	r.stopped.Store(true)
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Outstanding reports the number of async registrations that have not
// yet posted their terminal completion thunk. Exposed for tests and
// diagnostics.
func (r *Reactor) Outstanding() int64 { return r.outstanding.Load() }
