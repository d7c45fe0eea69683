package rawcmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/swbuild/sw/internal/perr"
	"github.com/swbuild/sw/reactor"
)

// RawCommand is a planned OS process invocation: argv, cwd,
// environment overlay, and three stream endpoints, spawned through a
// reactor.Reactor so its wait/read completions are delivered on the
// reactor's single pump goroutine.
type RawCommand struct {
	Name      string // diagnostic label, e.g. "cc -c a.c"
	Path      string
	Args      []Argument
	Dir       string
	Env       map[string]string // overlay on top of the parent's environment
	Stdin     Endpoint
	Stdout    Endpoint
	Stderr    Endpoint
	TimeLimit time.Duration // 0 means unlimited

	// Detach launches the child and completes immediately without
	// waiting for it; capture endpoints are ignored since nobody will
	// drain them.
	Detach bool
	// ExecReplace replaces the current process with the child (exec on
	// unix; spawn-then-exit elsewhere). Mutually exclusive with Detach.
	ExecReplace bool

	cmd     *exec.Cmd
	pipeOut *io.PipeWriter // set by Pipeline: this stage's stdout feeds the next stage
	pipeIn  *io.PipeReader // set by Pipeline: this stage's stdin comes from the previous stage
}

func (c *RawCommand) argv() []string {
	out := make([]string, len(c.Args))
	for i, a := range c.Args {
		out[i] = a.Value
	}
	return out
}

func (c *RawCommand) environ() []string {
	base := os.Environ()
	if len(c.Env) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(c.Env))
	out = append(out, base...)
	for k, v := range c.Env {
		out = append(out, k+"="+v)
	}
	return out
}

// Start spawns the command asynchronously, wiring its streams per
// Stdin/Stdout/Stderr, and arranges for onDone to be invoked exactly
// once on rx's pump goroutine once the process has exited and all of
// its captured streams have reached EOF. If TimeLimit is nonzero the
// process is killed via context cancellation once it elapses and
// Result.TimeLimitHit is set.
func (c *RawCommand) Start(ctx context.Context, rx *reactor.Reactor, onDone func(Result)) error {
	if c.Path == "" {
		return perr.New("rawcmd: empty argv")
	}
	if c.Detach && c.ExecReplace {
		return perr.New("rawcmd: detach and exec are mutually exclusive")
	}
	if c.ExecReplace {
		return execReplace(c.Path, append([]string{c.Path}, c.argv()...), c.environ())
	}
	if c.Detach {
		return c.startDetached(rx, onDone)
	}

	runCtx := ctx
	var cancelTimeout context.CancelFunc
	if c.TimeLimit > 0 {
		runCtx, cancelTimeout = context.WithTimeout(ctx, c.TimeLimit)
	}

	cmd := exec.CommandContext(runCtx, c.Path, c.argv()...)
	cmd.Dir = c.Dir
	cmd.Env = c.environ()
	setProcAttrs(cmd)

	pending := 0 // outstanding captured-stream completions to wait for before onDone
	var stdoutBuf, stderrBuf *lineOrBufferSink
	var err error

	// fail releases everything materialised so far when the spawn
	// never happens.
	fail := func(err error) error {
		if stdoutBuf != nil {
			stdoutBuf.abort()
		}
		if stderrBuf != nil {
			stderrBuf.abort()
		}
		if cancelTimeout != nil {
			cancelTimeout()
		}
		return err
	}

	if c.pipeOut != nil {
		cmd.Stdout = c.pipeOut
	} else if stdoutBuf, err = wireOutput(cmd, &c.Stdout, false); err != nil {
		return fail(err)
	}
	if stderrBuf, err = wireOutput(cmd, &c.Stderr, true); err != nil {
		return fail(err)
	}
	if c.pipeIn != nil {
		cmd.Stdin = c.pipeIn
	} else if err := wireInput(cmd, &c.Stdin); err != nil {
		return fail(err)
	}

	startedAt := time.Now().UnixNano()
	if err := cmd.Start(); err != nil {
		return fail(err)
	}
	c.cmd = cmd
	afterStart(cmd)
	// The child inherited duplicates of the capture pipes' write ends;
	// drop the parent's copies so the readers see EOF on child exit.
	if stdoutBuf != nil {
		stdoutBuf.releaseChildEnd()
	}
	if stderrBuf != nil {
		stderrBuf.releaseChildEnd()
	}

	if stdoutBuf != nil {
		pending++
	}
	if stderrBuf != nil {
		pending++
	}

	remaining := pending
	var exitErr error
	var exitDone bool
	var timeLimitHit bool

	finish := func() {
		if !exitDone || remaining > 0 {
			return
		}
		if cancelTimeout != nil {
			cancelTimeout()
		}
		res := Result{
			TimeLimitHit: timeLimitHit,
			Err:          exitErr,
			StartedAt:    startedAt,
			EndedAt:      time.Now().UnixNano(),
		}
		if stdoutBuf != nil {
			res.Stdout = stdoutBuf.bytes()
			if stdoutBuf.buf != nil {
				c.Stdout.buf = bytes.NewBuffer(res.Stdout)
			}
		}
		if stderrBuf != nil {
			res.Stderr = stderrBuf.bytes()
			if stderrBuf.buf != nil {
				c.Stderr.buf = bytes.NewBuffer(res.Stderr)
			}
		}
		res.ExitCode, res.Signaled = exitCodeOf(exitErr)
		onDone(res)
	}

	if stdoutBuf != nil {
		rx.ReadAsync(stdoutBuf.reader, func(buf []byte, rerr error) {
			if buf != nil {
				stdoutBuf.feed(buf)
				return
			}
			stdoutBuf.close()
			remaining--
			finish()
		})
	}
	if stderrBuf != nil {
		rx.ReadAsync(stderrBuf.reader, func(buf []byte, rerr error) {
			if buf != nil {
				stderrBuf.feed(buf)
				return
			}
			stderrBuf.close()
			remaining--
			finish()
		})
	}

	rx.RegisterProcess(func() (error, bool) {
		waitErr := cmd.Wait()
		if c.pipeOut != nil {
			_ = c.pipeOut.Close()
		}
		hit := errors.Is(runCtx.Err(), context.DeadlineExceeded)
		return waitErr, hit
	}, func(waitErr error, hit bool) {
		exitErr = waitErr
		timeLimitHit = hit
		exitDone = true
		finish()
	})

	return nil
}

// startDetached launches the child without waiting for it. Only
// inherit and redirect endpoints are honored; the process handle is
// released and a successful zero-exit result is posted at once.
func (c *RawCommand) startDetached(rx *reactor.Reactor, onDone func(Result)) error {
	cmd := exec.Command(c.Path, c.argv()...)
	cmd.Dir = c.Dir
	cmd.Env = c.environ()
	setProcAttrs(cmd)
	for _, ep := range []*Endpoint{&c.Stdout, &c.Stderr} {
		if ep.Kind == Inherit || ep.Kind == RedirectPath {
			if _, err := wireOutput(cmd, ep, ep == &c.Stderr); err != nil {
				return err
			}
		}
	}
	if c.Stdin.Kind == Inherit || c.Stdin.Kind == RedirectPath {
		if err := wireInput(cmd, &c.Stdin); err != nil {
			return err
		}
	}
	startedAt := time.Now().UnixNano()
	if err := cmd.Start(); err != nil {
		return err
	}
	_ = cmd.Process.Release()
	rx.RegisterProcess(func() (error, bool) { return nil, false }, func(error, bool) {
		onDone(Result{StartedAt: startedAt, EndedAt: time.Now().UnixNano()})
	})
	return nil
}

// Run spawns and waits for the command synchronously against a
// private local reactor, returning an *ExitError when the process did
// not succeed.
func (c *RawCommand) Run(ctx context.Context) (Result, error) {
	rx := reactor.New()
	var res Result
	if err := c.Start(ctx, rx, func(r Result) { res = r }); err != nil {
		return Result{}, err
	}
	rx.Run()
	if !res.Success() {
		return res, newExitError(c.Name, res)
	}
	return res, nil
}

func exitCodeOf(err error) (code int, signaled bool) {
	if err == nil {
		return 0, false
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), wasSignaled(exitErr)
	}
	return -1, false
}

// lineOrBufferSink adapts a parent-owned pipe to either line-callback
// or whole-buffer capture, depending on the Endpoint it backs. reader
// is the parent's read end; childEnd is the write end the child
// inherits, closed in the parent right after spawn so the reader sees
// EOF as soon as the child exits.
type lineOrBufferSink struct {
	reader   *os.File
	childEnd *os.File
	split    *lineSplitter
	buf      *endpointBuffer
}

func (s *lineOrBufferSink) feed(chunk []byte) {
	if s.split != nil {
		s.split.feed(chunk)
		return
	}
	s.buf.write(chunk)
}

// releaseChildEnd closes the child-side write end after a successful
// spawn; the child holds its own duplicate.
func (s *lineOrBufferSink) releaseChildEnd() {
	if s.childEnd != nil {
		_ = s.childEnd.Close()
		s.childEnd = nil
	}
}

// abort releases both pipe ends when the spawn never happened.
func (s *lineOrBufferSink) abort() {
	_ = s.reader.Close()
	s.releaseChildEnd()
}

func (s *lineOrBufferSink) close() {
	if s.split != nil {
		s.split.close()
	}
	_ = s.reader.Close()
}

func (s *lineOrBufferSink) bytes() []byte {
	if s.buf != nil {
		return s.buf.bytes()
	}
	return nil
}
