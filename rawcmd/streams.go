package rawcmd

import (
	"bytes"
	"os"
	"os/exec"
	"sync"
)

// endpointBuffer is a concurrency-safe accumulator backing a
// CaptureBuffer Endpoint; written from the reactor's pump goroutine
// only, and copied into the Result and the Endpoint's Buffer once the
// command completes.
type endpointBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *endpointBuffer) write(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(p)
}

func (b *endpointBuffer) bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

// wireOutput wires cmd's stdout (or stderr, if isErr) per ep.Kind,
// returning a non-nil sink only for the kinds the reactor must pump
// asynchronously (CaptureBuffer, Callback). Async kinds use a
// parent-owned os.Pipe rather than cmd.StdoutPipe/StderrPipe: Wait
// closes the pipes it created itself on process exit, which would race
// the reactor's reads and drop any kernel-buffered tail. With a pipe
// the parent owns, Wait touches nothing; the reader sees EOF once the
// child exits and the parent has closed the child-side write end.
func wireOutput(cmd *exec.Cmd, ep *Endpoint, isErr bool) (*lineOrBufferSink, error) {
	switch ep.Kind {
	case Inherit:
		if isErr {
			cmd.Stderr = os.Stderr
		} else {
			cmd.Stdout = os.Stdout
		}
		return nil, nil
	case Closed:
		return nil, nil
	case RedirectPath:
		f, err := os.Create(ep.Path)
		if err != nil {
			return nil, err
		}
		if isErr {
			cmd.Stderr = f
		} else {
			cmd.Stdout = f
		}
		return nil, nil
	case CaptureBuffer:
		pr, pw, err := pipeFor(cmd, isErr)
		if err != nil {
			return nil, err
		}
		return &lineOrBufferSink{reader: pr, childEnd: pw, buf: &endpointBuffer{}}, nil
	case Callback:
		pr, pw, err := pipeFor(cmd, isErr)
		if err != nil {
			return nil, err
		}
		return &lineOrBufferSink{reader: pr, childEnd: pw, split: newLineSplitter(ep.OnLine)}, nil
	case PipePeer:
		// Wired by Pipeline, not here.
		return nil, nil
	default:
		return nil, nil
	}
}

func pipeFor(cmd *exec.Cmd, isErr bool) (*os.File, *os.File, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}
	if isErr {
		cmd.Stderr = pw
	} else {
		cmd.Stdout = pw
	}
	return pr, pw, nil
}

// wireInput wires cmd's stdin per ep.Kind.
func wireInput(cmd *exec.Cmd, ep *Endpoint) error {
	switch ep.Kind {
	case Inherit:
		cmd.Stdin = os.Stdin
	case Closed:
		cmd.Stdin = nil
	case RedirectPath:
		f, err := os.Open(ep.Path)
		if err != nil {
			return err
		}
		cmd.Stdin = f
	case CaptureBuffer:
		cmd.Stdin = bytes.NewReader(ep.Input)
	case Callback, PipePeer:
		// Callback makes no sense on stdin; PipePeer wired by Pipeline.
	}
	return nil
}
