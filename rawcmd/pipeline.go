package rawcmd

import (
	"context"
	"io"

	"github.com/swbuild/sw/reactor"
)

// Pipeline runs a sequence of RawCommands with each stage's stdout
// feeding the next stage's stdin. Every stage's own Stdout/Stdin
// Endpoint is ignored where a pipe connects it to a neighbor; a
// stage's Stderr Endpoint is always honored as configured, so
// diagnostics from every stage remain observable, matching a shell
// pipeline's behavior. If any stage exits non-zero, every other stage
// is cascade-killed, via its process group on unix and by terminating
// the stage's own process on windows, before Run returns; the stages
// share a termination fate.
type Pipeline struct {
	Stages []*RawCommand
}

// Run executes the pipeline synchronously, returning the result of
// each stage in order. The pipeline's overall error is the first
// stage failure encountered, if any.
func (p *Pipeline) Run(ctx context.Context) ([]Result, error) {
	n := len(p.Stages)
	if n == 0 {
		return nil, nil
	}
	pipeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for i := 0; i < n-1; i++ {
		pr, pw := io.Pipe()
		p.Stages[i].pipeOut = pw
		p.Stages[i+1].pipeIn = pr
	}

	results := make([]Result, n)
	done := make(chan struct{}, n)
	var firstErr error

	cascadeKill := func(origin *RawCommand) {
		for _, s := range p.Stages {
			if s == origin {
				continue
			}
			if s.cmd != nil && s.cmd.Process != nil {
				_ = killTree(s.cmd, killSignal)
			}
		}
	}

	rx := reactor.New()
	for i, stage := range p.Stages {
		i, stage := i, stage
		if err := stage.Start(pipeCtx, rx, func(r Result) {
			results[i] = r
			if !r.Success() && firstErr == nil {
				firstErr = newExitError(stage.Name, r)
				cancel()
				cascadeKill(stage)
			}
			done <- struct{}{}
		}); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			cancel()
			done <- struct{}{}
		}
	}

	rx.Run()
	for range p.Stages {
		<-done
	}
	return results, firstErr
}
