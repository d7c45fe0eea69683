package rawcmd

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRunCaptureStdout(t *testing.T) {
	c := &RawCommand{
		Name:   "echo",
		Path:   "/bin/echo",
		Args:   []Argument{Arg("hello"), Arg("world")},
		Stdout: Endpoint{Kind: CaptureBuffer},
	}
	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.TrimSpace(string(res.Stdout)); got != "hello world" {
		t.Fatalf("got stdout %q", got)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit code = %d", res.ExitCode)
	}
}

func TestRunNonZeroExitIsExitError(t *testing.T) {
	c := &RawCommand{
		Name: "false",
		Path: "/bin/false",
	}
	_, err := c.Run(context.Background())
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	var ee *ExitError
	if !asExitError(err, &ee) {
		t.Fatalf("expected *ExitError, got %T: %v", err, err)
	}
	if ee.ExitCode != 1 {
		t.Fatalf("exit code = %d, want 1", ee.ExitCode)
	}
}

func TestTimeLimitKillsProcess(t *testing.T) {
	c := &RawCommand{
		Name:      "sleep",
		Path:      "/bin/sleep",
		Args:      []Argument{Arg("5")},
		TimeLimit: 50 * time.Millisecond,
	}
	res, _ := c.Run(context.Background())
	if !res.TimeLimitHit {
		t.Fatal("expected TimeLimitHit")
	}
}

func TestCallbackEndpointReceivesLines(t *testing.T) {
	var lines []string
	c := &RawCommand{
		Name:   "printf",
		Path:   "/usr/bin/printf",
		Args:   []Argument{Arg("a\\nb\\nc")},
		Stdout: Endpoint{Kind: Callback, OnLine: func(l string) { lines = append(lines, l) }},
	}
	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 3 || lines[0] != "a" || lines[1] != "b" || lines[2] != "c" {
		t.Fatalf("got lines %v", lines)
	}
}

func TestDetachDoesNotWaitForChild(t *testing.T) {
	c := &RawCommand{
		Name:   "sleep",
		Path:   "/bin/sleep",
		Args:   []Argument{Arg("2")},
		Detach: true,
	}
	start := time.Now()
	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("detached run waited for the child")
	}
}

func TestDetachAndExecAreMutuallyExclusive(t *testing.T) {
	c := &RawCommand{
		Name:        "true",
		Path:        "/bin/true",
		Detach:      true,
		ExecReplace: true,
	}
	if _, err := c.Run(context.Background()); err == nil {
		t.Fatal("expected mutual-exclusion error")
	}
}

func TestPipelineConnectsStages(t *testing.T) {
	p := &Pipeline{Stages: []*RawCommand{
		{Name: "echo", Path: "/bin/echo", Args: []Argument{Arg("hello")}},
		{Name: "cat", Path: "/bin/cat", Stdout: Endpoint{Kind: CaptureBuffer}},
	}}
	results, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected pipeline error: %v", err)
	}
	if got := strings.TrimSpace(string(results[1].Stdout)); got != "hello" {
		t.Fatalf("got %q", got)
	}
}

func asExitError(err error, target **ExitError) bool {
	ee, ok := err.(*ExitError)
	if !ok {
		return false
	}
	*target = ee
	return true
}
