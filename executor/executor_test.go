package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/swbuild/sw/cmdstorage"
	"github.com/swbuild/sw/fileregistry"
	"github.com/swbuild/sw/iocmd"
	"github.com/swbuild/sw/rawcmd"
	"github.com/swbuild/sw/swpath"
)

func newTestExecutor(t *testing.T) (*Executor, *cmdstorage.Store) {
	t.Helper()
	reg := fileregistry.New()
	store, err := cmdstorage.Open(t.TempDir(), reg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return &Executor{
		Store:                  store,
		Registry:               reg,
		MaximumRunningCommands: 4,
	}, store
}

// touchCommand builds a trivial io command that copies src to dst via
// the shell, standing in for a compile/link step in these tests (no
// real compiler is required to exercise the scheduler).
func touchCommand(name, dst string, inputs []swpath.Path, outputs []swpath.Path) *iocmd.Command {
	return &iocmd.Command{
		Name:    name,
		Inputs:  inputs,
		Outputs: outputs,
		RawCommand: &rawcmd.RawCommand{
			Name: name,
			Path: "/bin/sh",
			Args: []rawcmd.Argument{
				rawcmd.Arg("-c"),
				rawcmd.Arg("cat " + shellQuote(string(inputs[0])) + " > " + shellQuote(dst)),
			},
		},
	}
}

func shellQuote(s string) string { return "'" + s + "'" }

func TestExecutorTwoCommandChainIdempotent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "main.c")
	obj := filepath.Join(dir, "main.o")
	bin := filepath.Join(dir, "a.out")
	if err := os.WriteFile(src, []byte("int main(){return 0;}"), 0o644); err != nil {
		t.Fatal(err)
	}

	compile := touchCommand("compile", obj, []swpath.Path{swpath.Normalize(src)}, []swpath.Path{swpath.Normalize(obj)})
	link := touchCommand("link", bin, []swpath.Path{swpath.Normalize(obj)}, []swpath.Path{swpath.Normalize(bin)})

	ex, _ := newTestExecutor(t)
	if err := ex.Run(context.Background(), []*iocmd.Command{compile, link}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if errs := ex.Errors(); len(errs) != 0 {
		t.Fatalf("first run errors: %v", errs)
	}
	if _, err := os.Stat(bin); err != nil {
		t.Fatalf("expected output to exist: %v", err)
	}

	compile2 := touchCommand("compile", obj, []swpath.Path{swpath.Normalize(src)}, []swpath.Path{swpath.Normalize(obj)})
	link2 := touchCommand("link", bin, []swpath.Path{swpath.Normalize(obj)}, []swpath.Path{swpath.Normalize(bin)})
	if err := ex.Run(context.Background(), []*iocmd.Command{compile2, link2}); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if errs := ex.Errors(); len(errs) != 0 {
		t.Fatalf("second run errors: %v", errs)
	}
	if compile2.StartTime != 0 {
		t.Fatalf("expected second-run compile to be skipped, but it ran")
	}
	if link2.StartTime != 0 {
		t.Fatalf("expected second-run link to be skipped, but it ran")
	}
}

func TestExecutorFaultIsolation(t *testing.T) {
	dir := t.TempDir()
	goodSrc := filepath.Join(dir, "good.c")
	goodOut := filepath.Join(dir, "good.o")
	if err := os.WriteFile(goodSrc, []byte("ok"), 0o644); err != nil {
		t.Fatal(err)
	}

	good := touchCommand("good", goodOut, []swpath.Path{swpath.Normalize(goodSrc)}, []swpath.Path{swpath.Normalize(goodOut)})
	bad := &iocmd.Command{
		Name: "bad",
		RawCommand: &rawcmd.RawCommand{
			Name: "bad",
			Path: "/bin/sh",
			Args: []rawcmd.Argument{rawcmd.Arg("-c"), rawcmd.Arg("exit 7")},
		},
	}

	ex, _ := newTestExecutor(t)
	ex.IgnoreErrors = 5
	if err := ex.Run(context.Background(), []*iocmd.Command{good, bad}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if good.EndTime == 0 {
		t.Fatal("expected independent good command to complete despite bad command failing")
	}
	errs := ex.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected one accumulated error, got %d: %v", len(errs), errs)
	}
	ce, ok := errs[0].(*CommandError)
	if !ok {
		t.Fatalf("expected *CommandError, got %T", errs[0])
	}
	if ce.ExitCode != 7 {
		t.Fatalf("expected exit code 7, got %d", ce.ExitCode)
	}
}

func TestExecutorTimeLimit(t *testing.T) {
	c := &iocmd.Command{
		Name: "slow",
		RawCommand: &rawcmd.RawCommand{
			Name:      "slow",
			Path:      "/bin/sh",
			Args:      []rawcmd.Argument{rawcmd.Arg("-c"), rawcmd.Arg("sleep 10")},
			TimeLimit: 200 * time.Millisecond,
		},
	}
	ex, _ := newTestExecutor(t)
	if err := ex.Run(context.Background(), []*iocmd.Command{c}); err != nil {
		t.Fatalf("run: %v", err)
	}
	errs := ex.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected one error from time-limited command, got %d", len(errs))
	}
	if got := errs[0].Error(); !contains(got, "time limit hit") {
		t.Fatalf("expected error to mention time limit hit, got %q", got)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}
