//go:build unix

// Process-group wiring for pipeline termination cascades: each child
// gets its own process group so a kill reaches the whole tree, not
// just the leader.
package rawcmd

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

const killSignal = syscall.SIGKILL

func setProcAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// afterStart is a no-op on unix: the process group was already
// established by SysProcAttr.Setpgid at spawn time.
func afterStart(cmd *exec.Cmd) {}

// killTree sends sig to the whole process group rooted at cmd, used by
// Pipeline to cascade-terminate every stage when one fails.
func killTree(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	return unix.Kill(-cmd.Process.Pid, sig)
}

// execReplace replaces the current process image with argv.
func execReplace(argv0 string, argv, env []string) error {
	return unix.Exec(argv0, argv, env)
}

func wasSignaled(exitErr *exec.ExitError) bool {
	ws, ok := exitErr.Sys().(syscall.WaitStatus)
	return ok && ws.Signaled()
}
