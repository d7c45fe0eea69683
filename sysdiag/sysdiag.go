// Package sysdiag reports host CPU/process diagnostics used to pick
// the executor's default MaximumRunningCommands and to back the "sw
// status" CLI subcommand.
package sysdiag

import (
	"runtime"

	"github.com/elastic/go-sysinfo"
)

// Info is a snapshot of host diagnostics relevant to the executor.
type Info struct {
	Hostname string
	CPUCount int
	GoOS     string
	GoArch   string
}

// Snapshot gathers current host diagnostics. CPU count always comes
// from runtime.NumCPU; hostname is filled in from go-sysinfo's host
// lookup when available, defaulting rather than erroring out when the
// underlying OS probe cannot be read.
func Snapshot() (Info, error) {
	info := Info{
		CPUCount: runtime.NumCPU(),
		GoOS:     runtime.GOOS,
		GoArch:   runtime.GOARCH,
	}
	host, err := sysinfo.Host()
	if err != nil {
		return info, nil
	}
	if hi := host.Info(); hi.Hostname != "" {
		info.Hostname = hi.Hostname
	}
	return info, nil
}

// DefaultMaximumRunningCommands picks the executor's concurrency cap
// when the configuration leaves it at zero: the host's CPU count.
func DefaultMaximumRunningCommands() uint64 {
	info, _ := Snapshot()
	if info.CPUCount < 1 {
		return 1
	}
	return uint64(info.CPUCount)
}
