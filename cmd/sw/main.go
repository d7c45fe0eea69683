/*
sw is the CLI entry point for the incremental command engine.
"sw build" loads a JSON command list (produced by whatever upstream
front end plans the build) and drives it through the executor;
"sw status" reports host diagnostics; "sw run" executes a single
ad-hoc command synchronously.
*/
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/swbuild/sw/cmdhash"
	"github.com/swbuild/sw/cmdstorage"
	"github.com/swbuild/sw/config"
	"github.com/swbuild/sw/executor"
	"github.com/swbuild/sw/fileregistry"
	"github.com/swbuild/sw/internal/plog"
	"github.com/swbuild/sw/iocmd"
	"github.com/swbuild/sw/rawcmd"
	"github.com/swbuild/sw/shellscript"
	"github.com/swbuild/sw/swpath"
	"github.com/swbuild/sw/sysdiag"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	var err error
	switch os.Args[1] {
	case "build":
		err = runBuild(os.Args[2:])
	case "status":
		err = runStatus(os.Args[2:])
	case "run":
		err = runRun(os.Args[2:])
	case "version":
		fmt.Println(version)
		return
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		plog.Default.Fatal("%s", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: sw <build|status|run|version> [flags]")
}

// commandSpec is the JSON shape an upstream build planner hands the
// executor.
type commandSpec struct {
	Name    string            `json:"name"`
	Path    string            `json:"path"`
	Args    []string          `json:"args"`
	Dir     string            `json:"dir"`
	Env     map[string]string `json:"env"`
	Inputs  []string          `json:"inputs"`
	Outputs []string          `json:"outputs"`
	Always  bool              `json:"always"`
}

func loadCommands(path string) ([]*iocmd.Command, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var specs []commandSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, err
	}
	cmds := make([]*iocmd.Command, 0, len(specs))
	for _, s := range specs {
		args := make([]rawcmd.Argument, len(s.Args))
		for i, a := range s.Args {
			args[i] = rawcmd.Arg(a)
		}
		inputs := make([]swpath.Path, len(s.Inputs))
		for i, p := range s.Inputs {
			inputs[i] = swpath.Normalize(p)
		}
		outputs := make([]swpath.Path, len(s.Outputs))
		for i, p := range s.Outputs {
			outputs[i] = swpath.Normalize(p)
		}
		cmds = append(cmds, &iocmd.Command{
			Name:    s.Name,
			Always:  s.Always,
			Inputs:  inputs,
			Outputs: outputs,
			RawCommand: &rawcmd.RawCommand{
				Name:   s.Name,
				Path:   s.Path,
				Args:   args,
				Dir:    s.Dir,
				Env:    s.Env,
				Stdout: rawcmd.Endpoint{Kind: rawcmd.CaptureBuffer},
				Stderr: rawcmd.Endpoint{Kind: rawcmd.CaptureBuffer},
			},
		})
	}
	return cmds, nil
}

func runBuild(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	workdir := fs.String("workdir", ".", "build working directory holding db/ and rsp/")
	commandsFile := fs.String("commands", "commands.json", "JSON command-list file")
	jobs := fs.Uint64("jobs", 0, "maximum concurrent commands (0 = CPU count)")
	ignoreErrors := fs.Int("ignore-errors", 0, "number of command failures to tolerate before halting")
	rebuildAll := fs.Bool("rebuild-all", false, "treat every command as outdated")
	explain := fs.Bool("explain", false, "log each command's outdatedness reason")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cmds, err := loadCommands(*commandsFile)
	if err != nil {
		return err
	}

	cfg, err := config.Load(swpath.Path(*workdir).Join("sw.yaml").OSForm())
	if err != nil {
		return err
	}
	if !wasSet(fs, "workdir") {
		*workdir = cfg.WorkDir
	}
	if !wasSet(fs, "jobs") {
		*jobs = cfg.MaximumRunningCommands
	}
	if !wasSet(fs, "ignore-errors") {
		*ignoreErrors = cfg.IgnoreErrors
	}
	if !wasSet(fs, "rebuild-all") {
		*rebuildAll = cfg.RebuildAll
	}
	if !wasSet(fs, "explain") {
		*explain = cfg.ExplainOutdated
	}
	if *explain {
		// the executor logs outdatedness reasons at debug severity
		plog.Default.SetLevel(plog.Debug)
	}

	registry := fileregistry.New()
	store, err := cmdstorage.Open(*workdir, registry)
	if err != nil {
		return err
	}
	defer store.Close()

	maxRunning := *jobs
	if maxRunning == 0 {
		maxRunning = sysdiag.DefaultMaximumRunningCommands()
	}

	ex := &executor.Executor{
		Store:                  store,
		Registry:               registry,
		Logger:                 plog.Default,
		MaximumRunningCommands: maxRunning,
		IgnoreErrors:           *ignoreErrors,
		RebuildAll:             *rebuildAll,
		ExplainOutdated:        *explain,
	}
	if err := ex.Run(context.Background(), cmds); err != nil {
		return err
	}
	if errs := ex.Errors(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e)
		}
		return fmt.Errorf("build failed: %d command(s) errored", len(errs))
	}
	return nil
}

// wasSet reports whether flag name was explicitly passed on the
// command line, so config.Load's sw.yaml values only fill in flags the
// user left at their zero default.
func wasSet(fs *flag.FlagSet, name string) (set bool) {
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func runStatus(args []string) error {
	info, err := sysdiag.Snapshot()
	if err != nil {
		return err
	}
	fmt.Printf("host: %s\nos/arch: %s/%s\ncpus: %d\n", info.Hostname, info.GoOS, info.GoArch, info.CPUCount)
	return nil
}

func runRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	dir := fs.String("dir", "", "working directory")
	saveDir := fs.String("save", "", "also save a reproduction script under this rsp/ directory before running")
	doExec := fs.Bool("exec", false, "replace the sw process with the command instead of spawning a child")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return fmt.Errorf("sw run: missing command")
	}
	raw := &rawcmd.RawCommand{
		Name:        rest[0],
		Path:        rest[0],
		Args:        argsOf(rest[1:]),
		Dir:         *dir,
		Stdout:      rawcmd.Endpoint{Kind: rawcmd.Inherit},
		Stderr:      rawcmd.Endpoint{Kind: rawcmd.Inherit},
		ExecReplace: *doExec,
	}
	if *saveDir != "" {
		var b cmdhash.Builder
		b.Argument(cmdhash.ArgPath, raw.Path)
		for _, a := range raw.Args {
			b.Argument(a.Kind, a.Value)
		}
		b.WorkingDirectory(raw.Dir)
		dialect := shellscript.DetectDialect(runtime.GOOS)
		if _, err := shellscript.Save(swpath.Normalize(*saveDir), raw.Name, b.Sum(), raw, dialect); err != nil {
			return err
		}
	}
	res, err := raw.Run(context.Background())
	if err != nil {
		// propagate the child's exit code when it ran and failed;
		// spawn failures surface as ordinary errors.
		if res.ExitCode > 0 {
			os.Exit(res.ExitCode)
		}
		return err
	}
	return nil
}

func argsOf(rest []string) []rawcmd.Argument {
	out := make([]rawcmd.Argument, len(rest))
	for i, a := range rest {
		out[i] = rawcmd.Arg(a)
	}
	return out
}
