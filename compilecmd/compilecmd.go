// Package compilecmd builds compile commands: IO commands that
// additionally recover implicit header dependencies from compiler
// output, either by parsing MSVC's "/showIncludes" stdout annotation
// or by reading the ".d" make-rule file GCC/Clang emit with
// "-MD -MF".
package compilecmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/swbuild/sw/iocmd"
	"github.com/swbuild/sw/rawcmd"
	"github.com/swbuild/sw/swpath"
)

// NewMSVC builds an io command for a single MSVC compile, appending
// "/showIncludes" to argv and wiring a stdout line callback that
// recovers ImplicitInputs via the compiler's localized "Note:
// including file:" annotation. Lines that are not the annotation are
// kept verbatim in OtherOutput for the error message on failure.
func NewMSVC(name, compiler string, args []rawcmd.Argument, dir string, env map[string]string, inputs, outputs []swpath.Path) *iocmd.Command {
	c := &iocmd.Command{Name: name, Inputs: inputs, Outputs: outputs}

	fullArgs := append(append([]rawcmd.Argument{}, args...), rawcmd.Arg("/showIncludes"))

	var mu sync.Mutex
	var firstLineSeen bool

	// Non-annotation lines go straight onto c.OtherOutput as they
	// arrive: cl.exe writes its errors to stdout, and the diagnostic
	// for a failed compile is assembled from OtherOutput, so the lines
	// must be there whether or not the process exits zero.
	onLine := func(line string) {
		mu.Lock()
		defer mu.Unlock()
		// The compiler echoes the source filename as its first stdout
		// line before any /showIncludes annotations.
		if !firstLineSeen {
			firstLineSeen = true
			return
		}
		prefix, err := prefixFor(compiler, env)
		if err != nil {
			c.OtherOutput = append(c.OtherOutput, line)
			return
		}
		idx := strings.Index(line, prefix)
		if idx < 0 {
			c.OtherOutput = append(c.OtherOutput, line)
			return
		}
		rest := strings.TrimLeft(line[idx+len(prefix):], " ")
		c.ImplicitInputs = append(c.ImplicitInputs, swpath.Normalize(rest))
	}

	c.RawCommand = &rawcmd.RawCommand{
		Name:   name,
		Path:   compiler,
		Args:   fullArgs,
		Dir:    dir,
		Env:    env,
		Stdout: rawcmd.Endpoint{Kind: rawcmd.Callback, OnLine: onLine},
		Stderr: rawcmd.Endpoint{Kind: rawcmd.CaptureBuffer},
	}
	return c
}

// prefixMu/prefixCache memoise the localized "Note: including file:"
// prefix probe per compiler path, once per process. Failed probes are
// cached too, or a failure would re-spawn the probe on every
// stdout line.
type prefixProbe struct {
	prefix string
	err    error
}

var (
	prefixMu    sync.Mutex
	prefixCache = map[string]prefixProbe{}
)

// prefixFor discovers compiler's localized /showIncludes annotation
// prefix by compiling a throwaway header include and scanning the
// first informational line after the source-filename echo.
func prefixFor(compiler string, env map[string]string) (string, error) {
	prefixMu.Lock()
	if p, ok := prefixCache[compiler]; ok {
		prefixMu.Unlock()
		return p.prefix, p.err
	}
	prefixMu.Unlock()

	prefix, err := probePrefix(compiler, env)
	prefixMu.Lock()
	prefixCache[compiler] = prefixProbe{prefix: prefix, err: err}
	prefixMu.Unlock()
	return prefix, err
}

// probePrefix compiles a throwaway include through compiler and scans
// the echoed output for the text preceding the probe header's path.
func probePrefix(compiler string, env map[string]string) (string, error) {
	dir, err := os.MkdirTemp("", "sw-msvc-prefix")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	hdr := filepath.Join(dir, "sw_msvc_prefix.h")
	src := filepath.Join(dir, "sw_msvc_prefix.c")
	obj := filepath.Join(dir, "sw_msvc_prefix.obj")
	if err := os.WriteFile(hdr, nil, 0o644); err != nil {
		return "", err
	}
	if err := os.WriteFile(src, []byte("#include \"sw_msvc_prefix.h\"\nint dummy;\n"), 0o644); err != nil {
		return "", err
	}

	probe := &rawcmd.RawCommand{
		Name: "msvc-prefix-probe",
		Path: compiler,
		Args: []rawcmd.Argument{
			rawcmd.Arg("/nologo"), rawcmd.Arg("/c"), rawcmd.Arg(src),
			rawcmd.Arg("/showIncludes"), rawcmd.Arg("/Fo" + obj),
		},
		Env:    env,
		Stdout: rawcmd.Endpoint{Kind: rawcmd.CaptureBuffer},
		Stderr: rawcmd.Endpoint{Kind: rawcmd.CaptureBuffer},
	}
	// The probe's own exit code is irrelevant; only the informational
	// /showIncludes line it emits matters.
	res, _ := probe.Run(context.Background())
	out := string(res.Stdout)
	if out == "" {
		out = string(res.Stderr)
	}

	nl := strings.IndexByte(out, '\n')
	if nl < 0 {
		return "", errBadPrefix
	}
	rest := strings.TrimLeft(out[nl:], "\r\n\t ")
	// The annotation line ends with the probe header's absolute path;
	// everything before the path's directory is the localized prefix.
	// The compiler may echo the path with different case than
	// MkdirTemp reported, so match case-insensitively.
	hdrDir := dir + string(os.PathSeparator)
	idx := strings.Index(strings.ToLower(rest), strings.ToLower(hdrDir))
	if idx < 0 {
		return "", errBadPrefix
	}
	return strings.TrimRight(rest[:idx], " "), nil
}

type prefixError string

func (e prefixError) Error() string { return string(e) }

const errBadPrefix = prefixError("compilecmd: cannot determine msvc /showIncludes prefix")
