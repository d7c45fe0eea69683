package compilecmd

import (
	"os"
	"strings"

	"github.com/swbuild/sw/iocmd"
	"github.com/swbuild/sw/rawcmd"
	"github.com/swbuild/sw/swpath"
)

// NewGCC builds an io command for a single GCC/Clang compile. It
// appends "-MD -MF <depsFile>" to argv and sets PostRun to parse the
// resulting make-dependency file into ImplicitInputs once the process
// exits successfully.
func NewGCC(name, compiler string, args []rawcmd.Argument, dir string, env map[string]string, inputs, outputs []swpath.Path, depsFile swpath.Path) *iocmd.Command {
	fullArgs := append(append([]rawcmd.Argument{}, args...),
		rawcmd.Arg("-MD"), rawcmd.Arg("-MF"), rawcmd.ArgPath(string(depsFile)))

	c := &iocmd.Command{
		Name:    name,
		Inputs:  inputs,
		Outputs: outputs,
		RawCommand: &rawcmd.RawCommand{
			Name:   name,
			Path:   compiler,
			Args:   fullArgs,
			Dir:    dir,
			Env:    env,
			Stdout: rawcmd.Endpoint{Kind: rawcmd.CaptureBuffer},
			Stderr: rawcmd.Endpoint{Kind: rawcmd.CaptureBuffer},
		},
	}
	c.PostRun = func(res rawcmd.Result) error {
		c.OtherOutput = splitNonEmptyLines(res.Stdout)
		implicit, err := parseDepsFile(depsFile)
		if err != nil {
			return err
		}
		c.ImplicitInputs = implicit
		return nil
	}
	return c
}

func splitNonEmptyLines(b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	var out []string
	for _, line := range strings.Split(string(b), "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// parseDepsFile reads a make-rule ".d" file and returns every
// dependency token after the first ": " (a colon followed by a space,
// so a drive-letter colon is not taken for it): backslash line-continuations
// are dropped, whitespace-delimited tokens are collected, and a bare
// trailing backslash does not terminate a token.
func parseDepsFile(depsFile swpath.Path) ([]swpath.Path, error) {
	raw, err := os.ReadFile(depsFile.OSForm())
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errEmptyDepsFile
	}
	s := string(raw)
	colon := strings.Index(s, ": ")
	if colon < 0 {
		return nil, errBadDepsFile
	}
	rest := s[colon+2:]

	var out []swpath.Path
	var tok strings.Builder
	flush := func() {
		if tok.Len() == 0 {
			return
		}
		out = append(out, swpath.Normalize(tok.String()))
		tok.Reset()
	}
	runes := []rune(rest)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch {
		case ch == '\\' && i+1 < len(runes) && (runes[i+1] == '\n' || runes[i+1] == '\r'):
			// line continuation: drop the backslash and the newline
			i++
			if i+1 < len(runes) && runes[i] == '\r' && runes[i+1] == '\n' {
				i++
			}
		case ch == '\\':
			// escaped space inside a path token: keep the next rune
			// literally, drop the backslash itself.
			if i+1 < len(runes) {
				tok.WriteRune(runes[i+1])
				i++
			}
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			flush()
		default:
			tok.WriteRune(ch)
		}
	}
	flush()
	return out, nil
}

type depsFileError string

func (e depsFileError) Error() string { return string(e) }

const (
	errEmptyDepsFile = depsFileError("compilecmd: empty deps file")
	errBadDepsFile   = depsFileError("compilecmd: bad deps file")
)
