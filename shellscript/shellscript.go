// Package shellscript renders any rawcmd.RawCommand as a
// self-contained shell/batch script under <workdir>/rsp/<hash><ext>,
// reproducing its cwd, env, and argv with one-argument-per-line
// continuations. Render returns the script text and Save writes it,
// kept separate so callers can also use the text for in-memory
// diagnostics.
package shellscript

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/swbuild/sw/cmdhash"
	"github.com/swbuild/sw/rawcmd"
)

// Dialect describes one script flavor: cmd (Windows batch) or sh
// (POSIX shell). CdFmt takes the working directory; SetEnvFmt takes a
// key and a value.
type Dialect struct {
	Extension string
	Prolog    string
	Epilog    string
	ArgDelim  string
	AnyArg    string
	CdFmt     string
	SetEnvFmt string
}

// Cmd is the Windows cmd.exe batch dialect.
var Cmd = Dialect{
	Extension: ".bat",
	Prolog:    "@echo off\n\nsetlocal\n\n",
	Epilog:    "if %ERRORLEVEL% NEQ 0 echo Error code: %ERRORLEVEL% && exit /b %ERRORLEVEL%\n",
	ArgDelim:  "^",
	AnyArg:    "%*",
	CdFmt:     "cd /d \"%s\"\n\n",
	SetEnvFmt: "set %s=%s\n",
}

// Sh is the POSIX /bin/sh dialect.
var Sh = Dialect{
	Extension: ".sh",
	Prolog:    "#!/bin/sh\n\n",
	Epilog:    "E=$?\nif [ $E -ne 0 ]; then echo \"Error code: $E\"; fi\n",
	ArgDelim:  "\\",
	AnyArg:    "$*",
	CdFmt:     "cd \"%s\"\n\n",
	SetEnvFmt: "export %s=\"%s\"\n",
}

// FileName returns the script's filename: the command's hash followed
// by the dialect's extension.
func FileName(h cmdhash.Hash, d Dialect) string {
	return strconv.FormatUint(uint64(h), 10) + d.Extension
}

// Render produces the script text reproducing c's cwd, environment,
// and argv (c.Path, when set, followed by c.Args) in dialect d, one
// argument per line with a trailing continuation delimiter.
func Render(name string, c *rawcmd.RawCommand, d Dialect) string {
	var b strings.Builder
	b.WriteString(d.Prolog)
	b.WriteString("echo ")
	b.WriteString(name)
	b.WriteString("\n\n")

	if c.Dir != "" {
		fmt.Fprintf(&b, d.CdFmt, c.Dir)
	}
	for k, v := range c.Env {
		fmt.Fprintf(&b, d.SetEnvFmt, k, v)
	}
	if len(c.Env) > 0 {
		b.WriteString("\n")
	}

	argv := c.Args
	if c.Path != "" {
		argv = append([]rawcmd.Argument{rawcmd.Arg(c.Path)}, c.Args...)
	}
	for _, a := range argv {
		b.WriteString("    \"")
		b.WriteString(a.Value)
		b.WriteString("\" ")
		b.WriteString(d.ArgDelim)
		b.WriteString("\n")
	}
	if len(argv) > 0 {
		// Drop the trailing continuation on the final argument line and
		// close the invocation; AnyArg forwards this script's own argv
		// through to the command.
		s := b.String()
		s = strings.TrimSuffix(s, d.ArgDelim+"\n")
		s += d.AnyArg + "\n\n"
		b.Reset()
		b.WriteString(s)
	}

	b.WriteString(d.Epilog)
	return b.String()
}
