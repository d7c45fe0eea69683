// Package plog is the single global logging channel: severity-tagged,
// timestamped, human-readable text lines wrapping the standard
// library's log.Logger. There is no structured-output contract.
package plog

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/term"
)

// Severity orders log lines from chattiest to most urgent.
type Severity uint8

const (
	Trace Severity = iota
	Debug
	Info
	Warn
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Trace:
		return "trace"
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "?"
	}
}

// ansi colors, used only when the output stream is a terminal.
var severityColor = map[Severity]string{
	Trace: "\x1b[90m",
	Debug: "\x1b[36m",
	Info:  "\x1b[32m",
	Warn:  "\x1b[33m",
	Error: "\x1b[31m",
	Fatal: "\x1b[35m",
}

const ansiReset = "\x1b[0m"

// Logger is a severity-filtered line logger.
type Logger struct {
	out      io.Writer
	mu       sync.Mutex
	std      *log.Logger
	isTerm   bool
	minLevel atomic.Int32
}

// New creates a Logger writing to w. minLevel sets the minimum severity
// that is actually printed; lines below it are discarded cheaply.
func New(w io.Writer, minLevel Severity) *Logger {
	isTerm := false
	if f, ok := w.(*os.File); ok {
		isTerm = term.IsTerminal(int(f.Fd()))
	}
	l := &Logger{
		out:    w,
		std:    log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds),
		isTerm: isTerm,
	}
	l.minLevel.Store(int32(minLevel))
	return l
}

// Default is the process-wide logging channel, writing to stderr.
var Default = New(os.Stderr, Info)

// SetLevel adjusts the minimum severity printed.
func (l *Logger) SetLevel(sev Severity) { l.minLevel.Store(int32(sev)) }

// Log writes one severity-tagged line, formatted like fmt.Sprintf.
func (l *Logger) Log(sev Severity, format string, a ...any) {
	if int32(sev) < l.minLevel.Load() {
		return
	}
	tag := "[" + sev.String() + "]"
	if l.isTerm {
		if color, ok := severityColor[sev]; ok {
			tag = color + tag + ansiReset
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.std.Output(3, tag+"\x20"+fmt.Sprintf(format, a...))
}

func (l *Logger) Trace(format string, a ...any) { l.Log(Trace, format, a...) }
func (l *Logger) Debug(format string, a ...any) { l.Log(Debug, format, a...) }
func (l *Logger) Info(format string, a ...any)  { l.Log(Info, format, a...) }
func (l *Logger) Warn(format string, a ...any)  { l.Log(Warn, format, a...) }
func (l *Logger) Error(format string, a ...any) { l.Log(Error, format, a...) }
func (l *Logger) Fatal(format string, a ...any) { l.Log(Fatal, format, a...) }
