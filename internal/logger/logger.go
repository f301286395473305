// Package logger reports search errors on standard error.
//
// Three severities exist. Per-item errors (a file that cannot be opened, a
// directory that cannot be listed) are printed unless the logger is muted.
// Warnings are printed regardless of mute. Fatal errors are always printed
// and terminate the process with exit code 1.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Logger is safe for concurrent use by all workers.
type Logger struct {
	writer      io.Writer
	mutex       sync.Mutex
	mute        bool
	debug       bool
	colorOutput bool
	exit        func(int)
}

// New creates a Logger writing to w. A nil writer discards everything except
// the exit call of Fatalf.
func New(w io.Writer, mute, debug bool) *Logger {
	return &Logger{
		writer:      w,
		mute:        mute,
		debug:       debug,
		colorOutput: isTerminal(w),
		exit:        os.Exit,
	}
}

// SetExit replaces the function Fatalf calls after printing.
func (l *Logger) SetExit(fn func(int)) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.exit = fn
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (l *Logger) tag(s string, attr color.Attribute) string {
	if !l.colorOutput {
		return s
	}
	return color.New(attr, color.Bold).Sprint(s)
}

func (l *Logger) write(line string) {
	if l.writer == nil {
		return
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()
	fmt.Fprintln(l.writer, line)
}

// Errorf reports a recoverable failure on path, e.g.
// "dir/a.txt: error opening file: permission denied".
func (l *Logger) Errorf(path, action string, err error) {
	if l.mute {
		return
	}
	l.write(fmt.Sprintf("%s: %s %s: %v", path, l.tag("error", color.FgRed), action, err))
}

// Warnf prints a message that is not tied to a single path. Mute does not
// apply.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.write(l.tag("warning", color.FgYellow) + ": " + fmt.Sprintf(format, args...))
}

// Debugf prints only when debug output was requested.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.write(l.tag("debug", color.FgCyan) + ": " + fmt.Sprintf(format, args...))
}

// Fatalf prints "fatal error: ..." and exits with status 1.
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.write(l.tag("fatal error", color.FgRed) + ": " + fmt.Sprintf(format, args...))
	l.mutex.Lock()
	exit := l.exit
	l.mutex.Unlock()
	exit(1)
}
