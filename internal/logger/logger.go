package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

type Logger struct {
	Verbose bool
	Debug   bool

	// Out and Err override stdout and stderr when set.
	Out io.Writer
	Err io.Writer
}

func (l Logger) Infof(msg string, args ...any) {
	if l.Verbose || l.Debug {
		fmt.Fprintln(l.stdout(), color.GreenString("[info] ")+fmt.Sprintf(msg, args...))
	}
}

func (l Logger) Debugf(msg string, args ...any) {
	if l.Debug {
		fmt.Fprintln(l.stdout(), color.CyanString("[debug] ")+fmt.Sprintf(msg, args...))
	}
}

func (l Logger) Warnf(msg string, args ...any) {
	fmt.Fprintln(l.stderr(), color.YellowString("[warn] ")+fmt.Sprintf(msg, args...))
}

func (l Logger) Errorf(msg string, args ...any) {
	fmt.Fprintln(l.stderr(), color.RedString("[error] ")+fmt.Sprintf(msg, args...))
}

func (l Logger) stdout() io.Writer {
	if l.Out != nil {
		return l.Out
	}
	return os.Stdout
}

func (l Logger) stderr() io.Writer {
	if l.Err != nil {
		return l.Err
	}
	return os.Stderr
}

// Discard returns a logger that writes nowhere. Used by tests.
func Discard() Logger {
	return Logger{Out: io.Discard, Err: io.Discard}
}
