package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestLogger_VerbosityGates(t *testing.T) {
	color.NoColor = true
	var out, errOut bytes.Buffer
	l := Logger{Out: &out, Err: &errOut}

	l.Infof("hidden %d", 1)
	l.Debugf("hidden %d", 2)
	if out.Len() != 0 {
		t.Errorf("Expected no stdout output without flags, got: %q", out.String())
	}

	l.Warnf("warned %s", "once")
	if !strings.Contains(errOut.String(), "[warn] warned once") {
		t.Errorf("Expected warning on stderr, got: %q", errOut.String())
	}
}

func TestLogger_DebugImpliesInfo(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer
	l := Logger{Debug: true, Out: &out, Err: &out}

	l.Infof("info line")
	l.Debugf("debug line")

	got := out.String()
	if !strings.Contains(got, "[info] info line") || !strings.Contains(got, "[debug] debug line") {
		t.Errorf("Expected info and debug lines, got: %q", got)
	}
}
