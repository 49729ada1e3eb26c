package crypto

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/tryon-ai/tryon/pkg/types"
)

// HostSignals reads environment signals from the running host.
// Non-empty Overrides replace the corresponding host value.
type HostSignals struct {
	Version   string
	Overrides types.EnvironmentConfig
}

// Signals implements SignalSource.
func (h HostSignals) Signals() types.EnvironmentSignals {
	width, height := displaySize()
	signals := types.EnvironmentSignals{
		UserAgent:      userAgent(h.Version),
		Language:       languageTag(),
		DisplayWidth:   width,
		DisplayHeight:  height,
		TimezoneOffset: timezoneOffset(time.Now()),
	}

	if h.Overrides.UserAgent != "" {
		signals.UserAgent = h.Overrides.UserAgent
	}
	if h.Overrides.Language != "" {
		signals.Language = h.Overrides.Language
	}
	if h.Overrides.DisplayWidth > 0 {
		signals.DisplayWidth = h.Overrides.DisplayWidth
	}
	if h.Overrides.DisplayHeight > 0 {
		signals.DisplayHeight = h.Overrides.DisplayHeight
	}

	return signals
}

func userAgent(version string) string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("tryon/%s (%s; %s; %s)", version, runtime.GOOS, runtime.GOARCH, hostname)
}

// languageTag turns a POSIX locale such as "en_US.UTF-8" into "en-US".
func languageTag() string {
	for _, name := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(name); v != "" {
			return normalizeLocale(v)
		}
	}
	return normalizeLocale("")
}

func normalizeLocale(locale string) string {
	if i := strings.IndexAny(locale, ".@"); i >= 0 {
		locale = locale[:i]
	}
	if locale == "" || locale == "C" || locale == "POSIX" {
		return "en-US"
	}
	return strings.ReplaceAll(locale, "_", "-")
}

// displaySize reports the controlling terminal size, or 0x0 when there is none.
func displaySize() (int, int) {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0, 0
	}
	width, height, err := term.GetSize(fd)
	if err != nil {
		return 0, 0
	}
	return width, height
}

// timezoneOffset returns minutes behind UTC, positive west of Greenwich.
func timezoneOffset(now time.Time) int {
	_, offset := now.Zone()
	return -offset / 60
}
