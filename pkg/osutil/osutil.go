// Package osutil collects small platform and environment helpers shared
// across the module.
package osutil

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

var (
	lf   = []byte("\n")
	crlf = []byte("\r\n")
)

func LF() []byte {
	return lf
}

func CRLF() []byte {
	return crlf
}

func IsWindows() bool {
	return runtime.GOOS == "windows"
}

// PrivateFileMode restricts a file to its owner. Used for per-session log
// files, which can carry protocol traffic.
const PrivateFileMode os.FileMode = 0600

// EnvString returns the value of the environment variable name, or fallback
// when it is unset or blank.
func EnvString(name, fallback string) string {
	v := os.Getenv(name)
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

// EnvInt returns the integer value of the environment variable name, or
// fallback when it is unset or not a base-10 integer.
func EnvInt(name string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(name)))
	if err != nil {
		return fallback
	}
	return v
}

// EnvBool reports whether the environment variable name is set to a truthy
// value: 1, true, on, or yes, case-insensitively.
func EnvBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// FormatDuration renders d as a coarse human-readable string such as
// "1 days 2 hours 5 minutes" or "0.042 seconds". Anything under a
// millisecond renders as "< 1ms".
func FormatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return "< 1ms"
	}

	var b strings.Builder
	space := func() {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
	}

	for _, unit := range []struct {
		span time.Duration
		name string
	}{
		{24 * time.Hour, "days"},
		{time.Hour, "hours"},
		{time.Minute, "minutes"},
	} {
		if n := d / unit.span; n > 0 {
			space()
			fmt.Fprintf(&b, "%d %s", n, unit.name)
			d %= unit.span
		}
	}

	if d >= time.Millisecond {
		space()
		fmt.Fprintf(&b, "%d.%03d seconds", d/time.Second, d%time.Second/time.Millisecond)
	}
	return b.String()
}

// HasOnlyValidFilenameChars reports whether name can be used as a file name
// on all supported platforms. Control characters, the characters Windows
// forbids, and trailing spaces or dots are rejected.
func HasOnlyValidFilenameChars(name string) bool {
	if name == "" {
		return false
	}

	for _, r := range name {
		if r < 0x20 || r == 0x7F {
			return false
		}
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return false
		}
	}

	last := name[len(name)-1]
	return last != ' ' && last != '.'
}
