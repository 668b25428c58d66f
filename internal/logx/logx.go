// Package logx builds the pion/logging factory shared by every component and
// by the pion WebRTC stack itself.
package logx

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pion/logging"
)

// ParseLevel maps a config value onto a pion log level.
func ParseLevel(s string) (logging.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return logging.LogLevelInfo, nil
	case "trace":
		return logging.LogLevelTrace, nil
	case "debug":
		return logging.LogLevelDebug, nil
	case "warn", "warning":
		return logging.LogLevelWarn, nil
	case "error":
		return logging.LogLevelError, nil
	case "disabled", "off", "none":
		return logging.LogLevelDisabled, nil
	default:
		return logging.LogLevelDisabled, fmt.Errorf("unknown log level %q", s)
	}
}

// NewFactory returns a factory writing to w at the given level. Stdout carries
// the video stream, so callers pass stderr.
func NewFactory(level logging.LogLevel, w io.Writer) *logging.DefaultLoggerFactory {
	f := logging.NewDefaultLoggerFactory()
	f.DefaultLogLevel = level
	f.Writer = w
	// Quiet the chattier pion internals unless trace is requested.
	if level < logging.LogLevelTrace {
		for _, scope := range []string{"ice", "dtls", "sctp", "pc", "srtp"} {
			if _, ok := f.ScopeLevels[scope]; !ok {
				f.ScopeLevels[scope] = minLevel(level, logging.LogLevelWarn)
			}
		}
	}
	return f
}

// Stderr is NewFactory writing to os.Stderr.
func Stderr(level logging.LogLevel) *logging.DefaultLoggerFactory {
	return NewFactory(level, os.Stderr)
}

// Scoped returns a logger for scope, or a discarding logger when f is nil.
func Scoped(f logging.LoggerFactory, scope string) logging.LeveledLogger {
	if f == nil {
		return logging.NewDefaultLeveledLoggerForScope(scope, logging.LogLevelDisabled, io.Discard)
	}
	return f.NewLogger(scope)
}

func minLevel(a, b logging.LogLevel) logging.LogLevel {
	if a < b {
		return a
	}
	return b
}
