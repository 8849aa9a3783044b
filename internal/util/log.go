package util

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
)

// logger writes to stderr: stdout belongs to the status display of the
// frame loop.
var logger = pterm.DefaultLogger.
	WithWriter(os.Stderr).
	WithTime(true).
	WithTimeFormat("02 Jan 15:04:05").
	WithMaxWidth(1000)

// Leveled logging functions backed by pterm's structured logger.

func LogDebug(format string, args ...interface{}) {
	logger.Debug(fmt.Sprintf(format, args...))
}

func LogInfo(format string, args ...interface{}) {
	logger.Info(fmt.Sprintf(format, args...))
}

func LogSuccess(format string, args ...interface{}) {
	logger.Info(fmt.Sprintf(format, args...), logger.Args("result", "ok"))
}

func LogWarning(format string, args ...interface{}) {
	logger.Warn(fmt.Sprintf(format, args...))
}

func LogError(format string, args ...interface{}) {
	logger.Error(fmt.Sprintf(format, args...))
}

// Component returns a debug-level printf logger that tags every line with
// name, e.g. Component("session") for protocol traces.
func Component(name string) func(format string, args ...interface{}) {
	return func(format string, args ...interface{}) {
		logger.Debug(fmt.Sprintf(format, args...), logger.Args("component", name))
	}
}

// EnableDebug configures the logger to show debug messages.
func EnableDebug() {
	logger.Level = pterm.LogLevelDebug
}

// DebugEnabled reports whether debug messages are currently printed.
func DebugEnabled() bool {
	return logger.Level == pterm.LogLevelDebug
}
