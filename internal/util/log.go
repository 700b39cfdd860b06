package util

import (
	"fmt"

	"github.com/pterm/pterm"
)

func init() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 15:04:05"
	pterm.DefaultLogger.MaxWidth = 1000
}

// Leveled logging functions backed by pterm prefixed printers.
// All output goes to stderr by default (pterm's default).

func LogDebug(format string, args ...interface{}) {
	pterm.DefaultLogger.Debug(fmt.Sprintf(format, args...))
}

func LogInfo(format string, args ...interface{}) {
	pterm.DefaultLogger.Info(fmt.Sprintf(format, args...))
}

func LogSuccess(format string, args ...interface{}) {
	pterm.DefaultLogger.Info(fmt.Sprintf(format, args...))
}

func LogWarning(format string, args ...interface{}) {
	pterm.DefaultLogger.Warn(fmt.Sprintf(format, args...))
}

func LogError(format string, args ...interface{}) {
	pterm.DefaultLogger.Error(fmt.Sprintf(format, args...))
}

// EnableDebug configures the logger to show debug messages.
func EnableDebug() {
	pterm.DefaultLogger.Level = pterm.LogLevelDebug
}

// DebugEnabled reports whether debug messages are currently printed.
func DebugEnabled() bool {
	return pterm.DefaultLogger.Level <= pterm.LogLevelDebug
}

// Scope tags every message with a fixed prefix such as a room id, so that
// interleaved sessions stay readable in a single log stream.
type Scope string

func (s Scope) Debugf(format string, args ...interface{}) {
	LogDebug("[%s] %s", string(s), fmt.Sprintf(format, args...))
}

func (s Scope) Infof(format string, args ...interface{}) {
	LogInfo("[%s] %s", string(s), fmt.Sprintf(format, args...))
}

func (s Scope) Warnf(format string, args ...interface{}) {
	LogWarning("[%s] %s", string(s), fmt.Sprintf(format, args...))
}

func (s Scope) Errorf(format string, args ...interface{}) {
	LogError("[%s] %s", string(s), fmt.Sprintf(format, args...))
}
