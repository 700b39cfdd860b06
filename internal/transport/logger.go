package transport

import (
	"fmt"

	"github.com/pion/logging"

	"github.com/1ureka/beetv/internal/util"
)

// loggerFactory routes pion's internal logs into the pterm logger. Trace is
// discarded and Info is demoted to debug; pion is verbose at both levels.
type loggerFactory struct{}

func (loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return pionLogger{scope: "pion/" + scope}
}

type pionLogger struct {
	scope string
}

func (l pionLogger) Trace(string)                  {}
func (l pionLogger) Tracef(string, ...interface{}) {}

func (l pionLogger) Debug(msg string) { l.debug(msg) }
func (l pionLogger) Debugf(format string, args ...interface{}) {
	l.debug(fmt.Sprintf(format, args...))
}

func (l pionLogger) Info(msg string) { l.debug(msg) }
func (l pionLogger) Infof(format string, args ...interface{}) {
	l.debug(fmt.Sprintf(format, args...))
}

func (l pionLogger) Warn(msg string) { util.LogWarning("[%s] %s", l.scope, msg) }
func (l pionLogger) Warnf(format string, args ...interface{}) {
	util.LogWarning("[%s] %s", l.scope, fmt.Sprintf(format, args...))
}

func (l pionLogger) Error(msg string) { util.LogError("[%s] %s", l.scope, msg) }
func (l pionLogger) Errorf(format string, args ...interface{}) {
	util.LogError("[%s] %s", l.scope, fmt.Sprintf(format, args...))
}

func (l pionLogger) debug(msg string) {
	if util.DebugEnabled() {
		util.LogDebug("[%s] %s", l.scope, msg)
	}
}
