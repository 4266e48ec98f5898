package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// A LogHook writes every invocation it receives to a logger.
type LogHook struct {
	logger logrus.FieldLogger
	level  logrus.Level
}

// NewLogHook creates a LogHook that logs at the given level.
func NewLogHook(logger logrus.FieldLogger, level logrus.Level) *LogHook {
	return &LogHook{
		logger: logger,
		level:  level,
	}
}

// Func logs the hook position, the name of the domain, and the item.
func (h *LogHook) Func(ctx HookCtx) {
	fields := logrus.Fields{"pos": ctx.Pos.Name}

	if n, ok := ctx.Domain.(Named); ok {
		fields["domain"] = n.Name()
	}

	if ctx.Item != nil {
		fields["item"] = fmt.Sprintf("%+v", ctx.Item)
	}

	h.logger.WithFields(fields).Log(h.level, "hook")
}
