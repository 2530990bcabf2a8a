package channel

import (
	"time"

	"MeloFM/logger"
	"MeloFM/model"
)

// LogNotifier is the fallback notification sink when no UI is
// attached: severity maps to log level, the display duration is
// carried along for anything tailing the log.
type LogNotifier struct{}

func (LogNotifier) Notify(level, message string, duration time.Duration) {
	switch level {
	case model.LevelError:
		logger.Error("notification", logger.String("message", message), logger.Duration("display", duration))
	case model.LevelWarning:
		logger.Warn("notification", logger.String("message", message), logger.Duration("display", duration))
	default:
		logger.Info("notification",
			logger.String("level", level),
			logger.String("message", message),
			logger.Duration("display", duration))
	}
}
