package alert

import (
	"netsentry/internal/storage"

	"github.com/sirupsen/logrus"
)

// LogNotifier writes alerts to the local log.
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier creates a new log notifier.
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// SendAlert implements Notifier.
func (ln *LogNotifier) SendAlert(alert storage.Alert) error {
	ln.logger.Warnf("ALERT [%s] %s from %s: %s", alert.Severity, alert.Category, alert.SrcIP, alert.Message)
	return nil
}
