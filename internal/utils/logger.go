package utils

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// NewLogger creates the daemon logger at the configured level.
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()

	switch strings.ToUpper(level) {
	case "DEBUG":
		logger.SetLevel(logrus.DebugLevel)
	case "WARN":
		logger.SetLevel(logrus.WarnLevel)
	case "ERROR":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	return logger
}
