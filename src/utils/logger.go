package utils

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the process-wide structured logger. Output is JSON so the
// scheduler jobs and the HTTP surface share one log shape. A non-empty
// logFile redirects output there instead of stdout.
func NewLogger(level logrus.Level, logFile string) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			logger.WithError(err).Fatal("could not open log file")
		}
		logger.SetOutput(file)
	}
	return logger
}
