// Package logging constructs the application logger from configuration.
package logging

import (
	"os"
	"strings"

	"github.com/neurodetect-server/internal/domain"
	"github.com/sirupsen/logrus"
)

// New creates a logrus logger configured per the logging section.
// Unknown levels fall back to info rather than failing startup.
func New(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch cfg.Output {
	case "", "stdout":
		logger.SetOutput(os.Stdout)
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			logger.SetOutput(os.Stdout)
			logger.WithError(err).Warn("Could not open log file, falling back to stdout")
		} else {
			logger.SetOutput(f)
		}
	}

	return logger
}
