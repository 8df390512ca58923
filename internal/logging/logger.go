package logging

import (
	"os"
	"strings"

	"github.com/IANDYI/trends-service/internal/config"
	"github.com/sirupsen/logrus"
)

// New builds the service logger from the logging configuration.
// Unknown levels fall back to info; any format other than "text" is JSON.
func New(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if strings.EqualFold(cfg.Format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
		logger.WithField("level", cfg.Level).Warn("Unknown log level, using info")
	}
	logger.SetLevel(level)

	return logger
}
