package transport

import (
	log "github.com/sirupsen/logrus"
)

// NewLogger returns a new pre-configured logger, adapted verbatim from
// the teacher's core/logger.go.
func NewLogger(level uint32) *log.Logger {
	logger := log.New()

	logger.SetFormatter(&log.TextFormatter{})
	logger.SetLevel(log.Level(level))

	return logger
}
