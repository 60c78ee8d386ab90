// Package logger configures the process-wide logrus logger.
package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Init configures the standard logrus logger for the given environment.
// Production emits JSON for log aggregation, everything else stays
// human-readable.
func Init(env string) {
	logrus.SetOutput(os.Stdout)

	if env == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		logrus.SetLevel(logrus.InfoLevel)
		return
	}

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logrus.SetLevel(logrus.DebugLevel)

	if os.Getenv("LOG_LEVEL") == "trace" {
		logrus.SetLevel(logrus.TraceLevel)
	}
}
