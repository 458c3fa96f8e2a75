// Package logger holds the shared logrus instance. Every service calls
// Init once at startup; log entries are JSON lines on stdout so the
// platform's log shipper can ingest them without a parse step.
package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

var Log *logrus.Logger

// Init configures the shared logger. LOG_LEVEL and LOG_FORMAT are read
// from the environment; unknown values fall back to info and json.
func Init() {
	Log = logrus.New()
	Log.SetOutput(os.Stdout)

	if os.Getenv("LOG_FORMAT") == "text" {
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		Log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}

	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)
}

func WithField(key string, value interface{}) *logrus.Entry {
	return Log.WithField(key, value)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log.WithFields(fields)
}
