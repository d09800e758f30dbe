package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger
type Logger struct {
	*logrus.Logger
}

// New creates a JSON logger writing to stdout, for the HTTP service.
func New(level string) *Logger {
	return NewWithOutput(level, "json", os.Stdout)
}

// NewWithOutput creates a logger with the given format ("json" or "text")
// writing to out. The CLI logs to stderr so stdout only carries results.
func NewWithOutput(level, format string, out io.Writer) *Logger {
	log := logrus.New()
	log.SetOutput(out)

	switch format {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	default:
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	// Set log level
	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	return &Logger{Logger: log}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWithOutput("error", "text", io.Discard)
}
