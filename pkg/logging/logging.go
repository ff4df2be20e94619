// Package logging is the process-wide logging front for the wgnt bindings.
// It wraps a single logrus logger so library and binary share one sink, one
// level and one format.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is the logging level.
type Level logrus.Level

// Logging levels.
const (
	DebugLevel Level = Level(logrus.DebugLevel)
	InfoLevel  Level = Level(logrus.InfoLevel)
	WarnLevel  Level = Level(logrus.WarnLevel)
	ErrorLevel Level = Level(logrus.ErrorLevel)
)

var logger = logrus.New()

func init() {
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetOutput(os.Stdout)
}

// SetLevel sets the logging level.
func SetLevel(level Level) {
	logger.SetLevel(logrus.Level(level))
}

// SetFormatter sets the log formatter.
func SetFormatter(formatter logrus.Formatter) {
	logger.SetFormatter(formatter)
}

// SetOutput sets the log output.
func SetOutput(output io.Writer) {
	logger.SetOutput(output)
}

// FileOptions configures rotated file logging.
type FileOptions struct {
	// Path is the log file location; its directory is created if missing.
	Path string

	// MaxSizeMB rotates the file once it exceeds this many megabytes.
	MaxSizeMB int

	// MaxBackups is the number of rotated files to keep.
	MaxBackups int

	// MaxAgeDays discards rotated files older than this many days.
	MaxAgeDays int
}

// EnableFileLogging mirrors log output to a rotated file in addition to
// stdout.
func EnableFileLogging(opts FileOptions) error {
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
		return err
	}
	rotated := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
	logger.SetOutput(io.MultiWriter(os.Stdout, rotated))
	return nil
}

// WithFields creates a new log entry with fields.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return logger.WithFields(fields)
}

// Debugf logs a debug message.
func Debugf(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

// Infof logs an info message.
func Infof(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

// Warnf logs a warning message.
func Warnf(format string, args ...interface{}) {
	logger.Warnf(format, args...)
}

// Errorf logs an error message.
func Errorf(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}

// InfoWithFields logs an info message with fields.
func InfoWithFields(fields logrus.Fields, format string, args ...interface{}) {
	logger.WithFields(fields).Infof(format, args...)
}

// WarnWithFields logs a warning message with fields.
func WarnWithFields(fields logrus.Fields, format string, args ...interface{}) {
	logger.WithFields(fields).Warnf(format, args...)
}

// ErrorWithFields logs an error message with fields.
func ErrorWithFields(fields logrus.Fields, format string, args ...interface{}) {
	logger.WithFields(fields).Errorf(format, args...)
}
