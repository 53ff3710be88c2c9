// Package flog is the relay's structured logging wrapper: a thin facade
// over logrus so the rest of the module calls Debugf/Infof/Warnf/Errorf/
// Fatalf without importing a logging library directly.
package flog

import (
	"os"

	"github.com/sirupsen/logrus"
)

var std = logrus.New()

func init() {
	std.SetOutput(os.Stderr)
	std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// Level mirrors logrus' level names for use in configuration.
type Level = logrus.Level

// Configure sets the minimum level and output format. format is "text" or
// "json"; anything else falls back to text.
func Configure(level string, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	std.SetLevel(lvl)
	if format == "json" {
		std.SetFormatter(&logrus.JSONFormatter{})
	} else {
		std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// WithFields returns a *logrus.Entry for callers that want to attach
// structured fields before logging (peer address, packet length, etc).
func WithFields(fields logrus.Fields) *logrus.Entry {
	return std.WithFields(fields)
}

func Debugf(format string, args ...any) { std.Debugf(format, args...) }
func Infof(format string, args ...any)  { std.Infof(format, args...) }
func Warnf(format string, args ...any)  { std.Warnf(format, args...) }
func Errorf(format string, args ...any) { std.Errorf(format, args...) }
func Fatalf(format string, args ...any) { std.Fatalf(format, args...) }
