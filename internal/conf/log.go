package conf

import (
	"fmt"
	"slices"
)

var validLogFormats = []string{"text", "json"}

// Log configures the flog backend's level and output format.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (l *Log) setDefaults() {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

func (l *Log) validate() []error {
	var errors []error
	if !slices.Contains(validLogFormats, l.Format) {
		errors = append(errors, fmt.Errorf("log format must be one of: %v", validLogFormats))
	}
	return errors
}
