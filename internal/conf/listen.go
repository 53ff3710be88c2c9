package conf

import "fmt"

// Listen configures the relay's local loopback UDP socket.
type Listen struct {
	Port int `yaml:"port"`
}

func (l *Listen) setDefaults() {}

func (l *Listen) validate() []error {
	var errors []error
	if l.Port < 0 || l.Port > 65535 {
		errors = append(errors, fmt.Errorf("listen port must be between 0 and 65535, got %d", l.Port))
	}
	return errors
}
