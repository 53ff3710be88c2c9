// Package conf loads and validates wgobfs's YAML configuration. Every leaf
// type has a setDefaults() that fills in anything left blank and a
// validate() []error that checks the result. Leaves whose YAML value needs
// converting (Obfuscation, Masking, Session) carry a `_`-suffixed field
// holding the as-written value, and validate resolves it into the
// suffix-free field the rest of the module actually reads.
package conf

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// Conf is the root configuration document for a wgobfs relay process.
type Conf struct {
	Role        string      `yaml:"role"`
	Log         Log         `yaml:"log"`
	Listen      Listen      `yaml:"listen"`
	Remote      Remote      `yaml:"remote"`
	Obfuscation Obfuscation `yaml:"obfuscation"`
	Masking     Masking     `yaml:"masking"`
	Session     Session     `yaml:"session"`
}

// LoadFromFile reads path, unmarshals it as YAML, fills in defaults, and
// validates the result. On validation failure it still returns the
// partially-resolved Conf alongside the error, so callers can report
// which fields were at fault.
func LoadFromFile(path string) (*Conf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("conf: reading %s: %w", path, err)
	}

	var c Conf
	if err := yaml.Unmarshal(data, &c); err != nil {
		return &c, fmt.Errorf("conf: parsing %s: %w", path, err)
	}

	if c.Role == "" {
		c.Role = "relay"
	}
	if c.Role != "relay" {
		return &c, fmt.Errorf("conf: role must be 'relay', got %q", c.Role)
	}

	c.setDefaults()
	if err := c.validate(); err != nil {
		return &c, err
	}
	return &c, nil
}

func (c *Conf) setDefaults() {
	c.Log.setDefaults()
	c.Listen.setDefaults()
	c.Remote.setDefaults()
	c.Obfuscation.setDefaults()
	c.Masking.setDefaults()
	c.Session.setDefaults()
}

func (c *Conf) validate() error {
	var allErrors []error
	allErrors = append(allErrors, c.Log.validate()...)
	allErrors = append(allErrors, c.Listen.validate()...)
	allErrors = append(allErrors, c.Remote.validate()...)
	allErrors = append(allErrors, c.Obfuscation.validate()...)
	allErrors = append(allErrors, c.Masking.validate()...)
	allErrors = append(allErrors, c.Session.validate()...)
	return writeErr(allErrors)
}

func writeErr(allErrors []error) error {
	if len(allErrors) == 0 {
		return nil
	}
	var messages []string
	for _, err := range allErrors {
		messages = append(messages, err.Error())
	}
	return fmt.Errorf("conf: validation failed:\n  - %s", strings.Join(messages, "\n  - "))
}
