package conf

import (
	"fmt"
	"slices"
	"time"

	"wgobfs/internal/relay"
)

var validMaskingModes = []string{"none", "stun"}

// Masking configures whether obfuscated datagrams are further wrapped in
// synthetic STUN messages, and how often a keepalive is sent when no other
// traffic flows.
type Masking struct {
	Mode_                string `yaml:"mode"`
	KeepaliveIntervalSec int    `yaml:"keepalive_interval_sec"`

	Mode              relay.MaskingMode `yaml:"-"`
	KeepaliveInterval time.Duration     `yaml:"-"`
}

func (m *Masking) setDefaults() {
	if m.Mode_ == "" {
		m.Mode_ = "none"
	}
	if m.KeepaliveIntervalSec == 0 {
		m.KeepaliveIntervalSec = 10
	}
}

func (m *Masking) validate() []error {
	var errors []error
	if !slices.Contains(validMaskingModes, m.Mode_) {
		errors = append(errors, fmt.Errorf("masking mode must be one of: %v", validMaskingModes))
		return errors
	}
	if m.Mode_ == "stun" {
		m.Mode = relay.MaskingStun
	} else {
		m.Mode = relay.MaskingNone
	}
	if m.KeepaliveIntervalSec < 1 {
		errors = append(errors, fmt.Errorf("keepalive_interval_sec must be >= 1"))
	}
	m.KeepaliveInterval = time.Duration(m.KeepaliveIntervalSec) * time.Second
	return errors
}
