package conf

import (
	"fmt"
	"net"
	"strings"
)

// Remote is the opaque host:port of the WireGuard-side peer the relay
// forwards obfuscated traffic to. It is passed through to the platform's
// UDP API unresolved; validate only checks that it splits into host and
// port, and does no DNS lookup.
type Remote struct {
	Addr string `yaml:"addr"`
}

func (r *Remote) setDefaults() {}

func (r *Remote) validate() []error {
	var errors []error
	addr := strings.TrimSpace(r.Addr)
	if addr == "" {
		errors = append(errors, fmt.Errorf("remote addr is required"))
		return errors
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		errors = append(errors, fmt.Errorf("remote addr invalid: %w", err))
	}
	r.Addr = addr
	return errors
}
