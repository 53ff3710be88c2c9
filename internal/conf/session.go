package conf

import (
	"fmt"
	"slices"
	"time"

	"wgobfs/internal/session"
)

var validSessionBackends = []string{"memory", "redis"}

// Session configures the relay's local-peer table: either the in-memory
// Table (default) or a Redis-backed store shared across relay processes.
type Session struct {
	MaxPeers    int    `yaml:"max_peers"`
	Backend_    string `yaml:"backend"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisKey    string `yaml:"redis_key"`
	RedisTTLSec int    `yaml:"redis_ttl_sec"`

	Backend  session.Backend `yaml:"-"`
	RedisTTL time.Duration   `yaml:"-"`
}

func (s *Session) setDefaults() {
	if s.MaxPeers == 0 {
		s.MaxPeers = 1
	}
	if s.Backend_ == "" {
		s.Backend_ = "memory"
	}
	if s.RedisKey == "" {
		s.RedisKey = "wgobfs:peers"
	}
	if s.RedisTTLSec == 0 {
		s.RedisTTLSec = 300
	}
}

func (s *Session) validate() []error {
	var errors []error
	if s.MaxPeers < 1 {
		errors = append(errors, fmt.Errorf("session max_peers must be >= 1"))
	}
	if !slices.Contains(validSessionBackends, s.Backend_) {
		errors = append(errors, fmt.Errorf("session backend must be one of: %v", validSessionBackends))
		return errors
	}
	if s.Backend_ == "redis" {
		s.Backend = session.BackendRedis
		if s.RedisAddr == "" {
			errors = append(errors, fmt.Errorf("session redis_addr is required when backend is redis"))
		}
	} else {
		s.Backend = session.BackendMemory
	}
	if s.RedisTTLSec < 1 {
		errors = append(errors, fmt.Errorf("session redis_ttl_sec must be >= 1"))
	}
	s.RedisTTL = time.Duration(s.RedisTTLSec) * time.Second
	return errors
}
