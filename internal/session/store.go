package session

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the peer-tracking backend a Relay depends on: register the most
// recently seen local peer and retrieve it. Table (in-memory, FIFO
// eviction) and RedisStore (shared across relay processes behind the same
// key) both implement it, selected by Backend.
type Store interface {
	Register(peer netip.AddrPort) (evicted netip.AddrPort, didEvict bool)
	Current() (netip.AddrPort, bool)
}

var (
	_ Store = (*Table)(nil)
	_ Store = (*RedisStore)(nil)
)

// Backend names a Store implementation, set from conf.Session.Backend_.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
)

// StoreConfig parameterizes NewStore. RedisAddr/RedisKey/RedisTTL are only
// consulted when Backend is BackendRedis.
type StoreConfig struct {
	Backend   Backend
	MaxPeers  int
	RedisAddr string
	RedisKey  string
	RedisTTL  time.Duration
}

// NewStore builds the Store a Relay should use: the in-memory Table by
// default, or a RedisStore when cfg selects the redis backend, which lets
// several relay processes fronting one WireGuard interface share a view of
// the active peer instead of each tracking its own.
func NewStore(cfg StoreConfig) (Store, error) {
	switch cfg.Backend {
	case BackendRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("session: redis backend requires RedisAddr")
		}
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return NewRedisStore(client, cfg.RedisKey, cfg.RedisTTL), nil
	case BackendMemory, "":
		return New(cfg.MaxPeers), nil
	default:
		return nil, fmt.Errorf("session: unknown backend %q", cfg.Backend)
	}
}
