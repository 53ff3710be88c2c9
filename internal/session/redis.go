package session

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/redis/go-redis/v9"

	"wgobfs/internal/flog"
)

// RedisStore is a pluggable peer-table backend that shares peer state
// across relay processes behind the same key, for deployments that run
// several relay instances fronting one WireGuard interface. It backs the
// Store interface with a Redis sorted set keyed by registration time, so
// TTL-based expiry substitutes for Table's FIFO eviction.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore returns a RedisStore using client, storing peers under key
// with the given TTL (peers not re-registered within ttl drop out).
func NewRedisStore(client *redis.Client, key string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisStore{client: client, key: key, ttl: ttl}
}

// RegisterCtx records peer as active with a fresh expiry. Redis sorted
// sets have no built-in per-member TTL, so expiry is enforced by trimming
// members whose score (registration time) is older than ttl on every call.
func (s *RedisStore) RegisterCtx(ctx context.Context, peer netip.AddrPort) error {
	now := time.Now()
	member := peer.String()

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, s.key, redis.Z{Score: unixSeconds(now), Member: member})
	pipe.ZRemRangeByScore(ctx, s.key, "-inf", fmt.Sprintf("%f", unixSeconds(now.Add(-s.ttl))))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session: registering peer in redis: %w", err)
	}
	return nil
}

// unixSeconds expresses t as fractional Unix seconds, so stores with
// sub-second TTLs (as in tests) still expire correctly.
func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// ActiveCtx returns the peers currently registered and not yet expired.
func (s *RedisStore) ActiveCtx(ctx context.Context) ([]netip.AddrPort, error) {
	cutoff := fmt.Sprintf("%f", unixSeconds(time.Now().Add(-s.ttl)))
	members, err := s.client.ZRangeByScore(ctx, s.key, &redis.ZRangeBy{Min: cutoff, Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("session: listing active peers: %w", err)
	}
	out := make([]netip.AddrPort, 0, len(members))
	for _, m := range members {
		addr, err := netip.ParseAddrPort(m)
		if err != nil {
			continue
		}
		out = append(out, addr)
	}
	return out, nil
}

// CurrentCtx returns the most recently registered, non-expired peer.
func (s *RedisStore) CurrentCtx(ctx context.Context) (netip.AddrPort, bool, error) {
	cutoff := fmt.Sprintf("%f", unixSeconds(time.Now().Add(-s.ttl)))
	members, err := s.client.ZRevRangeByScore(ctx, s.key, &redis.ZRangeBy{Min: cutoff, Max: "+inf", Count: 1}).Result()
	if err != nil {
		return netip.AddrPort{}, false, fmt.Errorf("session: reading current peer from redis: %w", err)
	}
	if len(members) == 0 {
		return netip.AddrPort{}, false, nil
	}
	addr, err := netip.ParseAddrPort(members[0])
	if err != nil {
		return netip.AddrPort{}, false, fmt.Errorf("session: parsing stored peer %q: %w", members[0], err)
	}
	return addr, true, nil
}

// Register implements Store using a background context, since the Store
// interface (driven by Relay's hot path) predates any per-call deadline.
// Unlike Table, RedisStore has no FIFO eviction to report: capacity is
// bounded by ttl expiry instead, so evicted is always the zero value.
func (s *RedisStore) Register(peer netip.AddrPort) (netip.AddrPort, bool) {
	if err := s.RegisterCtx(context.Background(), peer); err != nil {
		flog.Debugf("session: redis register failed: %v", err)
	}
	return netip.AddrPort{}, false
}

// Current implements Store using a background context.
func (s *RedisStore) Current() (netip.AddrPort, bool) {
	peer, ok, err := s.CurrentCtx(context.Background())
	if err != nil {
		flog.Debugf("session: redis current failed: %v", err)
		return netip.AddrPort{}, false
	}
	return peer, ok
}
