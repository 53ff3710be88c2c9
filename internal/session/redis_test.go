package session

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client, "wgobfs:test:peers", time.Minute), mr
}

func TestRedisStoreRegisterAndActive(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	a := netip.MustParseAddrPort("127.0.0.1:4000")
	b := netip.MustParseAddrPort("127.0.0.1:4001")

	if err := store.RegisterCtx(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := store.RegisterCtx(ctx, b); err != nil {
		t.Fatal(err)
	}

	active, err := store.ActiveCtx(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 2 {
		t.Fatalf("len(active) = %d, want 2", len(active))
	}

	cur, ok, err := store.CurrentCtx(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || cur != b {
		t.Fatalf("CurrentCtx() = %v, %v; want %v, true", cur, ok, b)
	}
}

func TestRedisStoreExpiry(t *testing.T) {
	store, _ := newTestStore(t)
	store.ttl = 50 * time.Millisecond
	ctx := context.Background()

	a := netip.MustParseAddrPort("127.0.0.1:5000")
	if err := store.RegisterCtx(ctx, a); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := store.RegisterCtx(ctx, netip.MustParseAddrPort("127.0.0.1:5001")); err != nil {
		t.Fatal(err)
	}

	active, err := store.ActiveCtx(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range active {
		if p == a {
			t.Errorf("expired peer %v still active", a)
		}
	}
}

func TestRedisStoreImplementsStoreInterface(t *testing.T) {
	store, _ := newTestStore(t)
	var _ Store = store

	peer := netip.MustParseAddrPort("127.0.0.1:6000")
	if _, didEvict := store.Register(peer); didEvict {
		t.Fatal("RedisStore.Register should never report an eviction")
	}
	cur, ok := store.Current()
	if !ok || cur != peer {
		t.Fatalf("Current() = %v, %v; want %v, true", cur, ok, peer)
	}
}
