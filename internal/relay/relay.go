// Package relay pumps WireGuard datagrams between a local UDP endpoint and
// a remote UDP endpoint, applying the obfuscation codec and optional STUN
// masking in each direction. It is the only stateful piece of the module:
// the codec and masker are pure transformers, the relay owns socket
// handles and the currently active local peer.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"wgobfs/internal/codec"
	"wgobfs/internal/flog"
	"wgobfs/internal/metrics"
	"wgobfs/internal/obfuscation"
	"wgobfs/internal/pkg/buffer"
	"wgobfs/internal/session"
	"wgobfs/internal/stun"
)

// MaskingMode selects whether obfuscated datagrams are further wrapped in
// a synthetic STUN message.
type MaskingMode int

const (
	MaskingNone MaskingMode = iota
	MaskingStun
)

// DefaultKeepaliveInterval is the cadence at which a STUN keepalive is sent
// when no other outbound traffic flows.
const DefaultKeepaliveInterval = 10 * time.Second

var ErrFailedToBindPort = errors.New("relay: failed to bind local port")

// Config parameterizes a Relay. Key is passed through to codec.New
// unmodified; deriving it from a passphrase is the config layer's job
// (see internal/conf), not the relay's.
type Config struct {
	LocalPort  int
	RemoteAddr string
	Key        []byte

	// MaxDummyData caps the dummy padding added to Data packets. Zero
	// disables padding; a negative value selects the codec default of 4
	// (see codec.New). The zero value of Config therefore turns padding
	// off, it does not mean "default".
	MaxDummyData int

	Masking           MaskingMode
	KeepaliveInterval time.Duration
	MaxPeers          int

	// SessionBackend selects the peer-table implementation; the zero value
	// (session.BackendMemory) uses the in-memory Table. RedisAddr/RedisKey/
	// RedisTTL are only consulted when SessionBackend is session.BackendRedis.
	SessionBackend session.Backend
	RedisAddr      string
	RedisKey       string
	RedisTTL       time.Duration
}

// Relay is a long-lived object: build once with New, Start it, and Stop it
// when done. A Relay can be started only once: a second Start, including
// one after Stop, returns an error.
type Relay struct {
	cfg     Config
	codec   *codec.Codec
	masker  *stun.Masker
	peers   session.Store
	metrics *metrics.Relay

	localConn  *net.UDPConn
	remoteConn *net.UDPConn
	remoteAddr *net.UDPAddr

	lastSend atomic.Pointer[time.Time]

	mu            sync.Mutex
	listeningPort int
	started       bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New validates cfg and builds the codec/masker, but opens no sockets.
func New(cfg Config) (*Relay, error) {
	c, err := codec.New(cfg.Key, cfg.MaxDummyData)
	if err != nil {
		return nil, err
	}
	if cfg.KeepaliveInterval <= 0 {
		cfg.KeepaliveInterval = DefaultKeepaliveInterval
	}

	peers, err := session.NewStore(session.StoreConfig{
		Backend:   cfg.SessionBackend,
		MaxPeers:  cfg.MaxPeers,
		RedisAddr: cfg.RedisAddr,
		RedisKey:  cfg.RedisKey,
		RedisTTL:  cfg.RedisTTL,
	})
	if err != nil {
		return nil, err
	}

	r := &Relay{
		cfg:     cfg,
		codec:   c,
		peers:   peers,
		metrics: &metrics.Relay{},
	}
	if cfg.Masking == MaskingStun {
		r.masker = stun.NewMasker()
	}
	return r, nil
}

// Start binds the local UDP listener (resolving LocalPort=0 to an
// ephemeral port), connects to the remote endpoint, and launches the
// receive loops. It returns the bound local port.
func (r *Relay) Start() (int, error) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return 0, errors.New("relay: already started")
	}
	r.started = true
	r.mu.Unlock()

	fail := func(err error) (int, error) {
		r.mu.Lock()
		r.started = false
		r.mu.Unlock()
		return 0, err
	}

	remoteAddr, err := net.ResolveUDPAddr("udp", r.cfg.RemoteAddr)
	if err != nil {
		return fail(fmt.Errorf("relay: resolving remote endpoint: %w", err))
	}
	r.remoteAddr = remoteAddr

	lc := net.ListenConfig{Control: setReuseAddr}
	localConnAny, err := lc.ListenPacket(context.Background(), "udp", fmt.Sprintf("127.0.0.1:%d", r.cfg.LocalPort))
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrFailedToBindPort, err))
	}
	localConn, ok := localConnAny.(*net.UDPConn)
	if !ok {
		localConnAny.Close()
		return fail(ErrFailedToBindPort)
	}
	r.localConn = localConn

	laddr, ok := localConn.LocalAddr().(*net.UDPAddr)
	if !ok {
		localConn.Close()
		return fail(ErrFailedToBindPort)
	}
	r.listeningPort = laddr.Port

	remoteConn, err := net.DialUDP("udp", nil, remoteAddr)
	if err != nil {
		localConn.Close()
		return fail(fmt.Errorf("relay: connecting to remote endpoint: %w", err))
	}
	r.remoteConn = remoteConn

	r.ctx, r.cancel = context.WithCancel(context.Background())

	r.wg.Add(2)
	go r.runLocalLoop()
	go r.runRemoteLoop()

	if r.cfg.Masking == MaskingStun {
		r.wg.Add(1)
		go r.runKeepaliveLoop()
	}

	return r.listeningPort, nil
}

// Stop closes all sockets and waits for the receive loops to exit.
func (r *Relay) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}
	if r.localConn != nil {
		r.localConn.Close()
	}
	if r.remoteConn != nil {
		r.remoteConn.Close()
	}
	r.wg.Wait()
}

// ListeningPort returns the bound local port, and whether Start has
// succeeded.
func (r *Relay) ListeningPort() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return 0, false
	}
	return r.listeningPort, true
}

// Metrics returns a snapshot of the relay's packet/byte counters.
func (r *Relay) Metrics() metrics.Snapshot {
	return r.metrics.Snapshot()
}

func (r *Relay) runLocalLoop() {
	defer r.wg.Done()
	for {
		bufp := buffer.Get()
		n, addr, err := r.localConn.ReadFromUDP(*bufp)
		if err != nil {
			buffer.Put(bufp)
			if r.ctx.Err() != nil {
				return
			}
			flog.WithFields(map[string]any{"err": err}).Debug("relay: local read error")
			continue
		}
		peer := addr.AddrPort()
		r.peers.Register(peer)
		r.handleOutbound((*bufp)[:n], peer)
		buffer.Put(bufp)
	}
}

func (r *Relay) runRemoteLoop() {
	defer r.wg.Done()
	for {
		bufp := buffer.Get()
		n, err := r.remoteConn.Read(*bufp)
		if err != nil {
			buffer.Put(bufp)
			if r.ctx.Err() != nil {
				return
			}
			flog.WithFields(map[string]any{"err": err}).Debug("relay: remote read error")
			continue
		}
		r.handleInbound((*bufp)[:n])
		buffer.Put(bufp)
	}
}

func (r *Relay) handleOutbound(buf []byte, peer netip.AddrPort) {
	if len(buf) == 0 {
		return
	}
	typ, ok := obfuscation.DetectType(buf)
	if !ok {
		r.metrics.Dropped.Add(1)
		return
	}

	obf, err := r.codec.Encode(buf, typ)
	if err != nil {
		flog.WithFields(map[string]any{"err": err, "peer": peer, "len": len(buf)}).Debug("relay: encode failed")
		r.metrics.Dropped.Add(1)
		return
	}

	out := obf
	if r.masker != nil {
		wrapped, err := r.masker.Wrap(obf)
		if err != nil {
			flog.WithFields(map[string]any{"err": err, "peer": peer, "len": len(obf)}).Debug("relay: stun wrap failed")
			r.metrics.Dropped.Add(1)
			return
		}
		out = wrapped
	}

	if _, err := r.remoteConn.Write(out); err != nil {
		flog.WithFields(map[string]any{"err": err, "peer": peer, "len": len(out)}).Debug("relay: remote write failed")
		r.metrics.Dropped.Add(1)
		return
	}
	now := time.Now()
	r.lastSend.Store(&now)
	r.metrics.PacketsOut.Add(1)
	r.metrics.BytesOut.Add(uint64(len(out)))
}

func (r *Relay) handleInbound(buf []byte) {
	r.metrics.PacketsIn.Add(1)
	r.metrics.BytesIn.Add(uint64(len(buf)))

	obf := buf
	if r.masker != nil {
		unwrapped, err := r.masker.Unwrap(buf)
		if err != nil {
			flog.WithFields(map[string]any{"err": err, "len": len(buf)}).Debug("relay: stun unwrap failed")
			r.metrics.Dropped.Add(1)
			return
		}
		if unwrapped == nil {
			r.metrics.Dropped.Add(1)
			return
		}
		obf = unwrapped
	}

	plain, err := r.codec.Decode(obf)
	if err != nil {
		flog.WithFields(map[string]any{"err": err, "len": len(obf)}).Debug("relay: decode failed")
		r.metrics.Dropped.Add(1)
		return
	}

	peer, ok := r.peers.Current()
	if !ok {
		r.metrics.Dropped.Add(1)
		return
	}

	udpPeer := net.UDPAddrFromAddrPort(peer)
	if _, err := r.localConn.WriteToUDP(plain, udpPeer); err != nil {
		flog.WithFields(map[string]any{"err": err, "peer": peer, "len": len(plain)}).Debug("relay: local write failed")
		r.metrics.Dropped.Add(1)
	}
}

func (r *Relay) runKeepaliveLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if last := r.lastSend.Load(); last != nil && time.Since(*last) < r.cfg.KeepaliveInterval {
				continue
			}
			keepalive, err := r.masker.GenerateKeepalive()
			if err != nil {
				flog.WithFields(map[string]any{"err": err}).Debug("relay: keepalive generation failed")
				continue
			}
			if _, err := r.remoteConn.Write(keepalive); err != nil {
				flog.WithFields(map[string]any{"err": err, "len": len(keepalive)}).Debug("relay: keepalive send failed")
				continue
			}
			now := time.Now()
			r.lastSend.Store(&now)
			r.metrics.Keepalives.Add(1)
		}
	}
}
