package relay

import (
	"net"
	"testing"
	"time"

	"wgobfs/internal/stun"
)

func newHandshakePacket() []byte {
	buf := make([]byte, 148)
	buf[0] = 1 // HandshakeInitiation
	for i := 4; i < len(buf); i++ {
		buf[i] = byte(i)
	}
	return buf
}

// startEcho binds a UDP socket that echoes whatever it receives back to
// the sender, standing in for the real WireGuard peer on the "remote" side
// of the relay.
func startEcho(t *testing.T) *net.UDPAddr {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 2048)
		for {
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			conn.WriteToUDP(buf[:n], addr)
		}
	}()

	return conn.LocalAddr().(*net.UDPAddr)
}

func TestRelayRoundTripNoMasking(t *testing.T) {
	echoAddr := startEcho(t)

	r, err := New(Config{
		RemoteAddr:   echoAddr.String(),
		Key:          []byte("relay-test-key"),
		MaxDummyData: 4,
		MaxPeers:     1,
	})
	if err != nil {
		t.Fatal(err)
	}
	port, err := r.Start()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	client, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	pkt := newHandshakePacket()
	if _, err := client.Write(pkt); err != nil {
		t.Fatal(err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 2048)
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("no reply from relay: %v", err)
	}

	if n != len(pkt) {
		t.Fatalf("round-tripped length = %d, want %d", n, len(pkt))
	}
	for i := range pkt {
		if buf[i] != pkt[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, buf[i], pkt[i])
		}
	}

	snap := r.Metrics()
	if snap.PacketsOut == 0 || snap.PacketsIn == 0 {
		t.Fatalf("expected nonzero packet counters, got %+v", snap)
	}
}

func TestRelayRoundTripWithStunMasking(t *testing.T) {
	echoAddr := startEcho(t)

	r, err := New(Config{
		RemoteAddr:        echoAddr.String(),
		Key:               []byte("masked-relay-key"),
		MaxDummyData:      0,
		Masking:           MaskingStun,
		KeepaliveInterval: time.Hour,
		MaxPeers:          1,
	})
	if err != nil {
		t.Fatal(err)
	}
	port, err := r.Start()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	client, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	pkt := newHandshakePacket()
	if _, err := client.Write(pkt); err != nil {
		t.Fatal(err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 2048)
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("no reply from relay: %v", err)
	}
	if n != len(pkt) {
		t.Fatalf("round-tripped length = %d, want %d", n, len(pkt))
	}
	for i := range pkt {
		if buf[i] != pkt[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, buf[i], pkt[i])
		}
	}
}

func newDataPacket(size int) []byte {
	buf := make([]byte, size)
	buf[0] = 4 // Data
	for i := 4; i < len(buf); i++ {
		buf[i] = byte(i * 7)
	}
	return buf
}

// MTU-sized Data packets exceed the codec's padding cap (codec.MaxTotal)
// and must still round-trip unmangled: a read buffer sized below the
// datagram would silently truncate them.
func TestRelayRoundTripLargeDataPacket(t *testing.T) {
	tests := []struct {
		name    string
		masking MaskingMode
	}{
		{"no masking", MaskingNone},
		{"stun masking", MaskingStun},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			echoAddr := startEcho(t)

			r, err := New(Config{
				RemoteAddr:        echoAddr.String(),
				Key:               []byte("large-packet-key"),
				MaxDummyData:      4,
				Masking:           tt.masking,
				KeepaliveInterval: time.Hour,
				MaxPeers:          1,
			})
			if err != nil {
				t.Fatal(err)
			}
			port, err := r.Start()
			if err != nil {
				t.Fatal(err)
			}
			defer r.Stop()

			client, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
			if err != nil {
				t.Fatal(err)
			}
			defer client.Close()

			pkt := newDataPacket(1400)
			if _, err := client.Write(pkt); err != nil {
				t.Fatal(err)
			}

			client.SetReadDeadline(time.Now().Add(2 * time.Second))
			buf := make([]byte, 4096)
			n, err := client.Read(buf)
			if err != nil {
				t.Fatalf("no reply from relay: %v", err)
			}
			if n != len(pkt) {
				t.Fatalf("round-tripped length = %d, want %d", n, len(pkt))
			}
			for i := range pkt {
				if buf[i] != pkt[i] {
					t.Fatalf("byte %d = %#x, want %#x", i, buf[i], pkt[i])
				}
			}
		})
	}
}

func TestRelayDropsTooShortOutboundPacket(t *testing.T) {
	echoAddr := startEcho(t)

	r, err := New(Config{
		RemoteAddr: echoAddr.String(),
		Key:        []byte("drop-test-key"),
		MaxPeers:   1,
	})
	if err != nil {
		t.Fatal(err)
	}
	port, err := r.Start()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	client, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	// A 2-byte packet is too short to carry a WireGuard type field and
	// must be dropped before it ever reaches the remote socket.
	if _, err := client.Write([]byte{0x00, 0x01}); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	snap := r.Metrics()
	if snap.Dropped == 0 {
		t.Fatalf("expected a dropped packet, got %+v", snap)
	}
	if snap.PacketsOut != 0 {
		t.Fatalf("expected no successful sends, got %+v", snap)
	}
}

func TestKeepaliveEmittedWhenIdle(t *testing.T) {
	remote, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer remote.Close()

	r, err := New(Config{
		RemoteAddr:        remote.LocalAddr().String(),
		Key:               []byte("keepalive-test-key"),
		Masking:           MaskingStun,
		KeepaliveInterval: 50 * time.Millisecond,
		MaxPeers:          1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Start(); err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	remote.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 2048)
	n, _, err := remote.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("no keepalive arrived: %v", err)
	}

	parsed, err := stun.Parse(buf[:n])
	if err != nil {
		t.Fatalf("keepalive not parseable as STUN: %v", err)
	}
	if parsed.Type != stun.BindingRequest {
		t.Errorf("keepalive type = %x, want BindingRequest", parsed.Type)
	}
	if _, ok := parsed.Attr(stun.AttrFingerprint); !ok {
		t.Error("keepalive missing FINGERPRINT attribute")
	}

	deadline := time.Now().Add(time.Second)
	for r.Metrics().Keepalives == 0 {
		if time.Now().After(deadline) {
			t.Fatal("keepalive counter not incremented")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestListeningPortBeforeStart(t *testing.T) {
	r, err := New(Config{RemoteAddr: "127.0.0.1:1", Key: []byte("k")})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := r.ListeningPort(); ok {
		t.Fatal("ListeningPort should report false before Start")
	}
}
