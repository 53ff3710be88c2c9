//go:build !windows

package relay

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// setReuseAddr enables SO_REUSEADDR on the listening socket so a relay can
// rebind its local port immediately after a restart, without waiting out
// the OS's TIME_WAIT-adjacent hold on the address.
func setReuseAddr(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
