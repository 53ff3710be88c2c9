//go:build windows

package relay

import "syscall"

// setReuseAddr is a no-op on Windows: SO_REUSEADDR has different (and
// looser) semantics there than on Unix, and the relay only needs it to
// rebind faster after a restart, not to function correctly.
func setReuseAddr(network, address string, c syscall.RawConn) error {
	return nil
}
