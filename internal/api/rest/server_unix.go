//go:build !windows

package rest

import (
	"syscall"
)

// reusePort lets a replacement process bind the port before the old one
// has finished draining.
func reusePort(_, _ string, c syscall.RawConn) error {
	var err error
	cerr := c.Control(func(fd uintptr) {
		err = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEPORT, 1)
	})
	if cerr != nil {
		return cerr
	}
	return err
}
