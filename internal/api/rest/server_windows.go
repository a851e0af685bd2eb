//go:build windows

package rest

import (
	"syscall"
)

// SO_REUSEPORT does not exist on Windows.
func reusePort(_, _ string, _ syscall.RawConn) error {
	return nil
}
