//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package netutil

import "syscall"

func control(bool) func(network, address string, c syscall.RawConn) error {
	return nil
}
