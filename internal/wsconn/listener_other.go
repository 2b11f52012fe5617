//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package wsconn

import "syscall"

func listenControl(bool) func(network, address string, rc syscall.RawConn) error {
	return nil
}
