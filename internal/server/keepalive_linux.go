//go:build linux

package server

import (
	"net"
	"os"

	"golang.org/x/sys/unix"
)

func setKeepAlive(conn *net.TCPConn, ka KeepAlive) error {
	if err := conn.SetKeepAlive(true); err != nil {
		return err
	}
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	options := []struct {
		name  string
		opt   int
		value int
	}{
		{"TCP_KEEPIDLE", unix.TCP_KEEPIDLE, seconds(ka.Idle)},
		{"TCP_KEEPINTVL", unix.TCP_KEEPINTVL, seconds(ka.Interval)},
		{"TCP_KEEPCNT", unix.TCP_KEEPCNT, ka.Count},
	}
	var setErr error
	err = raw.Control(func(fd uintptr) {
		for _, o := range options {
			if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, o.opt, o.value); e != nil {
				setErr = os.NewSyscallError("setsockopt "+o.name, e)
				return
			}
		}
	})
	if err != nil {
		return err
	}
	return setErr
}
