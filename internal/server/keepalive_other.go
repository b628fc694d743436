//go:build !linux

package server

import "net"

// probe interval and count are not portable, only the idle time is set
func setKeepAlive(conn *net.TCPConn, ka KeepAlive) error {
	if err := conn.SetKeepAlive(true); err != nil {
		return err
	}
	return conn.SetKeepAlivePeriod(ka.Idle)
}
