//go:build !unix

package server

import "net"

// the backlog cannot be chosen here, the platform default applies
func listenTCP(address string, _ int) (*net.TCPListener, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, &SetupError{Op: "listen", Addr: address, Err: err}
	}
	return listener.(*net.TCPListener), nil
}
