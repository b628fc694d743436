//go:build unix

package server

import (
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// listenTCP - net.Listen does not expose the backlog, so the socket is
// built by hand and handed to the runtime poller afterwards
func listenTCP(address string, backlog int) (*net.TCPListener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, &SetupError{Op: "resolve", Addr: address, Err: err}
	}
	family, sa := sockaddr(tcpAddr)

	fd, err := unix.Socket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, &SetupError{Op: "socket", Addr: address, Err: os.NewSyscallError("socket", err)}
	}
	unix.CloseOnExec(fd)
	owned := true
	defer func() {
		if owned {
			unix.Close(fd)
		}
	}()

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return nil, &SetupError{Op: "setsockopt", Addr: address, Err: os.NewSyscallError("setsockopt SO_REUSEADDR", err)}
	}
	if err := unix.Bind(fd, sa); err != nil {
		return nil, &SetupError{Op: "bind", Addr: address, Err: os.NewSyscallError("bind", err)}
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return nil, &SetupError{Op: "listen", Addr: address, Err: os.NewSyscallError("listen", err)}
	}

	// FileListener dups the descriptor, file.Close releases ours
	file := os.NewFile(uintptr(fd), "tcp:"+address)
	owned = false
	defer file.Close()
	listener, err := net.FileListener(file)
	if err != nil {
		return nil, &SetupError{Op: "listen", Addr: address, Err: err}
	}
	return listener.(*net.TCPListener), nil
}

func sockaddr(addr *net.TCPAddr) (int, unix.Sockaddr) {
	if addr.IP == nil || addr.IP.To4() != nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		if ip4 := addr.IP.To4(); ip4 != nil {
			copy(sa.Addr[:], ip4)
		}
		return unix.AF_INET, sa
	}
	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], addr.IP.To16())
	return unix.AF_INET6, sa
}
