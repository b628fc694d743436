package server

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
)

// session - the single live peer connection.
// Writes from the accept loop and from HandleByte are serialised by
// writeMu; closing does not take writeMu so a blocked writer is released.
type session struct {
	id      uint64
	conn    *net.TCPConn
	writeMu sync.Mutex
	closed  atomic.Bool
	aborted atomic.Bool
}

func newSession(id uint64, conn *net.TCPConn) *session {
	return &session{id: id, conn: conn}
}

func (s *session) write(p []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed.Load() {
		return net.ErrClosed
	}
	return writeAll(s.conn, p)
}

// abort - end the session from outside the read loop
func (s *session) abort() {
	s.aborted.Store(true)
	s.conn.Close()
}

// close - disallow further sends, then release the socket
func (s *session) close() {
	s.closed.Store(true)
	s.conn.CloseWrite()
	s.conn.Close()
}

// writeAll - keep writing until p is flushed, a short write must not drop bytes
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}
