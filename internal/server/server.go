package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rectcircle/kbdbridge/internal/observability"
	"github.com/rectcircle/kbdbridge/internal/variable"
	"github.com/rectcircle/kbdbridge/tools"
)

// Session end reasons, also used as metric labels
const (
	reasonPeerClosed = "peer_closed"
	reasonReadError  = "read_error"
	reasonWriteError = "write_error"
	reasonShutdown   = "shutdown"
)

// Options - server configuration
type Options struct {
	// Addr - listen address, default 0.0.0.0:51966
	Addr string
	Mode Mode
	// Backlog - accept queue length, default 1
	Backlog   int
	KeepAlive KeepAlive
	// OnPeerByte - receives every byte read from the peer in forward mode
	OnPeerByte ByteHandler
	Logger     *zerolog.Logger
}

// Server - single session byte server
type Server struct {
	opts     Options
	log      *zerolog.Logger
	listener *net.TCPListener
	sessions uint64

	mu     sync.Mutex
	active *session
}

// New - create a Server, zero options take the defaults
func New(opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = tools.ToAddressString("0.0.0.0", variable.ServerPort)
	}
	if opts.Backlog <= 0 {
		opts.Backlog = variable.ServerBacklog
	}
	if opts.KeepAlive == (KeepAlive{}) {
		opts.KeepAlive = DefaultKeepAlive()
	}
	logger := observability.OrDefault(opts.Logger).With().Str("component", "server").Logger()
	return &Server{opts: opts, log: &logger}
}

// Listen - create, bind and listen. Errors are fatal for the server.
func (s *Server) Listen() error {
	if s.listener != nil {
		return errors.New("server: already listening")
	}
	listener, err := listenTCP(s.opts.Addr, s.opts.Backlog)
	if err != nil {
		var setupErr *SetupError
		if errors.As(err, &setupErr) {
			s.log.Error().Err(setupErr.Err).Str("op", setupErr.Op).Int("errno", setupErr.Errno()).Msg("unable to set up listening socket")
		}
		return err
	}
	s.listener = listener
	s.log.Info().
		Str("addr", listener.Addr().String()).
		Stringer("mode", s.opts.Mode).
		Int("backlog", s.opts.Backlog).
		Msg("socket listening")
	return nil
}

// Serve - accept and serve peers one after another.
// Returns nil when ctx is done, or the accept error that stopped the loop;
// the listening socket is closed either way.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("server: Serve called before Listen")
	}
	defer s.listener.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			s.listener.Close()
			if sess := s.current(); sess != nil {
				sess.conn.Close()
			}
		case <-stop:
		}
	}()

	for {
		conn, err := s.listener.AcceptTCP()
		if err != nil {
			if ctx.Err() != nil {
				s.log.Info().Msg("server stopped")
				return nil
			}
			s.log.Error().Err(err).Int("errno", tools.Errno(err)).Msg("unable to accept connection")
			return fmt.Errorf("server: accept: %w", err)
		}
		s.serveConn(ctx, conn)
	}
}

// ListenAndServe - Listen then Serve
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Addr - bound address, nil before Listen
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Active - whether a peer session is live
func (s *Server) Active() bool {
	return s.current() != nil
}

// HandleByte - the ByteHandler given to the byte producer.
// The byte is written to the live peer in forward mode and dropped otherwise.
func (s *Server) HandleByte(b byte) {
	sess := s.current()
	if sess == nil || s.opts.Mode != ModeForward {
		observability.RecordBytes(observability.DirectionDropped, 1)
		return
	}
	if err := sess.write([]byte{b}); err != nil {
		observability.RecordBytes(observability.DirectionDropped, 1)
		if !errors.Is(err, net.ErrClosed) {
			s.log.Warn().Err(err).Uint64("session", sess.id).Msg("error occurred during sending")
			sess.abort()
		}
		return
	}
	observability.RecordBytes(observability.DirectionForwarded, 1)
}

func (s *Server) current() *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Server) setActive(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = sess
}

func (s *Server) serveConn(ctx context.Context, conn *net.TCPConn) {
	s.sessions++
	logger := s.log.With().
		Uint64("session", s.sessions).
		Str("peer", conn.RemoteAddr().String()).
		Logger()

	if err := setKeepAlive(conn, s.opts.KeepAlive); err != nil {
		logger.Warn().Err(err).Msg("unable to configure keep-alive")
	}
	logger.Info().Msg("socket accepted")

	sess := newSession(s.sessions, conn)
	s.setActive(sess)
	observability.RecordSessionOpened()
	// stop may have raced the accept
	if ctx.Err() != nil {
		conn.Close()
	}

	reason := s.runSession(sess, &logger)
	if ctx.Err() != nil {
		reason = reasonShutdown
	}

	s.setActive(nil)
	sess.close()
	observability.RecordSessionClosed(reason)
	logger.Info().Str("reason", reason).Msg("session closed")
}

func (s *Server) runSession(sess *session, logger *zerolog.Logger) string {
	size := variable.ForwardBufferSize
	if s.opts.Mode == ModeEcho {
		size = variable.EchoBufferSize
	}
	buffer := make([]byte, size)
	for {
		n, err := sess.conn.Read(buffer)
		if n > 0 {
			logger.Debug().Int("bytes", n).Hex("data", buffer[:n]).Msg("received")
			observability.RecordBytes(observability.DirectionReceived, n)
			switch s.opts.Mode {
			case ModeEcho:
				if werr := sess.write(buffer[:n]); werr != nil {
					logger.Error().Err(werr).Int("errno", tools.Errno(werr)).Msg("error occurred during sending")
					return reasonWriteError
				}
				observability.RecordBytes(observability.DirectionEchoed, n)
			case ModeForward:
				if s.opts.OnPeerByte != nil {
					for _, b := range buffer[:n] {
						s.opts.OnPeerByte(b)
					}
				}
			}
		}
		if err == nil {
			continue
		}
		switch {
		case sess.aborted.Load():
			return reasonWriteError
		case errors.Is(err, io.EOF):
			logger.Warn().Msg("connection closed")
			return reasonPeerClosed
		case tools.IsExpectedCloseError(err):
			logger.Warn().Err(err).Msg("connection lost")
			return reasonPeerClosed
		default:
			logger.Error().Err(err).Int("errno", tools.Errno(err)).Msg("error occurred during receiving")
			return reasonReadError
		}
	}
}

// Handler - HandleByte as a ByteHandler
func (s *Server) Handler() ByteHandler {
	return s.HandleByte
}
