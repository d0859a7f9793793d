package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/eternalApril/emberkv/internal/logger"
	"github.com/eternalApril/emberkv/internal/metrics"
	"github.com/eternalApril/emberkv/internal/resp"
	"go.uber.org/zap"
)

// ErrServerClosed is returned by Serve after Shutdown
var ErrServerClosed = errors.New("server closed")

// Server accepts client connections and runs one goroutine per connection.
// The Engine, and through it the storage, is the only state shared between them
type Server struct {
	engine  *Engine
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	peers    map[*Peer]struct{}

	wg      sync.WaitGroup
	closing atomic.Bool
}

// NewServer creates a server that executes commands on engine
func NewServer(engine *Engine, m *metrics.Metrics, logger *zap.Logger) *Server {
	return &Server{
		engine:  engine,
		metrics: m,
		logger:  logger,
		peers:   make(map[*Peer]struct{}),
	}
}

// ListenAndServe listens on the TCP address and calls Serve
func (s *Server) ListenAndServe(address string) error {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called. It always returns a non-nil error
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closing.Load() {
		s.mu.Unlock()
		ln.Close() //nolint:errcheck
		return ErrServerClosed
	}
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("listening on", zap.String("address", ln.Addr().String()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closing.Load() || errors.Is(err, net.ErrClosed) {
				return ErrServerClosed
			}
			s.logger.Error("Accept error", zap.Error(err))
			continue
		}

		peer := NewPeer(conn)
		if !s.track(peer) {
			peer.Close() //nolint:errcheck
			return ErrServerClosed
		}

		go func() {
			defer s.untrack(peer)
			s.handleConnection(peer)
		}()
	}
}

// Addr returns the listener address, or nil before Serve
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) track(p *Peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing.Load() {
		return false
	}
	s.peers[p] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(p *Peer) {
	s.mu.Lock()
	delete(s.peers, p)
	s.mu.Unlock()

	s.wg.Done()
}

// Shutdown stops accepting, closes every client connection and waits for
// their handlers to return. A command already executing completes first
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing.Store(true)
	if s.listener != nil {
		s.listener.Close() //nolint:errcheck
	}
	for p := range s.peers {
		p.Close() //nolint:errcheck
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("All connections closed gracefully")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleConnection handles a connection for a single user
func (s *Server) handleConnection(peer *Peer) {
	log := logger.ForConn(s.logger, peer.RemoteAddr())
	debug := log.Core().Enabled(zap.DebugLevel)

	if debug {
		log.Debug("client connected")
	}
	s.metrics.ConnectionOpened()

	defer func() {
		peer.Close() //nolint:errcheck
		s.metrics.ConnectionClosed()
		// log connection close
		if debug {
			log.Debug("client disconnected")
		}
	}()

	for {
		cmd, err := peer.ReadCommand()
		if err != nil {
			s.readFailed(peer, log, err)
			return
		}

		if len(cmd) > 0 {
			result := s.engine.Execute(cmd[0], cmd[1:])

			if err = peer.Send(result); err != nil {
				log.Error("error writing response", zap.Error(err))
				return
			}
		}

		// pipelined commands are answered in one write
		if peer.InputBuffered() == 0 {
			if err := peer.Flush(); err != nil {
				if !s.closing.Load() {
					log.Warn("flush failed", zap.Error(err))
				}
				return
			}
		}
	}
}

// readFailed decides how loudly a terminated read loop is reported
func (s *Server) readFailed(peer *Peer, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, io.EOF):
		// client closed the connection between commands
	case errors.Is(err, resp.ErrProtocol):
		s.metrics.ProtocolError()
		log.Warn("protocol error, closing connection", zap.Error(err))

		// best effort, the connection is dropped either way
		if peer.Send(resp.MakeError("ERR "+err.Error())) == nil {
			peer.Flush() //nolint:errcheck
		}
	case s.closing.Load() || errors.Is(err, net.ErrClosed):
		// shutdown closed the connection under us
	default:
		log.Warn("read command failed", zap.Error(err))
	}
}
