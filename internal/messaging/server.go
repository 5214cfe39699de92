package messaging

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aiforce-discovery-agent/collectors/scan-collector/internal/config"
	"github.com/aiforce-discovery-agent/collectors/scan-collector/internal/metrics"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Server accepts report connections and hands each one to a Processor in its
// own goroutine.
type Server struct {
	config    config.ListenerConfig
	processor *Processor
	metrics   *metrics.Metrics
	logger    *zap.SugaredLogger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewServer creates a new report server.
func NewServer(cfg config.ListenerConfig, proc *Processor, m *metrics.Metrics, logger *zap.SugaredLogger) *Server {
	return &Server{
		config:    cfg,
		processor: proc,
		metrics:   m,
		logger:    logger,
		conns:     make(map[net.Conn]struct{}),
	}
}

// Start binds the listener, calls initiate once in the background and then
// serves until ctx is cancelled. A bind failure is returned before initiate
// is called.
func (s *Server) Start(ctx context.Context, initiate func()) error {
	if err := s.Listen(); err != nil {
		return err
	}

	if initiate != nil {
		go initiate()
	}

	return s.Serve(ctx)
}

// Listen binds the configured TCP address.
func (s *Server) Listen() error {
	addr := s.config.Address()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.closed = false
	s.mu.Unlock()

	s.logger.Infow("Running messaging server", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Listen and after Close.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// IsListening reports whether the listener is bound.
func (s *Server) IsListening() bool {
	return s.Addr() != nil
}

// ActiveConnections returns the number of connections being processed.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Serve runs the accept loop. Failed accepts are logged and retried with
// backoff. Cancelling ctx closes the listener and drops open connections.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("server is not listening")
	}

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}

			s.metrics.AcceptFailed()
			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay *= 2
			}
			if delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			s.logger.Warnw("Accept failed", "error", err, "retry_in", delay)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
			continue
		}
		delay = 0

		s.track(conn)
		s.wg.Add(1)
		go s.handleConn(ctx, conn)
	}
}

// Close stops the listener and drops every open connection.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	var err error
	if s.listener != nil {
		err = s.listener.Close()
		s.listener = nil
	}
	for conn := range s.conns {
		_ = conn.Close()
	}
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)

	s.metrics.ConnectionOpened()
	defer s.metrics.ConnectionClosed()

	log := s.logger.With(
		"conn_id", uuid.NewString(),
		"remote", conn.RemoteAddr().String(),
	)
	log.Debugw("Connection accepted")

	lines, err := s.processor.process(ctx, conn, log)
	if err != nil {
		if ctx.Err() != nil {
			log.Debugw("Connection dropped on shutdown")
			return
		}
		log.Warnw("Connection ended with error", "error", err)
		return
	}

	log.Infow("Connection closed", "messages", len(lines), "status", lines)
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn] = struct{}{}
	if s.closed {
		_ = conn.Close()
	}
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	_ = conn.Close()
}
