// SPDX-License-Identifier: MPL-2.0

package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const (
	// DefaultShutdownTimeout bounds the graceful drain in Stop.
	DefaultShutdownTimeout = 5 * time.Second

	readHeaderTimeout = 10 * time.Second
)

type (
	// Config holds the listener settings.
	Config struct {
		// Host is the interface to bind; empty binds all interfaces.
		Host string
		// Port 0 picks a free port.
		Port int
		// Name is reported by "GET /".
		Name string
	}

	// Server is a single-use liveness HTTP server. Once stopped or failed,
	// create a new instance.
	Server struct {
		cfg    Config
		logger *log.Logger

		state   atomic.Int32
		stateMu sync.Mutex
		lastErr error

		httpServer *http.Server
		listener   net.Listener
		addr       string

		wg        sync.WaitGroup
		startedCh chan struct{}
		errCh     chan error
	}

	// Option configures a Server during construction.
	Option func(*Server)
)

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New creates a Server in StateCreated. Nothing is bound until Start.
func New(cfg Config, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		logger:    log.Default(),
		startedCh: make(chan struct{}),
		errCh:     make(chan error, 1),
	}
	s.state.Store(int32(StateCreated))
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds the listener and serves in the background. It returns once the
// server is running or has failed.
func (s *Server) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		s.transitionToFailed(fmt.Errorf("context canceled before start: %w", ctx.Err()))
		return s.LastError()
	default:
	}

	if !s.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("cannot start health server in state %s", s.State())
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		s.transitionToFailed(fmt.Errorf("failed to listen on %s: %w", addr, err))
		return s.LastError()
	}

	s.stateMu.Lock()
	s.listener = listener
	s.addr = listener.Addr().String()
	s.httpServer = &http.Server{
		Handler:           h2c.NewHandler(Handler(s.cfg.Name), &http2.Server{}),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	s.stateMu.Unlock()

	s.wg.Add(1)
	go s.serve()

	<-s.startedCh
	s.logger.Info("Health endpoint listening", "addr", s.Addr())
	return nil
}

func (s *Server) serve() {
	defer s.wg.Done()

	if s.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		close(s.startedCh)
	}

	s.stateMu.Lock()
	srv, listener := s.httpServer, s.listener
	s.stateMu.Unlock()

	err := srv.Serve(listener)
	if err == nil || errors.Is(err, http.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
		return
	}
	if s.State() == StateRunning {
		s.transitionToFailed(fmt.Errorf("health server: %w", err))
	}
}

// Stop drains in-flight requests and stops the server. It is safe to call
// more than once, and on a server that never started.
func (s *Server) Stop() error {
	for {
		current := s.State()
		switch current {
		case StateStopped, StateFailed:
			return nil
		case StateCreated:
			if s.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
				return nil
			}
		case StateStopping:
			s.wg.Wait()
			return nil
		case StateStarting, StateRunning:
			if s.state.CompareAndSwap(int32(current), int32(StateStopping)) {
				return s.doStop()
			}
		default:
			return &InvalidStateError{Value: current}
		}
	}
}

func (s *Server) doStop() error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	s.stateMu.Lock()
	srv := s.httpServer
	s.stateMu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	s.wg.Wait()
	s.state.Store(int32(StateStopped))
	close(s.errCh)
	return err
}

func (s *Server) transitionToFailed(err error) {
	s.stateMu.Lock()
	s.lastErr = err
	s.stateMu.Unlock()

	s.state.Store(int32(StateFailed))
	s.logger.Warn("Health endpoint failed", "err", err)

	select {
	case s.errCh <- err:
	default:
	}
}

// State returns the current lifecycle state.
func (s *Server) State() State { return State(s.state.Load()) }

// IsRunning reports whether the server accepts requests.
func (s *Server) IsRunning() bool { return s.State() == StateRunning }

// Err receives a fatal serving error. It is closed by Stop.
func (s *Server) Err() <-chan error { return s.errCh }

// LastError returns the error that moved the server to StateFailed.
func (s *Server) LastError() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.lastErr
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.addr
}

// URL returns the base URL of the endpoint, or "" before Start.
func (s *Server) URL() string {
	if addr := s.Addr(); addr != "" {
		return "http://" + addr
	}
	return ""
}
