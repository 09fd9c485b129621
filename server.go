package ember

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"
)

// lifecycle errors
var (
	// ErrServerNotIdle is reported when `Server.Start` is called while
	// the server is neither idle nor recovering from a failed start.
	ErrServerNotIdle = errors.New("ember: server is not idle")

	// ErrServerNotStarted is reported when `Server.Stop` is called while
	// the server is neither started nor failed to start.
	ErrServerNotStarted = errors.New(
		"ember: server is not started nor failed to start")

	errPathEmpty = errors.New("ember: path cannot be empty")
)

// serverState is one vertex of the lifecycle state machine.
type serverState uint8

// server states
const (
	stateIdle serverState = iota
	stateStarting
	stateStarted
	stateStartError
	stateStopping
)

// Start binds a TCP listener on the port of the host of the s, installs the
// HTTP pipeline and begins accepting connections. The port 0 picks any free
// port; the actually bound port is returned either way.
//
// Start is only legal while the s is idle or a previous Start has failed.
func (s *Server) Start(port int) (int, error) {
	s.stateMutex.Lock()
	if s.state != stateIdle && s.state != stateStartError {
		s.stateMutex.Unlock()
		return 0, ErrServerNotIdle
	}

	s.state = stateStarting
	s.stateMutex.Unlock()

	if err := s.loadConfigFile(); err != nil {
		s.failStart()
		return 0, err
	}

	l, err := net.Listen(
		"tcp",
		net.JoinHostPort(s.Host, strconv.Itoa(port)),
	)
	if err != nil {
		s.failStart()
		return 0, err
	}

	s.listener = &keepAliveListener{l.(*net.TCPListener)}
	s.httpServer = &http.Server{
		Handler:        s,
		ReadTimeout:    s.ReadTimeout,
		WriteTimeout:   s.WriteTimeout,
		IdleTimeout:    s.IdleTimeout,
		MaxHeaderBytes: s.MaxHeaderBytes,
	}

	boundPort := s.listener.Addr().(*net.TCPAddr).Port

	s.stateMutex.Lock()
	s.state = stateStarted
	s.stateMutex.Unlock()

	go func(hs *http.Server, l net.Listener) {
		if err := hs.Serve(l); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.Logger.WithError(err).Error(
				"ember: server stopped unexpectedly",
			)
		}
	}(s.httpServer, s.listener)

	s.Logger.WithField("port", boundPort).Info("ember: server started")

	return boundPort, nil
}

// failStart records a failed Start.
func (s *Server) failStart() {
	s.stateMutex.Lock()
	s.state = stateStartError
	s.stateMutex.Unlock()
}

// Stop shuts the s down orderly: every WebSocket peer is disconnected with a
// normal-closure close frame, the listening socket is closed, and the
// remaining in-flight exchanges are drained.
//
// Stop is only legal while the s is started or a Start has failed.
func (s *Server) Stop() error {
	s.stateMutex.Lock()
	if s.state != stateStarted && s.state != stateStartError {
		s.stateMutex.Unlock()
		return ErrServerNotStarted
	}

	wasStarted := s.state == stateStarted
	s.state = stateStopping
	s.stateMutex.Unlock()

	var err error
	if wasStarted {
		s.registry.disconnect()

		ctx, cancel := context.WithTimeout(
			context.Background(),
			5*time.Second,
		)
		defer cancel()

		err = s.httpServer.Shutdown(ctx)
		s.httpServer = nil
		s.listener = nil
	}

	s.stateMutex.Lock()
	s.state = stateIdle
	s.stateMutex.Unlock()

	s.Logger.Info("ember: server stopped")

	return err
}

// keepAliveListener wraps a `net.TCPListener` to enable TCP keep-alive on
// every accepted connection.
type keepAliveListener struct {
	*net.TCPListener
}

// Accept implements the `net.Listener`.
func (l *keepAliveListener) Accept() (net.Conn, error) {
	tc, err := l.AcceptTCP()
	if err != nil {
		return nil, err
	}

	tc.SetKeepAlive(true)
	tc.SetKeepAlivePeriod(3 * time.Minute)

	return tc, nil
}
