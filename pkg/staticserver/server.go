// Package staticserver serves a directory over HTTP with permissive CORS
// headers and a plain access log on stdout.
package staticserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"gvisor.dev/gvisor/pkg/cleanup"

	"github.com/abshkbh/webapp-tools/pkg/config"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	config     config.StaticServerConfig
	root       string
	out        io.Writer
	accessLog  *log.Logger
	listener   net.Listener
	httpServer *http.Server
}

// New validates the served root. A missing root is a startup error.
func New(cfg config.StaticServerConfig) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %s: %w", cfg.Root, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("root directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", root)
	}

	return &Server{
		config:    cfg,
		root:      root,
		out:       os.Stdout,
		accessLog: newAccessLogger(os.Stdout),
	}, nil
}

// WithOutput redirects the startup banner, the shutdown message and the
// access lines to `w`.
func (s *Server) WithOutput(w io.Writer) *Server {
	s.out = w
	s.accessLog.SetOutput(w)
	return s
}

// Root returns the absolute directory being served.
func (s *Server) Root() string {
	return s.root
}

// Handler returns the full request pipeline: CORS headers, access log and
// file serving for GET and HEAD.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.PathPrefix("/").
		Handler(newFileHandler(s.root)).
		Methods(http.MethodGet, http.MethodHead)
	r.MethodNotAllowedHandler = http.HandlerFunc(unsupportedMethod)

	return corsMiddleware(accessLogMiddleware(s.accessLog, r))
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds the listener and prints the startup listing. An occupied port
// is returned as an error; there is no retry and no fallback port.
func (s *Server) Start() (retErr error) {
	logger := log.WithField("api", "start")
	cleanup := cleanup.Make(func() {
		if retErr != nil {
			logger.WithError(retErr).Debug("start aborted")
		}
	})
	defer cleanup.Clean()

	if s.listener != nil {
		return errors.New("server already started")
	}

	addr := net.JoinHostPort(s.config.Host, s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on: %s: %w", addr, err)
	}
	cleanup.Add(func() {
		if err := ln.Close(); err != nil {
			logger.WithError(err).Errorf("failed to close listener: %s", addr)
		}
	})

	port := ln.Addr().(*net.TCPAddr).Port
	urls, err := ListAvailable(s.root, port, s.config.ListExtensions)
	if err != nil {
		return fmt.Errorf("failed to list available files: %w", err)
	}

	fmt.Fprintf(s.out, "Server running at http://localhost:%d/\n", port)
	fmt.Fprintln(s.out, "Available files:")
	for _, u := range urls {
		fmt.Fprintf(s.out, "  - %s\n", u)
	}

	logger.WithFields(log.Fields{
		"addr": ln.Addr().String(),
		"root": s.root,
	}).Info("static server listening")
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Warnf("Failed to notify systemd of readiness: %v", err)
	}

	s.listener = ln
	cleanup.Release()
	return nil
}

// Serve runs the accept loop until `ctx` is done, then shuts the server down.
// The listener is closed on every return path.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("server not started")
	}

	s.httpServer = &http.Server{Handler: s.Handler()}
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		// Serve only returns early on a listener failure.
		s.listener.Close()
		return fmt.Errorf("static server exited: %w", err)
	case <-ctx.Done():
	}

	fmt.Fprintln(s.out, "\nServer stopped.")
	log.Info("Shutting down static server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.httpServer.Close()
		return fmt.Errorf("static server shutdown failed: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("static server exited: %w", err)
	}
	return nil
}
