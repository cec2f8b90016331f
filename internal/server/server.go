package server

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Server wraps an *http.Server to provide start/shutdown lifecycle.
type Server struct {
	mu         sync.Mutex
	httpServer *http.Server
}

const (
	maxHeaderBytes    = 1 << 20 // 1 MB
	readHeaderTimeout = 10 * time.Second
	// covers a full pulse queued behind another one
	writeTimeout = 30 * time.Second
	idleTimeout  = 60 * time.Second
)

// newHTTPServer builds a configured *http.Server for the given address and handler.
func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		MaxHeaderBytes:    maxHeaderBytes,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// normalizeAddr accepts "5000", ":5000" or "host:5000".
func normalizeAddr(addr string) string {
	if addr == "" || strings.Contains(addr, ":") {
		return addr
	}
	return ":" + addr
}

// Run starts the HTTP server on addr. It returns nil after Shutdown.
func (s *Server) Run(addr string, handler http.Handler) error {
	srv := s.install(newHTTPServer(normalizeAddr(addr), handler))
	return ignoreClosed(srv.ListenAndServe())
}

// RunTLS starts the HTTPS server on addr with TLS 1.2 as the floor.
func (s *Server) RunTLS(addr, certFile, keyFile string, handler http.Handler) error {
	srv := newHTTPServer(normalizeAddr(addr), handler)
	srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	s.install(srv)
	return ignoreClosed(srv.ListenAndServeTLS(certFile, keyFile))
}

// Shutdown gracefully stops the server, allowing in-flight requests to complete.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) install(srv *http.Server) *http.Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.httpServer = srv
	return srv
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
