// Package server exposes the gateway's OpenAI-compatible HTTP surface:
// /v1/chat/completions, /v1/models, /health and /metrics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"nxapi-hq/nxapi/pkg/proxy"
	"nxapi-hq/nxapi/pkg/server/middleware"
	"nxapi-hq/nxapi/pkg/telemetry/metrics"
)

// Config controls the HTTP server.
type Config struct {
	// ListenAddress is the address to bind (host:port).
	ListenAddress string

	// ReadTimeout bounds reading the request headers and body.
	ReadTimeout time.Duration

	// IdleTimeout bounds idle keep-alive connections.
	IdleTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration

	// CORS configures cross-origin access; nil uses the default.
	CORS *middleware.CORSConfig
}

// Server is the gateway HTTP server.
type Server struct {
	config       Config
	orchestrator *proxy.Orchestrator
	metrics      *metrics.Collector

	httpServer *http.Server
	mu         sync.Mutex
	running    bool
}

// New creates a server over the orchestrator and metrics collector.
func New(config Config, orchestrator *proxy.Orchestrator, collector *metrics.Collector) *Server {
	if config.CORS == nil {
		config.CORS = middleware.DefaultCORSConfig()
	}
	return &Server{
		config:       config,
		orchestrator: orchestrator,
		metrics:      collector,
	}
}

// Handler returns the routed handler with the full middleware chain.
// Streaming responses must not be cut off, so no write timeout is set
// on the server and none is applied here.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("/v1/models", s.handleModels)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", s.metrics.Handler())

	var handler http.Handler = mux
	handler = middleware.CORS(s.config.CORS)(handler)
	handler = middleware.Logging(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(handler)
	return handler
}

// Start runs the server until the context is canceled or the listener
// fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true
	s.httpServer = &http.Server{
		Addr:        s.config.ListenAddress,
		Handler:     s.Handler(),
		ReadTimeout: s.config.ReadTimeout,
		IdleTimeout: s.config.IdleTimeout,
	}
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		slog.Info("gateway listening", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false

	timeout := s.config.ShutdownTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	slog.Info("gateway shutting down", "timeout", timeout.String())
	return s.httpServer.Shutdown(shutdownCtx)
}
