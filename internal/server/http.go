// Package server exposes the simulator over HTTP: a JSON API, CSV export,
// Prometheus metrics and a websocket feed of completed runs.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP server for the web interface.
type Server struct {
	mux       *http.ServeMux
	handler   *Handlers
	gatherer  prometheus.Gatherer
	addr      string
	staticDir string
	logger    *log.Logger
	srv       *http.Server
}

// NewServer creates a new HTTP server. gatherer backs /metrics; nil leaves
// the route out.
func NewServer(addr string, handler *Handlers, gatherer prometheus.Gatherer, staticDir string) *Server {
	s := &Server{
		mux:       http.NewServeMux(),
		handler:   handler,
		gatherer:  gatherer,
		addr:      addr,
		staticDir: staticDir,
		logger:    handler.logger.With("component", "http"),
	}
	s.setupRoutes()
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	// API routes
	s.mux.HandleFunc("/api/schemes", s.handler.HandleSchemes)
	s.mux.HandleFunc("/api/presets", s.handler.HandlePresets)
	s.mux.HandleFunc("/api/simulate", s.handler.HandleSimulate)
	s.mux.HandleFunc("/api/export.csv", s.handler.HandleExportCSV)
	s.mux.HandleFunc("/api/devices", s.handler.HandleDevices)

	if s.gatherer != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// WebSocket
	s.mux.HandleFunc("/ws", s.handler.HandleWebSocket)

	// Static files
	if s.staticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))
	}
}

// Handler returns the root handler: request logging around gzip-compressed
// routes. The websocket route bypasses compression.
func (s *Server) Handler() http.Handler {
	compressed := gzhttp.GzipHandler(s.mux)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if r.URL.Path == "/ws" {
			s.mux.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.addr)
	fmt.Printf("\n  Modulation Studio running at http://%s\n\n", s.addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
