package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"shodanx/auth"
	"shodanx/search"

	"go.uber.org/zap"
	"golang.org/x/net/netutil"
)

// LoginStatus reports the browser session's login state.
type LoginStatus interface {
	State() auth.State
}

// Server exposes the search executor over HTTP.
type Server struct {
	engine   search.SearchEngine
	status   LoginStatus
	logger   *zap.Logger
	port     int
	maxConns int
	maxPages int
	now      func() time.Time

	httpServer *http.Server
}

// NewServer creates a new API server. maxConns of zero leaves connections
// unlimited; maxPages of zero means search.DefaultMaxPages.
func NewServer(engine search.SearchEngine, status LoginStatus, logger *zap.Logger, port, maxConns, maxPages int) *Server {
	return &Server{
		engine:   engine,
		status:   status,
		logger:   logger,
		port:     port,
		maxConns: maxConns,
		maxPages: maxPages,
		now:      time.Now,
	}
}

// Handler returns the routes served by the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", s.SearchHandler)
	mux.HandleFunc("/health", s.HealthHandler)
	return mux
}

// Start serves until Shutdown is called. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", ":"+strconv.Itoa(s.port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	if s.maxConns > 0 {
		ln = netutil.LimitListener(ln, s.maxConns)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting API server", zap.Int("port", s.port), zap.Int("max_conns", s.maxConns))

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
