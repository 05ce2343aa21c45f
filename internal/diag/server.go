// Package diag serves read-only diagnostics for the target process over
// HTTP on a loopback address.
package diag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/xlbridge/internal/bridge"
	"github.com/leapstack-labs/xlbridge/internal/workbook"
)

// ErrNotLoopback is returned for listen addresses reachable from other
// machines.
var ErrNotLoopback = errors.New("diagnostics address must be loopback")

// Config holds configuration for the diagnostics server.
type Config struct {
	Addr     string
	App      *workbook.Application
	Endpoint *bridge.Server
	Version  string
	Logger   *slog.Logger
}

// Server is the diagnostics HTTP server.
type Server struct {
	addr     string
	app      *workbook.Application
	endpoint *bridge.Server
	version  string
	started  time.Time
	logger   *slog.Logger
}

// NewServer validates cfg and returns a server.
func NewServer(cfg Config) (*Server, error) {
	if err := CheckLoopback(cfg.Addr); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		addr:     cfg.Addr,
		app:      cfg.App,
		endpoint: cfg.Endpoint,
		version:  cfg.Version,
		started:  time.Now(),
		logger:   logger,
	}, nil
}

// CheckLoopback accepts host:port addresses whose host is localhost or a
// loopback IP.
func CheckLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid diagnostics address %q: %w", addr, err)
	}
	if host == "localhost" {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrNotLoopback, addr)
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Recoverer,
		middleware.NoCache,
		s.logRequests,
	)
	r.Get("/healthz", s.handleHealth)
	r.Get("/workbook", s.handleWorkbook)
	r.Get("/endpoint", s.handleEndpoint)
	return r
}

// Serve listens on the configured address and blocks until ctx is
// cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.logger.Info("Diagnostics listening", "addr", "http://"+ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("diagnostics server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("Shutting down diagnostics server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("Diagnostics request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

// Health is the /healthz body.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime"`
}

// EndpointInfo is the /endpoint body.
type EndpointInfo struct {
	Registered bool   `json:"registered"`
	Name       string `json:"name,omitempty"`
	Socket     string `json:"socket,omitempty"`
	Bound      bool   `json:"bound"`
	Calls      int64  `json:"calls"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Health{
		Status:  "ok",
		Version: s.version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleWorkbook(w http.ResponseWriter, _ *http.Request) {
	if s.app == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no application"})
		return
	}
	writeJSON(w, http.StatusOK, s.app.Snapshot())
}

func (s *Server) handleEndpoint(w http.ResponseWriter, _ *http.Request) {
	info := EndpointInfo{}
	if s.endpoint != nil {
		info = EndpointInfo{
			Registered: true,
			Name:       s.endpoint.Name(),
			Socket:     s.endpoint.Path(),
			Bound:      s.endpoint.Bound(),
			Calls:      s.endpoint.Calls(),
		}
	}
	writeJSON(w, http.StatusOK, info)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
