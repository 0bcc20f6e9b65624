// Package server exposes the bridge to peers: a WebSocket endpoint carrying
// JSON-RPC notifications, Prometheus metrics and optional static assets.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hay-kot/mqview/internal/core/config"
	"github.com/hay-kot/mqview/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

// Server is the bridge's HTTP front end.
type Server struct {
	log      zerolog.Logger
	cfg      config.ServerConfig
	hub      *Hub
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
}

// New creates a server for bridge. m may be nil, in which case /metrics is
// not mounted.
func New(log zerolog.Logger, cfg config.ServerConfig, bridge Bridge, m *metrics.Metrics) *Server {
	return &Server{
		log:     log,
		cfg:     cfg,
		hub:     NewHub(log.With().Str("component", "hub").Logger(), bridge, m),
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// peers are local tools and browsers served from static_dir
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Hub returns the server's hub, which must be registered as the broker
// listener.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP routes.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		s.serveWS(ctx, w, r)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	if s.cfg.Metrics && s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	if s.cfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}
	return mux
}

func (s *Server) serveWS(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	p := newPeer(uuid.NewString(), s.hub, conn)
	go p.writePump()

	select {
	case s.hub.register <- p:
	case <-s.hub.done:
		_ = conn.Close()
		return
	}

	s.log.Info().Str("peer", p.id).Str("remote", r.RemoteAddr).Msg("peer connected")
	go p.readPump(ctx, s.hub.route)
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hubErr := make(chan error, 1)
	go func() { hubErr <- s.hub.Run(ctx) }()

	srv := &http.Server{
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("server listening")
		serveErr <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
	case err := <-hubErr:
		if err != nil {
			_ = srv.Close()
			return err
		}
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()

	s.log.Info().Msg("shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
