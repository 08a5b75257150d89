package realtime

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultShutdownTimeout = 5 * time.Second

// ServerConfig stores the settings required to expose the notifier.
type ServerConfig struct {
	Addr string
	Path string
}

// Server runs the websocket endpoint on its own HTTP listener.
type Server struct {
	cfg     ServerConfig
	hub     *Hub
	router  *Router
	logger  *zap.Logger
	httpSrv *http.Server
}

// NewServer builds the notifier server.
func NewServer(cfg ServerConfig, router *Router, hub *Hub, logger *zap.Logger) *Server {
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{cfg: cfg, router: router, hub: hub, logger: logger}
}

// Handler returns the HTTP handler serving the websocket path.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.router.Handle)
	return mux
}

// Start listens until ctx is cancelled, then shuts down and closes every
// session.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		if err := s.Stop(); err != nil {
			s.logger.Warn("realtime server shutdown failed", zap.Error(err))
		}
	}()

	s.logger.Info("realtime server listening", zap.String("addr", s.cfg.Addr), zap.String("path", s.cfg.Path))

	err := s.httpSrv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the server and active sessions.
func (s *Server) Stop() error {
	if s.httpSrv == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	s.hub.CloseAll(ErrSessionShutdown)
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Count exposes active session count.
func (s *Server) Count() int {
	return s.hub.Count()
}
