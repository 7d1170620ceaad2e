package monitoring

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ducminhle1904/crypto-risk-engine/internal/logger"
)

// Server exposes /metrics, /health and any extra handlers (such as the
// dashboard websocket) on one listener.
type Server struct {
	srv *http.Server
	log *logger.Logger
}

// NewServer builds the monitoring mux
func NewServer(addr string, health *HealthChecker, extra map[string]http.Handler, log *logger.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", NewMetricsHandler())
	mux.Handle("/health", health)
	for path, h := range extra {
		mux.Handle(path, h)
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Handler returns the underlying mux
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting monitoring server on %s", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}
