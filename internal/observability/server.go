package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"logossophia/internal/util"
)

// Server serves the scrape endpoint at /metrics.
type Server struct {
	srv      *http.Server
	listener net.Listener
	logger   *slog.Logger
}

// Serve binds addr and starts serving c in the background. Bind errors are
// returned immediately.
func Serve(addr string, c *Collector, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	s := &Server{
		srv:      &http.Server{Handler: util.Chain(mux, logger), ReadHeaderTimeout: 5 * time.Second},
		listener: ln,
		logger:   logger,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", ln.Addr().String(), "err", err)
		}
	}()
	logger.Info("metrics server listening", "addr", ln.Addr().String())
	return s, nil
}

// Addr is the bound address, useful when addr had port 0.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
