package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/prosodia/internal/observe"
)

const shutdownTimeout = 5 * time.Second

// NewServer builds the HTTP server for addr exposing /metrics, /healthz and
// /readyz. Every route is wrapped in [observe.Middleware].
func NewServer(addr string, h *Handler, m *observe.Metrics) *http.Server {
	mux := http.NewServeMux()
	h.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(m)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Serve listens on srv.Addr and serves until ctx is done, then shuts the
// server down gracefully. It returns nil after a clean shutdown. Request
// contexts inherit the values of ctx, so the run ID reaches the middleware.
func Serve(ctx context.Context, srv *http.Server) error {
	base := context.WithoutCancel(ctx)
	srv.BaseContext = func(net.Listener) context.Context { return base }

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("health: listen %s: %w", srv.Addr, err)
	}
	slog.Info("health: serving", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return fmt.Errorf("health: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("health: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health: serve: %w", err)
	}
	return nil
}
