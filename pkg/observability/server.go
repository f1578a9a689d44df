package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// readHeaderTimeout bounds slow scrape clients.
const readHeaderTimeout = 5 * time.Second

// MetricsServer exposes /metrics and /healthz while a run is in progress.
type MetricsServer struct {
	server   *http.Server
	listener net.Listener
}

// NewMetricsServer starts serving metrics on addr. The listener is bound
// before returning so address errors surface immediately.
func NewMetricsServer(addr string, metrics http.Handler, logger *slog.Logger) (*MetricsServer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics)
	mux.Handle("/healthz", HealthHandler())

	var lc net.ListenConfig

	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: readHeaderTimeout}

	go func() {
		serveErr := srv.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "error", serveErr)
		}
	}()

	return &MetricsServer{server: srv, listener: listener}, nil
}

// Addr returns the address the server is listening on.
func (m *MetricsServer) Addr() string {
	return m.listener.Addr().String()
}

// Close gracefully shuts down the server.
func (m *MetricsServer) Close(ctx context.Context) error {
	err := m.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}

	return nil
}

// HealthHandler answers liveness probes with 200 and {"status":"ok"}.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusOK)

		_, _ = rw.Write([]byte(`{"status":"ok"}`))
	})
}
