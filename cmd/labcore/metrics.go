package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

func runServeMetrics(ctx context.Context, args []string, _ io.Writer, stderr io.Writer) error {
	fs, configPath := newFlagSet("serve-metrics", stderr)
	listen := fs.String("listen", "", "listen address (defaults to metrics.listen)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	a, err := newApp(ctx, *configPath, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = a.close() }()

	addr := *listen
	if addr == "" {
		addr = a.cfg.Metrics.Listen
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: a.metricsHandler(), ReadHeaderTimeout: 5 * time.Second}
	a.logger.Info("serving metrics", "addr", ln.Addr().String(), "driver", a.cfg.Metrics.Driver)
	return serve(ctx, srv, ln)
}

// metricsHandler exposes /metrics from the Prometheus registry (process and Go
// collectors included) and /debug/vars from expvar.
func (a *app) metricsHandler() http.Handler {
	reg := a.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/debug/vars", expvar.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok\n")
	})
	return mux
}

func serve(ctx context.Context, srv *http.Server, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}
