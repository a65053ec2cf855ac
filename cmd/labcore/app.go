package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"labcore/internal/config"
	"labcore/internal/core"
	"labcore/internal/ops"
	"labcore/pkg/domain"
)

// app holds the wired runtime for one command invocation.
type app struct {
	cfg      config.Config
	zap      *zap.Logger
	logger   *core.ZapLogger
	store    domain.PersistentStore
	service  *core.Service
	runner   *ops.Runner
	registry *prometheus.Registry
	expvar   *core.ExpvarMetricsRecorder
	closers  []func() error
}

func newApp(ctx context.Context, configPath string, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	zl, err := core.BuildZapLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, zap: zl, logger: core.NewZapLogger(zl)}

	metrics, err := a.metricsRecorder()
	if err != nil {
		_ = a.close()
		return nil, err
	}
	tracer, err := a.tracer(stderr)
	if err != nil {
		_ = a.close()
		return nil, err
	}

	store, closeStore, err := core.OpenPersistentStore(ctx, cfg.Storage, core.NewDefaultRulesEngine())
	if err != nil {
		_ = a.close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, closeStore)

	a.service = core.NewService(store,
		core.WithLogger(a.logger),
		core.WithAuditRecorder(auditLogger{logger: zl}),
		core.WithMetricsRecorder(metrics),
		core.WithTracer(tracer),
	)
	a.runner = ops.NewRunner(a.service, nil)
	a.logger.Debug("labcore ready", "storage", cfg.Storage.Driver, "metrics", cfg.Metrics.Driver, "tracing", cfg.Tracing.Driver)
	return a, nil
}

func (a *app) metricsRecorder() (core.MetricsRecorder, error) {
	switch strings.ToLower(strings.TrimSpace(a.cfg.Metrics.Driver)) {
	case "", "none":
		return nil, nil
	case "expvar":
		a.expvar = core.NewExpvarMetricsRecorder("")
		return a.expvar, nil
	case "prometheus":
		a.registry = prometheus.NewRegistry()
		return core.NewPrometheusMetricsRecorder(a.registry)
	default:
		return nil, fmt.Errorf("unsupported metrics driver %q", a.cfg.Metrics.Driver)
	}
}

func (a *app) tracer(stderr io.Writer) (core.Tracer, error) {
	switch strings.ToLower(strings.TrimSpace(a.cfg.Tracing.Driver)) {
	case "", "none":
		return nil, nil
	case "json":
		return core.NewJSONTracer(stderr), nil
	case "otel":
		return core.NewOTelTracer(otel.Tracer("labcore")), nil
	default:
		return nil, fmt.Errorf("unsupported tracing driver %q", a.cfg.Tracing.Driver)
	}
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	// stderr sync fails on some platforms; ignore it.
	_ = a.zap.Sync()
	return errors.Join(errs...)
}

// auditLogger writes audit entries through zap.
type auditLogger struct {
	logger *zap.Logger
}

func (l auditLogger) Record(_ context.Context, e core.AuditEntry) {
	fields := []zap.Field{
		zap.String("operation", e.Operation),
		zap.String("request_id", e.RequestID),
		zap.String("status", string(e.Status)),
		zap.Duration("duration", e.Duration),
		zap.Time("timestamp", e.Timestamp),
	}
	if len(e.Problems) > 0 {
		fields = append(fields, zap.Strings("problems", e.Problems))
	}
	if e.Violations > 0 {
		fields = append(fields, zap.Int("violations", e.Violations))
	}
	if e.Error != "" {
		fields = append(fields, zap.String("error", e.Error))
	}
	l.logger.Info("audit", fields...)
}
