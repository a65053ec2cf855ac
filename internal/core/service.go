// Package core hosts the transaction boundary, the operation recorder and the
// integrity rules that every labcore workflow is assembled from.
package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"labcore/pkg/domain"
)

// Service wraps a persistent store with the unit-of-work boundary used by
// every orchestrator: each call is atomic, logged, audited, measured and traced.
type Service struct {
	store   domain.PersistentStore
	logger  Logger
	clock   Clock
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger; nil keeps the no-op logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the clock used for audit timestamps and durations.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithAuditRecorder installs an audit sink.
func WithAuditRecorder(r AuditRecorder) Option {
	return func(s *Service) {
		if r != nil {
			s.audit = r
		}
	}
}

// WithMetricsRecorder installs a metrics sink.
func WithMetricsRecorder(r MetricsRecorder) Option {
	return func(s *Service) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithTracer installs a tracer.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  noopLogger{},
		clock:   ClockFunc(func() time.Time { return time.Now().UTC() }),
		audit:   noopAuditRecorder{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

// Logger returns the configured logger.
func (s *Service) Logger() Logger {
	return s.logger
}

// Transact runs fn atomically under the given label. Any error returned by fn
// rolls back every write made inside it and is returned unchanged.
func (s *Service) Transact(ctx context.Context, label string, fn func(domain.Transaction) error) (domain.Result, error) {
	ctx, requestID := ensureRequestID(ctx)
	ctx, span := s.tracer.Start(ctx, label)
	started := s.clock.Now()

	res, err := s.store.RunInTransaction(ctx, fn)

	duration := s.clock.Now().Sub(started)
	entry := AuditEntry{
		Operation:  label,
		RequestID:  requestID,
		Status:     AuditStatusSuccess,
		Violations: len(res.Violations),
		Duration:   duration,
		Timestamp:  started,
	}
	var verr *domain.ValidationError
	switch {
	case err == nil:
		s.logger.Debug("transaction committed", "operation", label, "request_id", requestID, "duration", duration, "violations", len(res.Violations))
		for _, v := range res.Violations {
			s.logger.Warn("rule violation", "operation", label, "request_id", requestID, "rule", v.Rule, "severity", string(v.Severity), "message", v.Message)
		}
	case errors.As(err, &verr):
		entry.Status = AuditStatusRejected
		entry.Problems = append([]string(nil), verr.Problems...)
		entry.Error = err.Error()
		s.logger.Info("request rejected", "operation", label, "request_id", requestID, "problems", verr.Problems)
	default:
		entry.Status = AuditStatusError
		entry.Error = err.Error()
		s.logger.Error("transaction failed", "operation", label, "request_id", requestID, "error", err)
	}
	s.audit.Record(ctx, entry)
	s.metrics.Observe(ctx, label, err == nil, duration)
	span.End(err)
	return res, err
}

// View runs fn against a read-only snapshot.
func (s *Service) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	return s.store.View(ctx, fn)
}

type requestIDKey struct{}

// WithRequestID returns a context carrying the given request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id stored by WithRequestID or Transact.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

func ensureRequestID(ctx context.Context) (context.Context, string) {
	if id, ok := RequestIDFromContext(ctx); ok {
		return ctx, id
	}
	id := uuid.NewString()
	return WithRequestID(ctx, id), id
}
