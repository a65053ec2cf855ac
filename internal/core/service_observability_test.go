package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"labcore/internal/infra/persistence/memory"
	"labcore/pkg/domain"
)

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

type spanRecord struct {
	op  string
	err error
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

type logRecord struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	records []logRecord
}

func (l *captureLogger) log(level, msg string, args []any) {
	l.records = append(l.records, logRecord{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.log("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.log("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.log("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.log("error", msg, args) }

func (l *captureLogger) has(level, msg string) bool {
	for _, r := range l.records {
		if r.level == level && r.msg == msg {
			return true
		}
	}
	return false
}

type observedService struct {
	svc     *Service
	audit   *captureAuditRecorder
	metrics *captureMetricsRecorder
	tracer  *captureTracer
	logger  *captureLogger
}

func newObservedService(engine *domain.RulesEngine) observedService {
	o := observedService{
		audit:   &captureAuditRecorder{},
		metrics: &captureMetricsRecorder{},
		tracer:  &captureTracer{},
		logger:  &captureLogger{},
	}
	tick := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := ClockFunc(func() time.Time {
		tick = tick.Add(5 * time.Millisecond)
		return tick
	})
	o.svc = NewService(memory.NewStore(engine),
		WithLogger(o.logger),
		WithClock(clock),
		WithAuditRecorder(o.audit),
		WithMetricsRecorder(o.metrics),
		WithTracer(o.tracer),
	)
	return o
}

func TestTransactSuccessEmitsObservability(t *testing.T) {
	o := newObservedService(nil)
	ctx := WithRequestID(context.Background(), "req-1")
	var seen string
	_, err := o.svc.Transact(ctx, "create_user", func(tx domain.Transaction) error {
		_, err := tx.CreateUser(domain.User{Username: "ann"})
		return err
	})
	if err != nil {
		t.Fatalf("transact: %v", err)
	}
	_ = o.svc.View(context.Background(), func(v domain.TransactionView) error {
		u, ok := v.FindUser("ann")
		if !ok {
			t.Fatalf("expected committed user")
		}
		seen = u.Username
		return nil
	})
	if seen != "ann" {
		t.Fatalf("unexpected user %q", seen)
	}
	if len(o.audit.entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(o.audit.entries))
	}
	entry := o.audit.entries[0]
	if entry.Status != AuditStatusSuccess || entry.Operation != "create_user" || entry.RequestID != "req-1" {
		t.Fatalf("unexpected audit entry %+v", entry)
	}
	if entry.Duration != 5*time.Millisecond {
		t.Fatalf("expected clock-driven duration, got %s", entry.Duration)
	}
	if len(o.metrics.calls) != 1 || !o.metrics.calls[0].success {
		t.Fatalf("expected one successful metrics call, got %+v", o.metrics.calls)
	}
	if len(o.tracer.ended) != 1 || o.tracer.ended[0].err != nil {
		t.Fatalf("expected one successful span, got %+v", o.tracer.ended)
	}
	if !o.logger.has("debug", "transaction committed") {
		t.Fatalf("expected commit debug log, got %+v", o.logger.records)
	}
}

func TestTransactValidationFailureIsRejected(t *testing.T) {
	o := newObservedService(nil)
	var problems domain.Problems
	problems.Add("No user supplied.")
	problems.Add("No request supplied.")
	_, err := o.svc.Transact(context.Background(), "clean_out", func(tx domain.Transaction) error {
		if _, err := tx.CreateUser(domain.User{Username: "ghost"}); err != nil {
			return err
		}
		return problems.Err()
	})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_ = o.svc.View(context.Background(), func(v domain.TransactionView) error {
		if _, ok := v.FindUser("ghost"); ok {
			t.Fatalf("rejected request must not persist writes")
		}
		return nil
	})
	entry := o.audit.entries[0]
	if entry.Status != AuditStatusRejected {
		t.Fatalf("expected rejected status, got %s", entry.Status)
	}
	if len(entry.Problems) != 2 || entry.Problems[0] != "No user supplied." {
		t.Fatalf("unexpected audit problems %v", entry.Problems)
	}
	if entry.RequestID == "" {
		t.Fatalf("expected generated request id")
	}
	if o.metrics.calls[0].success {
		t.Fatalf("expected failed metrics observation")
	}
	if !o.logger.has("info", "request rejected") {
		t.Fatalf("expected rejection info log")
	}
}

func TestTransactIntegrityErrorIsLoggedAsError(t *testing.T) {
	o := newObservedService(nil)
	boom := fmt.Errorf("%w: broken", domain.ErrIllegalArgument)
	_, err := o.svc.Transact(context.Background(), "record", func(domain.Transaction) error { return boom })
	if !errors.Is(err, domain.ErrIllegalArgument) {
		t.Fatalf("expected error to propagate unchanged, got %v", err)
	}
	if o.audit.entries[0].Status != AuditStatusError || o.audit.entries[0].Error == "" {
		t.Fatalf("unexpected audit entry %+v", o.audit.entries[0])
	}
	if !errors.Is(o.tracer.ended[0].err, domain.ErrIllegalArgument) {
		t.Fatalf("expected span ended with error")
	}
	if !o.logger.has("error", "transaction failed") {
		t.Fatalf("expected error log")
	}
}

func TestTransactLogsNonBlockingViolations(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(warnRule{})
	o := newObservedService(engine)
	res, err := o.svc.Transact(context.Background(), "create_user", func(tx domain.Transaction) error {
		_, err := tx.CreateUser(domain.User{Username: "ann"})
		return err
	})
	if err != nil {
		t.Fatalf("warn rules must not block: %v", err)
	}
	if len(res.Violations) != 1 || o.audit.entries[0].Violations != 1 {
		t.Fatalf("expected one violation reported, got %+v", res)
	}
	if !o.logger.has("warn", "rule violation") {
		t.Fatalf("expected warn log for violation")
	}
}

type warnRule struct{}

func (warnRule) Name() string { return "warn_always" }

func (warnRule) Evaluate(context.Context, domain.TransactionView, []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "warn_always", Severity: domain.SeverityWarn, Message: "heads up"}}}, nil
}

func TestNewServiceDefaultsAreNoops(t *testing.T) {
	svc := NewService(memory.NewStore(nil), WithLogger(nil), WithClock(nil), WithAuditRecorder(nil), WithMetricsRecorder(nil), WithTracer(nil))
	if _, ok := svc.Logger().(noopLogger); !ok {
		t.Fatalf("expected noop logger, got %T", svc.Logger())
	}
	if _, err := svc.Transact(context.Background(), "noop", func(domain.Transaction) error { return nil }); err != nil {
		t.Fatalf("transact: %v", err)
	}
	if svc.Store() == nil {
		t.Fatalf("expected store")
	}
}

func TestRequestIDFromContext(t *testing.T) {
	if _, ok := RequestIDFromContext(context.Background()); ok {
		t.Fatalf("expected no request id")
	}
	ctx, id := ensureRequestID(context.Background())
	got, ok := RequestIDFromContext(ctx)
	if !ok || got != id || len(id) != 36 {
		t.Fatalf("expected generated uuid, got %q", got)
	}
	ctx2, id2 := ensureRequestID(ctx)
	if ctx2 != ctx || id2 != id {
		t.Fatalf("expected existing request id to be reused")
	}
}
