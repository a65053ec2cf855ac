package core

import (
	"context"
	"time"
)

// Logger is the structured logging surface used by the service. Arguments
// after the message are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Clock supplies timestamps for audit entries and durations.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function into a Clock.
type ClockFunc func() time.Time

// Now returns the function result, or the current UTC time for a nil func.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f()
}

// AuditStatus captures the outcome of an audited unit of work.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	// AuditStatusRejected marks requests that failed validation and wrote nothing.
	AuditStatusRejected AuditStatus = "rejected"
	AuditStatusError    AuditStatus = "error"
)

// AuditEntry describes one unit of work run through Service.Transact.
type AuditEntry struct {
	Operation  string
	RequestID  string
	Status     AuditStatus
	Problems   []string
	Violations int
	Error      string
	Duration   time.Duration
	Timestamp  time.Time
}

// AuditRecorder receives an entry for every unit of work.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// MetricsRecorder observes unit-of-work outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts a span per unit of work.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the unit-of-work error (nil on success).
type TraceSpan interface {
	End(err error)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}
