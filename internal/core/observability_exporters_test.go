package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	rec.Observe(context.Background(), "section", true, 2*time.Millisecond)
	rec.Observe(context.Background(), "section", false, 3*time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Second)

	snap := rec.Snapshot()
	if snap.DurationsMS["section"] != 5 {
		t.Fatalf("expected 5ms total, got %v", snap.DurationsMS["section"])
	}
	if snap.Results["section"]["success"] != 1 || snap.Results["section"]["error"] != 1 {
		t.Fatalf("unexpected results %+v", snap.Results)
	}
	if len(snap.Results) != 1 {
		t.Fatalf("blank operations must be ignored")
	}
	v := expvar.Get(rec.Name())
	if v == nil || !strings.Contains(v.String(), "section") {
		t.Fatalf("expected published expvar, got %v", v)
	}
}

func TestJSONTracerWritesEntries(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	_, span := tracer.Start(context.Background(), "destroy")
	span.End(errors.New("boom"))
	_, span = tracer.Start(context.Background(), "destroy")
	span.End(nil)

	entries := tracer.Entries()
	if len(entries) != 2 || entries[0].Status != "error" || entries[0].Error != "boom" || entries[1].Status != "success" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two json lines, got %q", buf.String())
	}
	var decoded JSONTraceEntry
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Operation != "destroy" {
		t.Fatalf("unexpected decoded entry %+v", decoded)
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	rec.Observe(context.Background(), "section", true, 10*time.Millisecond)
	rec.Observe(context.Background(), "section", true, 10*time.Millisecond)
	rec.Observe(context.Background(), "section", false, 10*time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	counts := make(map[string]float64)
	var histograms int
	for _, mf := range families {
		switch mf.GetName() {
		case "labcore_transactions_total":
			for _, m := range mf.GetMetric() {
				for _, lp := range m.GetLabel() {
					if lp.GetName() == "status" {
						counts[lp.GetValue()] = m.GetCounter().GetValue()
					}
				}
			}
		case "labcore_transaction_duration_seconds":
			for _, m := range mf.GetMetric() {
				histograms++
				if m.GetHistogram().GetSampleCount() != 3 {
					t.Fatalf("expected 3 samples, got %d", m.GetHistogram().GetSampleCount())
				}
			}
		}
	}
	if counts["success"] != 2 || counts["error"] != 1 {
		t.Fatalf("unexpected counters %v", counts)
	}
	if histograms != 1 {
		t.Fatalf("expected one histogram series, got %d", histograms)
	}
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestOTelTracerEndsSpans(t *testing.T) {
	tracer := NewOTelTracer(noop.NewTracerProvider().Tracer("labcore"))
	ctx := WithRequestID(context.Background(), "req-9")
	ctx, span := tracer.Start(ctx, "section")
	if ctx == nil {
		t.Fatalf("expected context")
	}
	span.End(errors.New("boom"))
	_, span = tracer.Start(context.Background(), "section")
	span.End(nil)
}

func TestZapLoggerWritesStructuredFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapLogger(zap.New(core))
	logger.Debug("transaction committed", "operation", "section", "request_id", "r1")
	logger.Info("request rejected", "problems", []string{"No user supplied."})
	logger.Warn("rule violation")
	logger.Error("transaction failed", "error", errors.New("boom"))

	if logs.Len() != 4 {
		t.Fatalf("expected 4 entries, got %d", logs.Len())
	}
	first := logs.All()[0]
	if first.Message != "transaction committed" || first.ContextMap()["operation"] != "section" {
		t.Fatalf("unexpected entry %+v", first)
	}
	if logs.FilterLevelExact(zapcore.ErrorLevel).Len() != 1 {
		t.Fatalf("expected one error entry")
	}
}

func TestBuildZapLogger(t *testing.T) {
	l, err := BuildZapLogger("warn", false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if l.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info should be disabled at warn level")
	}
	if _, err := BuildZapLogger("loud", false); err == nil {
		t.Fatalf("expected invalid level error")
	}
	if _, err := BuildZapLogger("", true); err != nil {
		t.Fatalf("development build: %v", err)
	}
	_ = NewZapLogger(nil).Sync()
}
