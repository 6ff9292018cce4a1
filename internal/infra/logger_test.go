package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"meal-stub-service/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"DEBUG": slog.LevelDebug,
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"ERROR": slog.LevelError,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"TRACE": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q): want %v, got %v", in, want, got)
		}
	}
}

func TestTraceHandler_AddsTraceFields(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{OtelEnabled: true, GoogleCloudProject: "proj-1"}
	logger := slog.New(NewTraceHandler(slog.NewJSONHandler(&buf, nil), cfg))

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	logger.InfoContext(ctx, "hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json log: %v", err)
	}
	traceID := span.SpanContext().TraceID().String()
	if rec["trace"] != traceID {
		t.Errorf("want trace %s, got %v", traceID, rec["trace"])
	}
	if rec["logging.googleapis.com/trace"] != "projects/proj-1/traces/"+traceID {
		t.Errorf("unexpected cloud logging trace: %v", rec["logging.googleapis.com/trace"])
	}
}

func TestTraceHandler_DisabledOmitsTraceFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewTraceHandler(slog.NewJSONHandler(&buf, nil), &config.Config{}))

	logger.InfoContext(context.Background(), "hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json log: %v", err)
	}
	if _, ok := rec["trace"]; ok {
		t.Error("expected no trace field")
	}
}

func TestNewLogger_SeverityAndService(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, &config.Config{LogLevel: "WARN", OtelServiceName: "meal-stub-service"})

	logger.Info("dropped")
	logger.Warn("kept")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("want exactly one json record, got %q: %v", buf.String(), err)
	}
	if rec["severity"] != "WARNING" {
		t.Errorf("want severity WARNING, got %v", rec["severity"])
	}
	if _, ok := rec["level"]; ok {
		t.Error("level key should be replaced by severity")
	}
	if rec["service"] != "meal-stub-service" {
		t.Errorf("want service attr, got %v", rec["service"])
	}
}

func TestTraceHandler_WithAttrsKeepsTracing(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{OtelEnabled: true}
	logger := slog.New(NewTraceHandler(slog.NewJSONHandler(&buf, nil), cfg)).With("batch_id", "b-1")

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	logger.InfoContext(ctx, "hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json log: %v", err)
	}
	if rec["batch_id"] != "b-1" {
		t.Errorf("want batch_id attr, got %v", rec["batch_id"])
	}
	if rec["spanId"] != span.SpanContext().SpanID().String() {
		t.Errorf("want spanId, got %v", rec["spanId"])
	}
	if _, ok := rec["logging.googleapis.com/trace"]; ok {
		t.Error("cloud logging fields require a project id")
	}
}
