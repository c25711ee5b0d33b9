package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/orderium/internal/pkg/requestid"
)

func TestLoggerDecoratesRecords(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, "debug", "storefront", "test")

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1, 2, 3},
		SpanID:  trace.SpanID{4, 5, 6},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = requestid.WithID(ctx, "req-1")

	log.With("component", "cart").DebugContext(ctx, "cart: item added", "product_id", 7)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	for k, want := range map[string]any{
		"service":    "storefront",
		"env":        "test",
		"component":  "cart",
		"request_id": "req-1",
		"trace_id":   sc.TraceID().String(),
		"span_id":    sc.SpanID().String(),
	} {
		if rec[k] != want {
			t.Fatalf("%s = %v, want %v", k, rec[k], want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	} {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, "warn", "storefront", "test")
	log.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %s", buf.String())
	}
}
