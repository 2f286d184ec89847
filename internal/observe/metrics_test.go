package observe

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordStage(ctx, "resolving", time.Millisecond)
	m.RecordProviderAttempt(ctx, "whisper", "ok")
	m.RecordRequest(ctx, "text", "ok")
	m.RecordServiceCall(ctx, "switch", "ok")
	m.RecordDelivery(ctx, "ok")
}

func TestRecordProviderAttempt(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderAttempt(ctx, "whisper", "no_result")
	m.RecordProviderAttempt(ctx, "cloud_stt", "ok")
	m.RecordProviderAttempt(ctx, "cloud_stt", "ok")

	met := findMetric(collect(t, reader), "jarvis.stt.attempts")
	if met == nil {
		t.Fatal("metric jarvis.stt.attempts not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", met.Data)
	}

	counts := map[string]int64{}
	for _, dp := range sum.DataPoints {
		p, _ := dp.Attributes.Value(attribute.Key("provider"))
		counts[p.AsString()] += dp.Value
	}
	if counts["whisper"] != 1 || counts["cloud_stt"] != 2 {
		t.Errorf("counts: got %v", counts)
	}
}

func TestRecordStage(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordStage(context.Background(), "dispatching", 120*time.Millisecond)

	met := findMetric(collect(t, reader), "jarvis.pipeline.stage.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("unexpected data type %T", met.Data)
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Errorf("data points: got %+v", hist.DataPoints)
	}
}

func TestMiddleware_RecordsDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := Middleware(m, logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status: got %d", rec.Code)
	}
	if findMetric(collect(t, reader), "jarvis.http.request.duration") == nil {
		t.Error("http duration metric not recorded")
	}
}
