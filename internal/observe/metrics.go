// Package observe holds the OpenTelemetry instruments and tracing helpers
// used across the voice pipeline. Metrics are exported for Prometheus
// scraping by InitProvider; tests build their own Metrics from an SDK
// MeterProvider with a manual reader.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "jarvis"

// Metrics groups every instrument recorded by the service. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// StageDuration is labelled with attribute "stage".
	StageDuration metric.Float64Histogram

	// ProviderAttempts counts transcription attempts by "provider" and
	// "status" (ok, no_result, skipped).
	ProviderAttempts metric.Int64Counter

	// Requests counts finished requests by "source" (text, audio) and
	// "outcome" (the failure kind, or "ok").
	Requests metric.Int64Counter

	// ServiceCalls counts Home Assistant service calls by "domain" and "status".
	ServiceCalls metric.Int64Counter

	// Deliveries counts spoken replies by "status".
	Deliveries metric.Int64Counter

	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("jarvis.pipeline.stage.duration",
		metric.WithDescription("Latency of each voice pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderAttempts, err = m.Int64Counter("jarvis.stt.attempts",
		metric.WithDescription("Transcription attempts by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.Requests, err = m.Int64Counter("jarvis.requests",
		metric.WithDescription("Finished voice requests by source and outcome."),
	); err != nil {
		return nil, err
	}
	if met.ServiceCalls, err = m.Int64Counter("jarvis.homeassistant.service_calls",
		metric.WithDescription("Home Assistant service calls by domain and status."),
	); err != nil {
		return nil, err
	}
	if met.Deliveries, err = m.Int64Counter("jarvis.tts.deliveries",
		metric.WithDescription("Spoken reply deliveries by status."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("jarvis.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns instruments bound to the global MeterProvider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)))
}

func (m *Metrics) RecordProviderAttempt(ctx context.Context, provider, status string) {
	if m == nil {
		return
	}
	m.ProviderAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	))
}

func (m *Metrics) RecordRequest(ctx context.Context, source, outcome string) {
	if m == nil {
		return
	}
	m.Requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) RecordServiceCall(ctx context.Context, domain, status string) {
	if m == nil {
		return
	}
	m.ServiceCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("status", status),
	))
}

func (m *Metrics) RecordDelivery(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.Deliveries.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
