package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability owns the OTel meter provider. Instruments are exported through
// the default Prometheus registry, so /metrics serves them next to the
// promauto collectors.
type Observability struct {
	meterProvider  *metric.MeterProvider
	meter          otelmetric.Meter
	verifyCounter  otelmetric.Int64Counter
	oracleDuration otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	return newWithProvider(provider, serviceName)
}

// NewNoop returns an Observability whose recordings are dropped.
func NewNoop() *Observability {
	return &Observability{}
}

func newWithProvider(provider *metric.MeterProvider, serviceName string) *Observability {
	meter := provider.Meter(serviceName)

	verifyCounter, _ := meter.Int64Counter(
		"verifications.processed",
		otelmetric.WithDescription("Number of verification verdicts produced"),
	)

	oracleDuration, _ := meter.Float64Histogram(
		"oracle.duration",
		otelmetric.WithDescription("Embedding similarity call duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:  provider,
		meter:          meter,
		verifyCounter:  verifyCounter,
		oracleDuration: oracleDuration,
	}
}

func (o *Observability) RecordVerification(ctx context.Context, outcome string) {
	if o != nil && o.verifyCounter != nil {
		o.verifyCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("outcome", outcome),
		))
	}
}

func (o *Observability) RecordOracleDuration(ctx context.Context, duration time.Duration, backend, status string) {
	if o != nil && o.oracleDuration != nil {
		o.oracleDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) Shutdown() {
	if o != nil && o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.meterProvider.Shutdown(ctx)
	}
}
