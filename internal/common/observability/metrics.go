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

type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter

	transitions   otelmetric.Int64Counter
	enqueued      otelmetric.Int64Counter
	sent          otelmetric.Int64Counter
	retried       otelmetric.Int64Counter
	dead          otelmetric.Int64Counter
	sweepDuration otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	transitions, _ := meter.Int64Counter(
		"licenses.transitioned",
		otelmetric.WithDescription("Number of license state transitions"),
	)
	enqueued, _ := meter.Int64Counter(
		"notifications.enqueued",
		otelmetric.WithDescription("Number of notification jobs enqueued"),
	)
	sent, _ := meter.Int64Counter(
		"notifications.sent",
		otelmetric.WithDescription("Number of notification jobs delivered"),
	)
	retried, _ := meter.Int64Counter(
		"notifications.retried",
		otelmetric.WithDescription("Number of notification delivery retries"),
	)
	dead, _ := meter.Int64Counter(
		"notifications.dead",
		otelmetric.WithDescription("Number of notification jobs that exhausted retries"),
	)
	sweepDuration, _ := meter.Float64Histogram(
		"lifecycle.sweep.duration",
		otelmetric.WithDescription("Lifecycle sweep duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		transitions:   transitions,
		enqueued:      enqueued,
		sent:          sent,
		retried:       retried,
		dead:          dead,
		sweepDuration: sweepDuration,
	}
}

func (o *Observability) RecordTransition(ctx context.Context, toStatus string) {
	if o.transitions != nil {
		o.transitions.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("to", toStatus),
		))
	}
}

func (o *Observability) RecordEnqueued(ctx context.Context, notifyType string) {
	if o.enqueued != nil {
		o.enqueued.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("type", notifyType),
		))
	}
}

func (o *Observability) RecordSent(ctx context.Context, notifyType string) {
	if o.sent != nil {
		o.sent.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("type", notifyType),
		))
	}
}

func (o *Observability) RecordRetry(ctx context.Context, notifyType string) {
	if o.retried != nil {
		o.retried.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("type", notifyType),
		))
	}
}

func (o *Observability) RecordDead(ctx context.Context, notifyType string) {
	if o.dead != nil {
		o.dead.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("type", notifyType),
		))
	}
}

func (o *Observability) RecordSweepDuration(ctx context.Context, duration time.Duration) {
	if o.sweepDuration != nil {
		o.sweepDuration.Record(ctx, float64(duration.Milliseconds()))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.meterProvider.Shutdown(ctx)
	}
}
