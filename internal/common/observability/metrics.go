package observability

import (
	"context"
	"errors"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Observability owns the otel meter and tracer providers of a process.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	jobCounter     otelmetric.Int64Counter
	jobDuration    otelmetric.Float64Histogram
}

// New registers the exporter with the default prometheus registerer and installs
// the providers globally. On exporter failure it returns an instance whose
// recorders are no-ops.
func New(serviceName string) *Observability {
	o, err := NewWithRegisterer(serviceName, promclient.DefaultRegisterer)
	if err != nil {
		return &Observability{}
	}
	otel.SetMeterProvider(o.meterProvider)
	otel.SetTracerProvider(o.tracerProvider)
	return o
}

// NewWithRegisterer builds providers bound to reg without touching the globals.
func NewWithRegisterer(serviceName string, reg promclient.Registerer, spanProcessors ...sdktrace.SpanProcessor) (*Observability, error) {
	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	meter := provider.Meter(serviceName)

	jobCounter, err := meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of search jobs processed"),
	)
	if err != nil {
		return nil, err
	}

	jobDuration, err := meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Search job processing duration"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	tpOpts := make([]sdktrace.TracerProviderOption, 0, len(spanProcessors))
	for _, sp := range spanProcessors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
	}

	return &Observability{
		meterProvider:  provider,
		tracerProvider: sdktrace.NewTracerProvider(tpOpts...),
		jobCounter:     jobCounter,
		jobDuration:    jobDuration,
	}, nil
}

// TracerProvider returns the tracer provider, or nil for a no-op instance.
func (o *Observability) TracerProvider() *sdktrace.TracerProvider {
	return o.tracerProvider
}

func (o *Observability) RecordJobProcessed(ctx context.Context, taskType, status string) {
	if o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("task_type", taskType),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordJobDuration(ctx context.Context, taskType string, duration time.Duration, status string) {
	if o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("task_type", taskType),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) Shutdown(ctx context.Context) error {
	var errs []error
	if o.tracerProvider != nil {
		errs = append(errs, o.tracerProvider.Shutdown(ctx))
	}
	if o.meterProvider != nil {
		errs = append(errs, o.meterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
