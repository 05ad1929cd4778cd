package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ToolCallObservation describes one routed tool call.
type ToolCallObservation struct {
	Tool     string
	Server   string
	Duration time.Duration
	Err      error
}

// ToolObserver records tool-call signals into OpenTelemetry. A nil
// observer is safe to call.
type ToolObserver struct {
	tracer trace.Tracer

	invocations metric.Int64Counter
	failures    metric.Int64Counter
	latency     metric.Float64Histogram
}

// NewToolObserver creates a tool observer bound to the provided
// meter/tracer.
func NewToolObserver(meter metric.Meter, tracer trace.Tracer) (*ToolObserver, error) {
	invocations, err := meter.Int64Counter(
		"boardpilot.tool.invocations",
		metric.WithDescription("Number of routed tool calls"),
	)
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter(
		"boardpilot.tool.failures",
		metric.WithDescription("Number of failed tool calls"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		"boardpilot.tool.latency",
		metric.WithDescription("Tool call latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &ToolObserver{
		tracer:      tracer,
		invocations: invocations,
		failures:    failures,
		latency:     latency,
	}, nil
}

// ObserveCall records one routed tool call.
func (o *ToolObserver) ObserveCall(observation ToolCallObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool_name", observation.Tool),
		attribute.String("server_name", observation.Server),
		attribute.Bool("success", observation.Err == nil),
	}

	ctx := context.Background()
	options := metric.WithAttributes(attrs...)
	o.invocations.Add(ctx, 1, options)
	o.latency.Record(ctx, observation.Duration.Seconds(), options)
	if observation.Err != nil {
		o.failures.Add(ctx, 1, options)
	}

	if o.tracer == nil {
		return
	}
	_, span := o.tracer.Start(ctx, "tool.call", trace.WithAttributes(attrs...))
	if observation.Err != nil {
		span.SetStatus(codes.Error, observation.Err.Error())
		span.RecordError(observation.Err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
