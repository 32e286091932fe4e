package temper

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "impractical.co/temper"

var (
	tracer = otel.Tracer(instrumentationName)
	meters = newInstruments(otel.Meter(instrumentationName))
)

type instruments struct {
	renders         metric.Int64Counter
	includeFailures metric.Int64Counter
	skipped         metric.Int64Counter
}

func newInstruments(meter metric.Meter) instruments {
	return instruments{
		renders:         counter(meter, "temper.renders", "Templates rendered by name, including includes."),
		includeFailures: counter(meter, "temper.include_failures", "Include directives that rendered nothing because of an error."),
		skipped:         counter(meter, "temper.templates_skipped", "Template files skipped while loading because they failed to compile."),
	}
}

func counter(meter metric.Meter, name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		otel.Handle(err)
		return noop.Int64Counter{}
	}
	return c
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func templateAttr(name string) attribute.KeyValue {
	return attribute.String("temper.template", name)
}
