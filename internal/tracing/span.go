package tracing

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/netprobe/internal/probe"
)

// tracedProbe wraps a probe so every execution is recorded as a client span.
type tracedProbe struct {
	inner  probe.Probe
	tracer trace.Tracer
	target string
	kind   string
}

// WrapProbe decorates a probe with span instrumentation. With a nil or
// disabled provider the probe is returned unchanged.
func WrapProbe(p probe.Probe, provider *Provider, target probe.Target) probe.Probe {
	if provider == nil || provider.tracer == nil {
		return p
	}
	return &tracedProbe{
		inner:  p,
		tracer: provider.Tracer(),
		target: target.String(),
		kind:   string(target.Kind),
	}
}

func (t *tracedProbe) Execute(ctx context.Context) probe.Outcome {
	ctx, span := t.tracer.Start(ctx, t.kind+" probe",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("netprobe.target", t.target),
		attribute.String("netprobe.kind", t.kind),
	)

	out := t.inner.Execute(ctx)

	if out.OK {
		span.SetAttributes(attribute.Int("netprobe.status", out.StatusCode))
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetAttributes(attribute.String("netprobe.failure_kind", string(out.Kind)))
		span.RecordError(errors.New(out.Message))
		span.SetStatus(codes.Error, out.Message)
	}
	span.End()

	return out
}
