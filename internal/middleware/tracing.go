package middleware

import (
	"context"

	"github.com/specialistvlad/burststate/internal/dispatch"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/specialistvlad/burststate/internal/middleware"

// Tracing opens a span per dispatch that ends when the action settles.
// Reducer failures are recorded on the span. A nil tracer uses the global
// provider.
func Tracing(tracer trace.Tracer) dispatch.Middleware {
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return func(next dispatch.Next) dispatch.Next {
		return func(ctx context.Context, env *dispatch.Envelope) error {
			ctx, span := tracer.Start(ctx, "store.dispatch",
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(
					attribute.String("store.dispatch.id", env.ID),
					attribute.String("store.action", actionName(env.Action)),
				),
			)
			env.OnSettled(func(r dispatch.Result) {
				span.SetAttributes(
					attribute.String("store.module", r.Module),
					attribute.Bool("store.dropped", r.Dropped),
					attribute.Int64("store.version", int64(r.Version)),
				)
				if r.Err != nil {
					span.RecordError(r.Err)
					span.SetStatus(codes.Error, r.Err.Error())
				}
				span.End()
			})
			if err := next(ctx, env); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				span.End()
				return err
			}
			return nil
		}
	}
}
