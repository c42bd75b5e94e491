package main

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alan-christopher/qkdsim/qkd"
)

// tracedRun performs one simulation inside a span. Every pipeline state the
// run visited becomes a span event, and the headline metrics become span
// attributes.
func tracedRun(ctx context.Context, tracer trace.Tracer, cfg config) (qkd.Result, error) {
	_, span := tracer.Start(ctx, "qkd.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("qkd.kind", cfg.kind.String()),
			attribute.Int64("qkd.seed", cfg.seed),
			attribute.Float64("qkd.distance_km", cfg.channel.DistanceKm),
			attribute.Float64("qkd.depolarization", cfg.channel.Depolarization),
		),
	)
	defer span.End()

	res, err := qkd.Run(cfg.kind, cfg.params, cfg.channel, cfg.seed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	for _, s := range res.Trail {
		span.AddEvent(s.String())
	}
	attrs := []attribute.KeyValue{
		attribute.Bool("qkd.success", res.Success),
		attribute.Int("qkd.events", res.Events),
		attribute.Int("qkd.sifted_bits", res.SiftedLength),
		attribute.Int("qkd.final_key_bits", res.FinalKeyLength),
		attribute.Float64("qkd.qber", res.Security.QBER),
		attribute.Float64("qkd.secure_key_rate", res.Security.SecureKeyRate),
	}
	if b := res.Security.Bell; b != nil {
		attrs = append(attrs, attribute.Float64("qkd.bell_s", b.S))
	}
	if res.FailureReason != "" {
		attrs = append(attrs, attribute.String("qkd.failure_reason", res.FailureReason))
	}
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "")
	return res, nil
}
