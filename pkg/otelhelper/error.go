package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError marks the span failed and records err.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("error_occurred", trace.WithAttributes(
		attrs...,
	))
}

// SetStatus records an execution outcome on the span, flagging non-successful ones.
func SetStatus(span trace.Span, status string, message string) {
	span.SetAttributes(attribute.String(StatusKey, status))

	if status == "FAILURE" {
		span.SetStatus(codes.Error, message)

		return
	}

	span.SetStatus(codes.Ok, "")
}
