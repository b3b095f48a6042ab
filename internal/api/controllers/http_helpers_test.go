package controllers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel/trace"
)

func TestRequestContext_UsesPropagatedTraceContext(t *testing.T) {
	var ctx fasthttp.RequestCtx

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{0x01},
		SpanID:  trace.SpanID{0x02},
	})
	traceCtx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx.SetUserValue("traceCtx", traceCtx)

	got := requestContext(&ctx)
	assert.Equal(t, sc, trace.SpanContextFromContext(got))
}

func TestRequestContext_FallsBackToBackground(t *testing.T) {
	var ctx fasthttp.RequestCtx

	got := requestContext(&ctx)
	assert.NotNil(t, got)
	assert.False(t, trace.SpanContextFromContext(got).IsValid())
}
