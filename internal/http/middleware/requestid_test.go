package middleware

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"

	httpctx "swiftroute/internal/http/ctx"
)

func TestRequestTrackerMintsID(t *testing.T) {
	var seen string
	handler := RequestTracker(func(ctx *fasthttp.RequestCtx) {
		seen = httpctx.RequestID(ctx)
	})

	ctx := newCtx(fasthttp.MethodGet, "/api/v1/health")
	handler(ctx)

	assert.True(t, strings.HasPrefix(seen, "req_"))
	assert.Equal(t, seen, string(ctx.Response.Header.Peek("X-Request-ID")))
	assert.NotEmpty(t, ctx.Response.Header.Peek("X-Process-Time"))
}

func TestRequestTrackerHonorsInboundID(t *testing.T) {
	var seen string
	handler := RequestTracker(func(ctx *fasthttp.RequestCtx) {
		seen = httpctx.RequestID(ctx)
	})

	ctx := newCtx(fasthttp.MethodGet, "/api/v1/health")
	ctx.Request.Header.Set("X-Request-ID", "req_12345_abcdef01")
	handler(ctx)

	assert.Equal(t, "req_12345_abcdef01", seen)
	assert.Equal(t, "req_12345_abcdef01", string(ctx.Response.Header.Peek("X-Request-ID")))
}
