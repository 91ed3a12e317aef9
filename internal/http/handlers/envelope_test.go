package handlers

import (
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	httpctx "swiftroute/internal/http/ctx"
)

func decodeEnvelope(t *testing.T, ctx *fasthttp.RequestCtx) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	return body
}

func TestNewRequestIDFormat(t *testing.T) {
	re := regexp.MustCompile(`^req_\d{13}_[0-9a-f-]{8}$`)

	id := NewRequestID()
	assert.Regexp(t, re, id)
	assert.NotEqual(t, id, NewRequestID())
}

func TestWriteDataEnvelope(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	httpctx.SetRequestID(ctx, "req_1_aaaaaaaa")

	WriteData(ctx, fasthttp.StatusOK, map[string]any{"hello": "world"}, map[string]any{"note": "meta"})

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "application/json", string(ctx.Response.Header.ContentType()))

	body := decodeEnvelope(t, ctx)
	assert.Equal(t, "req_1_aaaaaaaa", body["request_id"])
	assert.Nil(t, body["error"])

	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "world", data["hello"])

	meta, ok := body["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "meta", meta["note"])

	ts, ok := body["timestamp"].(string)
	require.True(t, ok)
	_, err := time.Parse(time.RFC3339, ts)
	assert.NoError(t, err)
}

func TestWriteErrorEnvelope(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	httpctx.SetRequestID(ctx, "req_1_bbbbbbbb")

	WriteError(ctx, fasthttp.StatusTooManyRequests, CodeRateLimitExceeded, "Rate limit exceeded",
		map[string]any{"retry_after": 30})

	assert.Equal(t, fasthttp.StatusTooManyRequests, ctx.Response.StatusCode())

	body := decodeEnvelope(t, ctx)
	assert.Nil(t, body["data"])

	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errBody["code"])
	assert.Equal(t, "Rate limit exceeded", errBody["message"])

	details, ok := errBody["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(30), details["retry_after"])

	// The code is recorded for the usage log.
	assert.Equal(t, CodeRateLimitExceeded, httpctx.ErrorCode(ctx))
}

func TestWriteErrorWithoutRequestID(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}

	WriteError(ctx, fasthttp.StatusNotFound, CodeNotFound, "Resource not found", nil)

	body := decodeEnvelope(t, ctx)
	assert.Equal(t, "unknown", body["request_id"])
}
