package middleware

import (
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	httpctx "swiftroute/internal/http/ctx"
	"swiftroute/internal/http/handlers"
)

// RequestTracker assigns every request an id, echoes it back, and logs the
// outcome. An inbound X-Request-ID is honored so clients can correlate
// retries; otherwise a fresh id is minted.
func RequestTracker(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		requestID := string(ctx.Request.Header.Peek("X-Request-ID"))
		if requestID == "" {
			requestID = handlers.NewRequestID()
		}
		httpctx.SetRequestID(ctx, requestID)

		start := time.Now()
		next(ctx)
		elapsed := time.Since(start)

		ctx.Response.Header.Set("X-Request-ID", requestID)
		ctx.Response.Header.Set("X-Process-Time", strconv.FormatInt(elapsed.Milliseconds(), 10))

		log.WithFields(log.Fields{
			"request_id": requestID,
			"method":     string(ctx.Method()),
			"path":       string(ctx.Path()),
			"status":     ctx.Response.StatusCode(),
			"duration":   elapsed.String(),
			"remote_ip":  ctx.RemoteAddr().String(),
		}).Info("request")
	}
}
