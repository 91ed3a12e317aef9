package middleware

import (
	"time"

	"github.com/valyala/fasthttp"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	dbpkg "swiftroute/internal/db"
	httpctx "swiftroute/internal/http/ctx"
	"swiftroute/internal/http/handlers"
)

// UsageRecorder appends one usage row per completed request attempt on
// authenticated routes, success and failure alike, and feeds the request
// metrics. Recording happens after the response is decided and is fire and
// forget: a failed write is logged inside RecordUsage and the response is
// unaffected. Unauthenticated passes (optional-auth routes) record nothing.
func UsageRecorder(db *gorm.DB) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			start := time.Now()
			next(ctx)
			elapsed := time.Since(start)

			identity, ok := httpctx.Identity(ctx)
			if !ok {
				return
			}

			status := ctx.Response.StatusCode()
			endpoint := string(ctx.Path())
			method := string(ctx.Method())

			handlers.ObserveRequest(identity.Email, endpoint, method, status, elapsed)

			requestData := datatypes.JSONMap{"method": method}
			if query := string(ctx.QueryArgs().QueryString()); query != "" {
				requestData["query"] = query
			}

			rec := &dbpkg.UsageRecord{
				CreatedAt:      start,
				APIKeyID:       identity.KeyID,
				ClientID:       identity.ClientID,
				Endpoint:       endpoint,
				Success:        status < fasthttp.StatusBadRequest,
				ResponseTimeMs: elapsed.Milliseconds(),
				ErrorCode:      httpctx.ErrorCode(ctx),
				RequestData:    requestData,
			}
			go dbpkg.RecordUsage(db, rec)
		}
	}
}
