package middleware

import (
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	dbpkg "swiftroute/internal/db"
	httpctx "swiftroute/internal/http/ctx"
	"swiftroute/internal/http/handlers"
)

// RateLimit enforces the tier's per-minute ceiling with one atomic counter
// increment per request. X-RateLimit headers go out on every authenticated
// response; over-limit requests get a 429 with Retry-After. Requests that
// reach this middleware unauthenticated (optional-auth routes) pass through
// untouched.
func RateLimit(db *gorm.DB) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			identity, ok := httpctx.Identity(ctx)
			if !ok {
				next(ctx)
				return
			}

			now := time.Now()
			status := dbpkg.TakeRateToken(db, identity.KeyID, identity.BillingTier, now)
			httpctx.SetRateStatus(ctx, status)
			for k, v := range status.Headers() {
				ctx.Response.Header.Set(k, v)
			}

			if !status.Allowed {
				retryAfter := status.RetryAfter(now)
				ctx.Response.Header.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				handlers.WriteError(ctx, fasthttp.StatusTooManyRequests, handlers.CodeRateLimitExceeded,
					"Rate limit exceeded", map[string]any{
						"limit":       status.Limit,
						"remaining":   status.Remaining,
						"reset_time":  status.Reset.Unix(),
						"retry_after": retryAfter,
					})
				return
			}

			next(ctx)
		}
	}
}
