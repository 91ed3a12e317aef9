package middleware

import (
	"crypto/subtle"

	"github.com/valyala/fasthttp"

	"swiftroute/internal/config"
	"swiftroute/internal/http/handlers"
)

// ServiceAuth gates operator endpoints behind the privileged service
// credential from config. When no credential is configured the endpoints
// are disabled outright. The comparison is constant time.
func ServiceAuth(cfg *config.Config) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			if cfg.ServiceCredential == "" {
				handlers.WriteError(ctx, fasthttp.StatusNotFound, handlers.CodeNotFound,
					"Resource not found", nil)
				return
			}

			presented, ok := ExtractAPIKey(&ctx.Request.Header)
			if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(cfg.ServiceCredential)) != 1 {
				handlers.WriteError(ctx, fasthttp.StatusUnauthorized, handlers.CodeInvalidAPIKey,
					"Invalid or expired API key", nil)
				return
			}

			next(ctx)
		}
	}
}
