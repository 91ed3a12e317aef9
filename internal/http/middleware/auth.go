package middleware

import (
	"bytes"
	"strings"

	"github.com/valyala/fasthttp"

	dbpkg "swiftroute/internal/db"
	httpctx "swiftroute/internal/http/ctx"
	"swiftroute/internal/http/handlers"
)

var bearerPrefix = []byte("Bearer ")

// ExtractAPIKey pulls the raw key out of the request headers: the
// Authorization Bearer value wins, then X-API-Key. Purely syntactic; no
// validation happens here.
func ExtractAPIKey(h *fasthttp.RequestHeader) (string, bool) {
	auth := h.Peek("Authorization")
	if bytes.HasPrefix(auth, bearerPrefix) {
		if token := strings.TrimSpace(string(auth[len(bearerPrefix):])); token != "" {
			return token, true
		}
	}
	if token := strings.TrimSpace(string(h.Peek("X-API-Key"))); token != "" {
		return token, true
	}
	return "", false
}

// APIKeyAuth authenticates requests with the given Authenticator and puts
// the resolved identity on the request context. With required=false a
// request without any key passes through unauthenticated (the health
// endpoint); a key that is present is always validated.
func APIKeyAuth(auth dbpkg.Authenticator, required bool) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			raw, ok := ExtractAPIKey(&ctx.Request.Header)
			if !ok {
				if required {
					handlers.WriteError(ctx, fasthttp.StatusUnauthorized, handlers.CodeMissingAPIKey,
						"API key required. Provide in Authorization header or X-API-Key header.", nil)
					return
				}
				next(ctx)
				return
			}

			identity, err := auth.Authenticate(raw)
			if err != nil {
				handlers.WriteError(ctx, fasthttp.StatusUnauthorized, handlers.CodeInvalidAPIKey,
					"Invalid or expired API key", nil)
				return
			}

			httpctx.SetIdentity(ctx, identity)
			next(ctx)
		}
	}
}
