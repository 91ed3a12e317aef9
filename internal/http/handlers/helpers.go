package handlers

import (
	"github.com/valyala/fasthttp"

	dbpkg "swiftroute/internal/db"
	httpctx "swiftroute/internal/http/ctx"
)

// MustIdentity returns the authenticated identity from context, or sends
// the generic 401 and returns (nil, false). The auth middleware has already
// run on every route that calls this.
func MustIdentity(ctx *fasthttp.RequestCtx) (*dbpkg.ClientIdentity, bool) {
	identity, ok := httpctx.Identity(ctx)
	if !ok {
		WriteError(ctx, fasthttp.StatusUnauthorized, CodeInvalidAPIKey, "Invalid or expired API key", nil)
		return nil, false
	}
	return identity, true
}
