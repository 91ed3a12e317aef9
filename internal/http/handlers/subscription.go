package handlers

import (
	"errors"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	dbpkg "swiftroute/internal/db"
)

// Subscription returns the authenticated client's billing view for the
// current period.
func Subscription(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		identity, ok := MustIdentity(ctx)
		if !ok {
			return
		}

		client, err := dbpkg.FindClientByID(db, identity.ClientID)
		if err != nil {
			if errors.Is(err, dbpkg.ErrClientNotFound) {
				WriteError(ctx, fasthttp.StatusNotFound, CodeClientNotFound, "Client not found", nil)
				return
			}
			WriteInternalError(ctx, err)
			return
		}

		WriteData(ctx, fasthttp.StatusOK, map[string]any{
			"subscription": dbpkg.SubscriptionFor(client),
		}, nil)
	}
}
