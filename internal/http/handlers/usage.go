package handlers

import (
	"time"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	"swiftroute/internal/config"
	dbpkg "swiftroute/internal/db"
)

// Usage returns aggregated usage statistics for the authenticated client
// over the trailing ?days= window, plus a read-only snapshot of the current
// rate limit window. days is clamped to the retention horizon, since rows
// older than that no longer exist.
func Usage(db *gorm.DB, cfg *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		identity, ok := MustIdentity(ctx)
		if !ok {
			return
		}

		days := ctx.QueryArgs().GetUintOrZero("days")
		if days == 0 {
			days = 7
		}

		stats, err := dbpkg.ClientUsageStats(db, identity.ClientID, days, cfg.RetentionDays)
		if err != nil {
			WriteInternalError(ctx, err)
			return
		}

		data := map[string]any{
			"usage": stats,
		}
		if status, err := dbpkg.PeekRateStatus(db, identity.KeyID, identity.BillingTier, time.Now()); err == nil {
			data["rate_limit"] = map[string]any{
				"limit_per_minute": status.Limit,
				"remaining":        status.Remaining,
				"reset_time":       status.Reset.UTC().Format(time.RFC3339),
			}
		}

		WriteData(ctx, fasthttp.StatusOK, data, nil)
	}
}
